package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"skillhub/internal/registry/models"
	derrors "skillhub/pkg/domain-errors"
	"skillhub/pkg/platform/sentinel"
)

// syncSkillResource rewrites the skill's projection row from the item's
// current state. Idempotent: syncing twice without an intervening item change
// leaves the row unchanged. When the skill references a projection row that
// no longer exists, the row is recreated under the same ID; when the skill
// has no row yet, one is created and its ID backfilled onto the skill. Must
// run inside the same unit of work as the item mutation.
func (s *Service) syncSkillResource(ctx context.Context, skill *models.Skill) error {
	fields := resourceFields{
		typ:              models.TypeSkill,
		slug:             skill.Slug,
		displayName:      skill.DisplayName,
		summary:          skill.Summary,
		ownerUserID:      skill.OwnerUserID,
		softDeletedAt:    skill.SoftDeletedAt,
		moderationStatus: skill.ModerationStatus,
		moderationFlags:  skill.ModerationFlags,
		stats:            skill.Stats,
		createdAt:        skill.CreatedAt,
		updatedAt:        skill.UpdatedAt,
	}
	resourceID, err := s.upsertResource(ctx, skill.ResourceID, fields)
	if err != nil {
		return err
	}
	if skill.ResourceID == nil {
		skill.ResourceID = &resourceID
		if err := s.stores.Skills.Update(ctx, skill); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "backfill skill resource id")
		}
	}
	return nil
}

// syncSoulResource mirrors syncSkillResource for souls.
func (s *Service) syncSoulResource(ctx context.Context, soul *models.Soul) error {
	fields := resourceFields{
		typ:              models.TypeSoul,
		slug:             soul.Slug,
		displayName:      soul.DisplayName,
		summary:          soul.Summary,
		ownerUserID:      soul.OwnerUserID,
		softDeletedAt:    soul.SoftDeletedAt,
		moderationStatus: soul.ModerationStatus,
		moderationFlags:  soul.ModerationFlags,
		stats:            soul.Stats,
		createdAt:        soul.CreatedAt,
		updatedAt:        soul.UpdatedAt,
	}
	resourceID, err := s.upsertResource(ctx, soul.ResourceID, fields)
	if err != nil {
		return err
	}
	if soul.ResourceID == nil {
		soul.ResourceID = &resourceID
		if err := s.stores.Souls.Update(ctx, soul); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "backfill soul resource id")
		}
	}
	return nil
}

// SyncSkill rewrites a skill's projection row on behalf of a collaborating
// service already inside the item's unit of work.
func (s *Service) SyncSkill(ctx context.Context, skill *models.Skill) error {
	return s.syncSkillResource(ctx, skill)
}

// SyncSoul mirrors SyncSkill for souls.
func (s *Service) SyncSoul(ctx context.Context, soul *models.Soul) error {
	return s.syncSoulResource(ctx, soul)
}

type resourceFields struct {
	typ              models.ItemType
	slug             string
	displayName      string
	summary          string
	ownerUserID      uuid.UUID
	softDeletedAt    *time.Time
	moderationStatus string
	moderationFlags  []string
	stats            models.Stats
	createdAt        time.Time
	updatedAt        time.Time
}

// upsertResource patches the referenced projection row in place, or inserts a
// fresh one when the item has never been projected or its row vanished.
func (s *Service) upsertResource(ctx context.Context, existingID *uuid.UUID, f resourceFields) (uuid.UUID, error) {
	ownerHandle, err := s.resolveOwnerHandle(ctx, f.ownerUserID)
	if err != nil {
		return uuid.Nil, err
	}

	if existingID != nil {
		resource, err := s.stores.Resources.FindByID(ctx, *existingID)
		switch {
		case err == nil:
			applyResourceFields(resource, f, ownerHandle)
			if err := s.stores.Resources.Update(ctx, resource); err != nil {
				return uuid.Nil, derrors.Wrap(err, derrors.CodeInternal, "update projection row")
			}
			return resource.ID, nil
		case errors.Is(err, sentinel.ErrNotFound):
			// Referenced row is gone; recreate it under the same ID so the
			// item's pointer stays valid.
			return s.insertResource(ctx, *existingID, f, ownerHandle)
		default:
			return uuid.Nil, derrors.Wrap(err, derrors.CodeInternal, "load projection row")
		}
	}

	return s.insertResource(ctx, uuid.New(), f, ownerHandle)
}

func (s *Service) insertResource(ctx context.Context, id uuid.UUID, f resourceFields, ownerHandle string) (uuid.UUID, error) {
	resource := &models.Resource{ID: id, Type: f.typ, CreatedAt: f.createdAt}
	applyResourceFields(resource, f, ownerHandle)
	if err := s.stores.Resources.Insert(ctx, resource); err != nil {
		return uuid.Nil, derrors.Wrap(err, derrors.CodeInternal, "insert projection row")
	}
	return resource.ID, nil
}

func applyResourceFields(resource *models.Resource, f resourceFields, ownerHandle string) {
	resource.Slug = f.slug
	resource.DisplayName = f.displayName
	resource.Summary = f.summary
	resource.OwnerUserID = f.ownerUserID
	resource.OwnerHandle = ownerHandle
	resource.SoftDeletedAt = f.softDeletedAt
	resource.ModerationStatus = f.moderationStatus
	resource.ModerationFlags = f.moderationFlags
	resource.Stats = f.stats
	resource.UpdatedAt = f.updatedAt
}

// resolveOwnerHandle snapshots the owner's handle onto the projection row. A
// missing owner leaves the snapshot empty rather than failing the sync.
func (s *Service) resolveOwnerHandle(ctx context.Context, ownerID uuid.UUID) (string, error) {
	owner, err := s.stores.Users.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		return "", derrors.Wrap(err, derrors.CodeInternal, "resolve owner handle")
	}
	return owner.Handle, nil
}
