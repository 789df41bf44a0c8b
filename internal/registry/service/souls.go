package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"skillhub/internal/registry/models"
	derrors "skillhub/pkg/domain-errors"
	"skillhub/pkg/platform/sentinel"
)

// CreateSoulInput carries the author-supplied fields of a new soul.
type CreateSoulInput struct {
	Slug        string
	DisplayName string
	Summary     string
}

// CreateSoul registers a soul owned by the acting user, projected on create
// like skills.
func (s *Service) CreateSoul(ctx context.Context, input CreateSoulInput) (*models.Soul, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	slug := strings.TrimSpace(strings.ToLower(input.Slug))
	if slug == "" {
		return nil, derrors.New(derrors.CodeBadRequest, "slug is required")
	}

	now := s.now()
	soul := &models.Soul{
		ID:               uuid.New(),
		Slug:             slug,
		DisplayName:      input.DisplayName,
		Summary:          input.Summary,
		OwnerUserID:      user.ID,
		ModerationStatus: models.ModerationActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.stores.Tx.RunInTx(ctx, soul.ID.String(), func(ctx context.Context) error {
		if err := s.stores.Souls.Create(ctx, soul); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return derrors.New(derrors.CodeConflict, "slug already in use")
			}
			return derrors.Wrap(err, derrors.CodeInternal, "create soul")
		}
		return s.syncSoulResource(ctx, soul)
	})
	if err != nil {
		return nil, err
	}
	return soul, nil
}

// IncrementSoulInstalls records one install report from a client. Installs
// bump both the current and all-time counters; uninstall reports decrement
// only the current counter, clamped at zero.
func (s *Service) IncrementSoulInstalls(ctx context.Context, slug string, uninstall bool) error {
	soul, err := s.stores.Souls.FindBySlug(ctx, slug)
	if err != nil {
		return mapNotFound(err, "soul not found")
	}
	if soul.SoftDeletedAt != nil {
		return derrors.New(derrors.CodeGone, "soul is deleted")
	}

	deltas := map[string]int64{StatInstallsCurrent: 1, StatInstallsAllTime: 1}
	if uninstall {
		deltas = map[string]int64{StatInstallsCurrent: -1}
	}
	return s.ApplySoulDeltas(ctx, soul.ID, deltas)
}

// SetSoulHidden mirrors SetSkillHidden for souls.
func (s *Service) SetSoulHidden(ctx context.Context, slug string, hidden bool) error {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	soul, err := s.stores.Souls.FindBySlug(ctx, slug)
	if err != nil {
		return mapNotFound(err, "soul not found")
	}
	if soul.OwnerUserID != user.ID && !user.CanModerate() {
		return derrors.New(derrors.CodeForbidden, "only the owner can change visibility")
	}

	return s.stores.Tx.RunInTx(ctx, soul.ID.String(), func(ctx context.Context) error {
		soul, err := s.stores.Souls.FindByID(ctx, soul.ID)
		if err != nil {
			return mapNotFound(err, "soul not found")
		}
		now := s.now()
		if hidden {
			if soul.SoftDeletedAt != nil {
				return nil
			}
			soul.SoftDeletedAt = &now
		} else {
			if soul.SoftDeletedAt == nil {
				return nil
			}
			soul.SoftDeletedAt = nil
		}
		soul.UpdatedAt = now
		if err := s.stores.Souls.Update(ctx, soul); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "update soul")
		}
		return s.syncSoulResource(ctx, soul)
	})
}

// GetSoulBySlug loads a soul for internal use; callers decide visibility.
func (s *Service) GetSoulBySlug(ctx context.Context, slug string) (*models.Soul, error) {
	soul, err := s.stores.Souls.FindBySlug(ctx, slug)
	if err != nil {
		return nil, mapNotFound(err, "soul not found")
	}
	return soul, nil
}
