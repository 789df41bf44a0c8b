package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"skillhub/internal/registry/models"
	derrors "skillhub/pkg/domain-errors"
	"skillhub/pkg/platform/sentinel"
)

// CreateSkillInput carries the author-supplied fields of a new skill.
type CreateSkillInput struct {
	Slug        string
	DisplayName string
	Summary     string
}

// CreateSkill registers a skill owned by the acting user and projects it
// immediately so it shows up in listings without waiting for a later write.
func (s *Service) CreateSkill(ctx context.Context, input CreateSkillInput) (*models.Skill, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	slug := strings.TrimSpace(strings.ToLower(input.Slug))
	if slug == "" {
		return nil, derrors.New(derrors.CodeBadRequest, "slug is required")
	}

	now := s.now()
	skill := &models.Skill{
		ID:               uuid.New(),
		Slug:             slug,
		DisplayName:      input.DisplayName,
		Summary:          input.Summary,
		OwnerUserID:      user.ID,
		Tags:             map[string]uuid.UUID{},
		ModerationStatus: models.ModerationActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.stores.Tx.RunInTx(ctx, skill.ID.String(), func(ctx context.Context) error {
		if err := s.stores.Skills.Create(ctx, skill); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return derrors.New(derrors.CodeConflict, "slug already in use")
			}
			return derrors.Wrap(err, derrors.CodeInternal, "create skill")
		}
		return s.syncSkillResource(ctx, skill)
	})
	if err != nil {
		return nil, err
	}
	return skill, nil
}

// PublishVersionInput carries one release of a skill.
type PublishVersionInput struct {
	SkillID uuid.UUID
	Version string
	Files   []models.VersionFile
	Tags    []string
}

// PublishVersion records a release, bumps the version counter, retargets the
// requested tags plus latest, and rewrites the projection row. Only the
// owner may publish.
func (s *Service) PublishVersion(ctx context.Context, input PublishVersionInput) (*models.Version, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := semver.NewVersion(input.Version); err != nil {
		return nil, derrors.New(derrors.CodeBadRequest, "version is not valid semver")
	}

	now := s.now()
	version := &models.Version{
		ID:        uuid.New(),
		SkillID:   input.SkillID,
		Version:   input.Version,
		Files:     input.Files,
		CreatedAt: now,
	}

	err = s.stores.Tx.RunInTx(ctx, input.SkillID.String(), func(ctx context.Context) error {
		skill, err := s.stores.Skills.FindByID(ctx, input.SkillID)
		if err != nil {
			return mapNotFound(err, "skill not found")
		}
		if skill.OwnerUserID != user.ID && !user.CanModerate() {
			return derrors.New(derrors.CodeForbidden, "only the owner can publish")
		}
		if skill.SoftDeletedAt != nil {
			return derrors.New(derrors.CodeGone, "skill is deleted")
		}

		if err := s.stores.Versions.Create(ctx, version); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return derrors.New(derrors.CodeConflict, "version already published")
			}
			return derrors.Wrap(err, derrors.CodeInternal, "create version")
		}

		if skill.Tags == nil {
			skill.Tags = map[string]uuid.UUID{}
		}
		skill.Tags["latest"] = version.ID
		for _, tag := range input.Tags {
			skill.Tags[tag] = version.ID
		}
		skill.LatestVersionID = &version.ID
		skill.Stats = ApplyDeltas(skill.Stats, map[string]int64{StatVersions: 1})
		skill.UpdatedAt = now
		if err := s.stores.Skills.Update(ctx, skill); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "update skill")
		}
		return s.syncSkillResource(ctx, skill)
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// SetSkillHidden toggles the skill's soft-delete marker. The owner may hide
// and restore their own item; moderators may do it for anyone. No audit entry
// is written here; moderation actions go through the moderation service.
func (s *Service) SetSkillHidden(ctx context.Context, slug string, hidden bool) error {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	skill, err := s.stores.Skills.FindBySlug(ctx, slug)
	if err != nil {
		return mapNotFound(err, "skill not found")
	}
	if skill.OwnerUserID != user.ID && !user.CanModerate() {
		return derrors.New(derrors.CodeForbidden, "only the owner can change visibility")
	}

	return s.stores.Tx.RunInTx(ctx, skill.ID.String(), func(ctx context.Context) error {
		skill, err := s.stores.Skills.FindByID(ctx, skill.ID)
		if err != nil {
			return mapNotFound(err, "skill not found")
		}
		now := s.now()
		if hidden {
			if skill.SoftDeletedAt != nil {
				return nil
			}
			skill.SoftDeletedAt = &now
		} else {
			if skill.SoftDeletedAt == nil {
				return nil
			}
			skill.SoftDeletedAt = nil
		}
		skill.UpdatedAt = now
		if err := s.stores.Skills.Update(ctx, skill); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "update skill")
		}
		return s.syncSkillResource(ctx, skill)
	})
}

// ResolveVersion turns a version selector into a concrete release. Selector
// precedence: exact version string, then tag name, then the latest tag when
// the selector is empty.
func (s *Service) ResolveVersion(ctx context.Context, skill *models.Skill, selector string) (*models.Version, error) {
	if selector != "" {
		if _, err := semver.NewVersion(selector); err == nil {
			version, err := s.stores.Versions.FindBySkillAndVersion(ctx, skill.ID, selector)
			if err == nil {
				return version, nil
			}
			if !errors.Is(err, sentinel.ErrNotFound) {
				return nil, derrors.Wrap(err, derrors.CodeInternal, "resolve version")
			}
		}
		if versionID, ok := skill.Tags[selector]; ok {
			return s.findVersionByID(ctx, versionID)
		}
		return nil, derrors.New(derrors.CodeNotFound, "version not found")
	}

	if versionID, ok := skill.Tags["latest"]; ok {
		return s.findVersionByID(ctx, versionID)
	}
	if skill.LatestVersionID != nil {
		return s.findVersionByID(ctx, *skill.LatestVersionID)
	}
	return nil, derrors.New(derrors.CodeNotFound, "skill has no published versions")
}

func (s *Service) findVersionByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	version, err := s.stores.Versions.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "version not found")
	}
	return version, nil
}

// GetSkillBySlug loads a skill for internal use; callers decide visibility.
func (s *Service) GetSkillBySlug(ctx context.Context, slug string) (*models.Skill, error) {
	skill, err := s.stores.Skills.FindBySlug(ctx, slug)
	if err != nil {
		return nil, mapNotFound(err, "skill not found")
	}
	return skill, nil
}
