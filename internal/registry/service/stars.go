package service

import (
	"context"
	"errors"

	"skillhub/internal/registry/models"
	derrors "skillhub/pkg/domain-errors"
	"skillhub/pkg/platform/sentinel"
)

// ToggleStar stars a skill for the acting user, or unstars it when already
// starred, and reports the resulting state. The star counter and projection
// row move in the same unit of work as the star row itself.
func (s *Service) ToggleStar(ctx context.Context, skillSlug string) (starred bool, err error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return false, err
	}

	skill, err := s.stores.Skills.FindBySlug(ctx, skillSlug)
	if err != nil {
		return false, mapNotFound(err, "skill not found")
	}
	if skill.SoftDeletedAt != nil {
		return false, derrors.New(derrors.CodeGone, "skill is deleted")
	}

	err = s.stores.Tx.RunInTx(ctx, skill.ID.String(), func(ctx context.Context) error {
		_, findErr := s.stores.Stars.Find(ctx, skill.ID, user.ID)
		switch {
		case findErr == nil:
			if err := s.stores.Stars.Delete(ctx, skill.ID, user.ID); err != nil {
				return derrors.Wrap(err, derrors.CodeInternal, "delete star")
			}
			starred = false
			return s.applySkillDeltasLocked(ctx, skill.ID, map[string]int64{StatStars: -1})
		case errors.Is(findErr, sentinel.ErrNotFound):
			star := &models.Star{SkillID: skill.ID, UserID: user.ID, CreatedAt: s.now()}
			if err := s.stores.Stars.Create(ctx, star); err != nil {
				// Lost a toggle race; the other request counted it.
				if errors.Is(err, sentinel.ErrConflict) {
					starred = true
					return nil
				}
				return derrors.Wrap(err, derrors.CodeInternal, "create star")
			}
			starred = true
			return s.applySkillDeltasLocked(ctx, skill.ID, map[string]int64{StatStars: 1})
		default:
			return derrors.Wrap(findErr, derrors.CodeInternal, "find star")
		}
	})
	return starred, err
}

// IsStarred reports whether the acting user has starred the skill.
func (s *Service) IsStarred(ctx context.Context, skillSlug string) (bool, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return false, err
	}
	skill, err := s.stores.Skills.FindBySlug(ctx, skillSlug)
	if err != nil {
		return false, mapNotFound(err, "skill not found")
	}
	_, err = s.stores.Stars.Find(ctx, skill.ID, user.ID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return false, derrors.Wrap(err, derrors.CodeInternal, "find star")
}

// ListStarredSkills returns the public projection rows of skills the acting
// user has starred, skipping anything no longer publicly visible.
func (s *Service) ListStarredSkills(ctx context.Context, limit int) ([]models.PublicResource, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	stars, err := s.stores.Stars.ListByUser(ctx, user.ID, limit)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "list stars")
	}

	results := make([]models.PublicResource, 0, len(stars))
	for _, star := range stars {
		skill, err := s.stores.Skills.FindByID(ctx, star.SkillID)
		if err != nil || skill.ResourceID == nil {
			continue
		}
		resource, err := s.stores.Resources.FindByID(ctx, *skill.ResourceID)
		if err != nil {
			continue
		}
		if public := models.ToPublicResource(resource); public != nil {
			results = append(results, *public)
		}
	}
	return results, nil
}
