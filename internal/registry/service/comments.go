package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"skillhub/internal/audit"
	"skillhub/internal/registry/models"
	derrors "skillhub/pkg/domain-errors"
)

// AddComment posts a comment on a skill and bumps the comment counter plus
// the projection row in the same unit of work.
func (s *Service) AddComment(ctx context.Context, skillSlug, body string) (*models.Comment, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, derrors.New(derrors.CodeBadRequest, "comment body is required")
	}

	skill, err := s.stores.Skills.FindBySlug(ctx, skillSlug)
	if err != nil {
		return nil, mapNotFound(err, "skill not found")
	}
	if skill.SoftDeletedAt != nil {
		return nil, derrors.New(derrors.CodeGone, "skill is deleted")
	}

	comment := &models.Comment{
		ID:        uuid.New(),
		SkillID:   skill.ID,
		UserID:    user.ID,
		Body:      body,
		CreatedAt: s.now(),
	}

	err = s.stores.Tx.RunInTx(ctx, skill.ID.String(), func(ctx context.Context) error {
		if err := s.stores.Comments.Create(ctx, comment); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "create comment")
		}
		return s.applySkillDeltasLocked(ctx, skill.ID, map[string]int64{StatComments: 1})
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// RemoveComment soft-deletes a comment. The author may remove their own
// comment; moderators may remove anyone's, which additionally lands in the
// audit log. Already-removed comments are left untouched.
func (s *Service) RemoveComment(ctx context.Context, commentID uuid.UUID) error {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}

	comment, err := s.stores.Comments.FindByID(ctx, commentID)
	if err != nil {
		return mapNotFound(err, "comment not found")
	}
	if comment.UserID != user.ID && !user.CanModerate() {
		return derrors.New(derrors.CodeForbidden, "cannot remove another user's comment")
	}
	if comment.SoftDeletedAt != nil {
		return nil
	}

	moderatorAction := comment.UserID != user.ID

	return s.stores.Tx.RunInTx(ctx, comment.SkillID.String(), func(ctx context.Context) error {
		now := s.now()
		comment.SoftDeletedAt = &now
		comment.DeletedBy = &user.ID
		if err := s.stores.Comments.Update(ctx, comment); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "update comment")
		}
		if err := s.applySkillDeltasLocked(ctx, comment.SkillID, map[string]int64{StatComments: -1}); err != nil {
			return err
		}
		if moderatorAction {
			_, err := s.audit.Append(ctx, audit.Entry{
				ActorUserID: user.ID,
				Action:      audit.ActionCommentDelete,
				TargetType:  audit.TargetComment,
				TargetID:    comment.ID,
				Metadata:    map[string]any{"skillId": comment.SkillID.String()},
				CreatedAt:   now,
			})
			if err != nil {
				return derrors.Wrap(err, derrors.CodeInternal, "audit comment removal")
			}
		}
		return nil
	})
}

// ListComments returns visible comments on a skill with their authors joined
// in, newest first. Soft-deleted comments and comments from deleted users are
// filtered out.
func (s *Service) ListComments(ctx context.Context, skillSlug string, limit int) ([]CommentView, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	skill, err := s.stores.Skills.FindBySlug(ctx, skillSlug)
	if err != nil {
		return nil, mapNotFound(err, "skill not found")
	}

	comments, err := s.stores.Comments.ListBySkill(ctx, skill.ID, limit)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "list comments")
	}

	views := make([]CommentView, 0, len(comments))
	for _, comment := range comments {
		if comment.SoftDeletedAt != nil {
			continue
		}
		author, err := s.stores.Users.FindByID(ctx, comment.UserID)
		if err != nil {
			continue
		}
		publicAuthor := models.ToPublicUser(author)
		if publicAuthor == nil {
			continue
		}
		views = append(views, CommentView{
			ID:        comment.ID,
			Body:      comment.Body,
			Author:    *publicAuthor,
			CreatedAt: comment.CreatedAt,
		})
	}
	return views, nil
}

// CommentView is a comment joined with its author's public profile.
type CommentView struct {
	ID        uuid.UUID         `json:"id"`
	Body      string            `json:"body"`
	Author    models.PublicUser `json:"author"`
	CreatedAt time.Time         `json:"createdAt"`
}

// applySkillDeltasLocked is ApplySkillDeltas for callers already inside the
// item's unit of work.
func (s *Service) applySkillDeltasLocked(ctx context.Context, skillID uuid.UUID, deltas map[string]int64) error {
	skill, err := s.stores.Skills.FindByID(ctx, skillID)
	if err != nil {
		return mapNotFound(err, "skill not found")
	}
	skill.Stats = ApplyDeltas(skill.Stats, deltas)
	skill.UpdatedAt = s.now()
	if err := s.stores.Skills.Update(ctx, skill); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "update skill stats")
	}
	return s.syncSkillResource(ctx, skill)
}
