// Package moderation implements the moderator-facing lifecycle transitions:
// banning users, hiding and restoring content items, taking down versions,
// and the hard deletes that remove an item together with its projection row.
// Every moderator action lands in the audit log before the operation is
// considered complete; a failed action leaves no partial state behind.
package moderation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"skillhub/internal/audit"
	"skillhub/internal/registry/models"
	"skillhub/internal/registry/service"
	"skillhub/internal/registry/store"
	derrors "skillhub/pkg/domain-errors"
	"skillhub/pkg/platform/sentinel"
)

type Service struct {
	registry *service.Service
	stores   store.Stores
	audit    audit.Store
	log      *slog.Logger
	now      func() time.Time
}

func New(registry *service.Service, auditStore audit.Store, log *slog.Logger) *Service {
	return &Service{
		registry: registry,
		stores:   registry.Stores(),
		audit:    auditStore,
		log:      log,
		now:      time.Now,
	}
}

// BanUser soft-deletes an account by moderator action and records the ban in
// the audit log. The user row itself carries no ban marker; the audit entry
// is what later distinguishes this from a self-service deletion. Banning an
// already-deleted user only appends the audit entry, converting a pending
// self-deletion into a ban.
func (s *Service) BanUser(ctx context.Context, targetID uuid.UUID, reason string) error {
	actor, err := s.registry.RequireModerator(ctx)
	if err != nil {
		return err
	}
	if actor.ID == targetID {
		return derrors.New(derrors.CodeBadRequest, "cannot ban yourself")
	}

	target, err := s.stores.Users.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.New(derrors.CodeNotFound, "user not found")
		}
		return derrors.Wrap(err, derrors.CodeInternal, "find user")
	}

	return s.stores.Tx.RunInTx(ctx, targetID.String(), func(ctx context.Context) error {
		now := s.now()
		if target.DeletedAt == nil {
			target.DeletedAt = &now
			target.UpdatedAt = now
			if err := s.stores.Users.Update(ctx, target); err != nil {
				return derrors.Wrap(err, derrors.CodeInternal, "soft delete user")
			}
		}
		_, err := s.audit.Append(ctx, audit.Entry{
			ActorUserID: actor.ID,
			Action:      audit.ActionUserBan,
			TargetType:  audit.TargetUser,
			TargetID:    targetID,
			Metadata:    map[string]any{"reason": reason},
			CreatedAt:   now,
		})
		if err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "audit ban")
		}
		s.log.Info("user banned", "target_id", targetID, "actor_id", actor.ID)
		return nil
	})
}

// DeleteOwnAccount soft-deletes the acting user's account. No audit entry is
// written; its absence is what marks the deletion as self-service and lets
// the account revive on the next sign-in.
func (s *Service) DeleteOwnAccount(ctx context.Context) error {
	user, err := s.registry.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if user.DeletedAt != nil {
		return nil
	}
	now := s.now()
	user.DeletedAt = &now
	user.UpdatedAt = now
	if err := s.stores.Users.Update(ctx, user); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "soft delete account")
	}
	s.log.Info("account self-deleted", "user_id", user.ID)
	return nil
}

// ModerationUpdate is one moderator edit to an item's lifecycle state. Nil
// fields are left unchanged.
type ModerationUpdate struct {
	Status     *string
	AddFlags   []string
	ClearFlags []string
	SoftDelete *bool
}

// UpdateSkillModeration applies a moderation update to a skill and rewrites
// its projection row in the same unit of work, then records the edit.
func (s *Service) UpdateSkillModeration(ctx context.Context, skillID uuid.UUID, update ModerationUpdate) error {
	actor, err := s.registry.RequireModerator(ctx)
	if err != nil {
		return err
	}
	if err := validateStatus(update.Status); err != nil {
		return err
	}

	return s.stores.Tx.RunInTx(ctx, skillID.String(), func(ctx context.Context) error {
		skill, err := s.stores.Skills.FindByID(ctx, skillID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return derrors.New(derrors.CodeNotFound, "skill not found")
			}
			return derrors.Wrap(err, derrors.CodeInternal, "find skill")
		}

		now := s.now()
		applyUpdate(&skill.ModerationStatus, &skill.ModerationFlags, &skill.SoftDeletedAt, update, now)
		skill.UpdatedAt = now
		if err := s.stores.Skills.Update(ctx, skill); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "update skill")
		}
		if err := s.registry.SyncSkill(ctx, skill); err != nil {
			return err
		}
		return s.appendModerationAudit(ctx, actor.ID, audit.TargetSkill, skillID, update, now)
	})
}

// UpdateSoulModeration mirrors UpdateSkillModeration for souls.
func (s *Service) UpdateSoulModeration(ctx context.Context, soulID uuid.UUID, update ModerationUpdate) error {
	actor, err := s.registry.RequireModerator(ctx)
	if err != nil {
		return err
	}
	if err := validateStatus(update.Status); err != nil {
		return err
	}

	return s.stores.Tx.RunInTx(ctx, soulID.String(), func(ctx context.Context) error {
		soul, err := s.stores.Souls.FindByID(ctx, soulID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return derrors.New(derrors.CodeNotFound, "soul not found")
			}
			return derrors.Wrap(err, derrors.CodeInternal, "find soul")
		}

		now := s.now()
		applyUpdate(&soul.ModerationStatus, &soul.ModerationFlags, &soul.SoftDeletedAt, update, now)
		soul.UpdatedAt = now
		if err := s.stores.Souls.Update(ctx, soul); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "update soul")
		}
		if err := s.registry.SyncSoul(ctx, soul); err != nil {
			return err
		}
		return s.appendModerationAudit(ctx, actor.ID, audit.TargetSoul, soulID, update, now)
	})
}

// TakeDownVersion soft-deletes one release so downloads of it report gone
// while the skill and its other versions stay live.
func (s *Service) TakeDownVersion(ctx context.Context, versionID uuid.UUID, reason string) error {
	actor, err := s.registry.RequireModerator(ctx)
	if err != nil {
		return err
	}

	version, err := s.stores.Versions.FindByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.New(derrors.CodeNotFound, "version not found")
		}
		return derrors.Wrap(err, derrors.CodeInternal, "find version")
	}
	if version.SoftDeletedAt != nil {
		return nil
	}

	return s.stores.Tx.RunInTx(ctx, version.SkillID.String(), func(ctx context.Context) error {
		now := s.now()
		version.SoftDeletedAt = &now
		if err := s.updateVersion(ctx, version); err != nil {
			return err
		}
		_, err := s.audit.Append(ctx, audit.Entry{
			ActorUserID: actor.ID,
			Action:      audit.ActionVersionTakedown,
			TargetType:  audit.TargetVersion,
			TargetID:    versionID,
			Metadata:    map[string]any{"reason": reason, "skillId": version.SkillID.String()},
			CreatedAt:   now,
		})
		if err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "audit takedown")
		}
		return nil
	})
}

// HardDeleteSkill removes a skill and its projection row permanently. Admin
// only; the audit entry is the sole surviving record.
func (s *Service) HardDeleteSkill(ctx context.Context, skillID uuid.UUID, reason string) error {
	actor, err := s.registry.RequireAdmin(ctx)
	if err != nil {
		return err
	}

	return s.stores.Tx.RunInTx(ctx, skillID.String(), func(ctx context.Context) error {
		skill, err := s.stores.Skills.FindByID(ctx, skillID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return derrors.New(derrors.CodeNotFound, "skill not found")
			}
			return derrors.Wrap(err, derrors.CodeInternal, "find skill")
		}
		if skill.ResourceID != nil {
			if err := s.stores.Resources.Delete(ctx, *skill.ResourceID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return derrors.Wrap(err, derrors.CodeInternal, "delete projection row")
			}
		}
		if err := s.stores.Skills.Delete(ctx, skillID); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "delete skill")
		}
		_, err = s.audit.Append(ctx, audit.Entry{
			ActorUserID: actor.ID,
			Action:      audit.ActionSkillHardDelete,
			TargetType:  audit.TargetSkill,
			TargetID:    skillID,
			Metadata:    map[string]any{"reason": reason, "slug": skill.Slug},
			CreatedAt:   s.now(),
		})
		if err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "audit hard delete")
		}
		s.log.Info("skill hard deleted", "skill_id", skillID, "actor_id", actor.ID)
		return nil
	})
}

// HardDeleteSoul mirrors HardDeleteSkill for souls.
func (s *Service) HardDeleteSoul(ctx context.Context, soulID uuid.UUID, reason string) error {
	actor, err := s.registry.RequireAdmin(ctx)
	if err != nil {
		return err
	}

	return s.stores.Tx.RunInTx(ctx, soulID.String(), func(ctx context.Context) error {
		soul, err := s.stores.Souls.FindByID(ctx, soulID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return derrors.New(derrors.CodeNotFound, "soul not found")
			}
			return derrors.Wrap(err, derrors.CodeInternal, "find soul")
		}
		if soul.ResourceID != nil {
			if err := s.stores.Resources.Delete(ctx, *soul.ResourceID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return derrors.Wrap(err, derrors.CodeInternal, "delete projection row")
			}
		}
		if err := s.stores.Souls.Delete(ctx, soulID); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "delete soul")
		}
		_, err = s.audit.Append(ctx, audit.Entry{
			ActorUserID: actor.ID,
			Action:      audit.ActionSoulHardDelete,
			TargetType:  audit.TargetSoul,
			TargetID:    soulID,
			Metadata:    map[string]any{"reason": reason, "slug": soul.Slug},
			CreatedAt:   s.now(),
		})
		if err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "audit hard delete")
		}
		return nil
	})
}

func (s *Service) appendModerationAudit(ctx context.Context, actorID uuid.UUID, targetType string, targetID uuid.UUID, update ModerationUpdate, at time.Time) error {
	metadata := map[string]any{}
	if update.Status != nil {
		metadata["status"] = *update.Status
	}
	if len(update.AddFlags) > 0 {
		metadata["addFlags"] = update.AddFlags
	}
	if len(update.ClearFlags) > 0 {
		metadata["clearFlags"] = update.ClearFlags
	}
	if update.SoftDelete != nil {
		metadata["softDelete"] = *update.SoftDelete
	}
	_, err := s.audit.Append(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionModerationUpdate,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    metadata,
		CreatedAt:   at,
	})
	if err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "audit moderation update")
	}
	return nil
}

func validateStatus(status *string) error {
	if status == nil {
		return nil
	}
	switch *status {
	case models.ModerationActive, models.ModerationHidden, models.ModerationBlocked:
		return nil
	default:
		return derrors.New(derrors.CodeBadRequest, "unknown moderation status")
	}
}

func applyUpdate(status *string, flags *[]string, softDeletedAt **time.Time, update ModerationUpdate, now time.Time) {
	if update.Status != nil {
		*status = *update.Status
	}
	for _, flag := range update.AddFlags {
		if !models.HasFlag(*flags, flag) {
			*flags = append(*flags, flag)
		}
	}
	if len(update.ClearFlags) > 0 {
		kept := (*flags)[:0]
		for _, flag := range *flags {
			if !contains(update.ClearFlags, flag) {
				kept = append(kept, flag)
			}
		}
		*flags = kept
	}
	if update.SoftDelete != nil {
		if *update.SoftDelete {
			if *softDeletedAt == nil {
				at := now
				*softDeletedAt = &at
			}
		} else {
			*softDeletedAt = nil
		}
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s *Service) updateVersion(ctx context.Context, version *models.Version) error {
	if err := s.stores.Versions.Update(ctx, version); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "update version")
	}
	return nil
}
