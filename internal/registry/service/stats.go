package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"skillhub/internal/registry/models"
	derrors "skillhub/pkg/domain-errors"
	"skillhub/pkg/platform/sentinel"
)

// Stat delta keys accepted by ApplyDeltas.
const (
	StatDownloads       = "downloads"
	StatStars           = "stars"
	StatComments        = "comments"
	StatVersions        = "versions"
	StatInstallsCurrent = "installsCurrent"
	StatInstallsAllTime = "installsAllTime"
)

// ApplyDeltas returns a copy of stats with the deltas applied. Negative
// results clamp to zero per counter; unknown keys are ignored. The input is
// never mutated.
func ApplyDeltas(stats models.Stats, deltas map[string]int64) models.Stats {
	for key, delta := range deltas {
		switch key {
		case StatDownloads:
			stats.Downloads = clampZero(stats.Downloads + delta)
		case StatStars:
			stats.Stars = clampZero(stats.Stars + delta)
		case StatComments:
			stats.Comments = clampZero(stats.Comments + delta)
		case StatVersions:
			stats.Versions = clampZero(stats.Versions + delta)
		case StatInstallsCurrent:
			stats.InstallsCurrent = clampZero(stats.InstallsCurrent + delta)
		case StatInstallsAllTime:
			stats.InstallsAllTime = clampZero(stats.InstallsAllTime + delta)
		}
	}
	return stats
}

func clampZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// ApplySkillDeltas mutates a skill's counters and rewrites its projection row
// in the same unit of work.
func (s *Service) ApplySkillDeltas(ctx context.Context, skillID uuid.UUID, deltas map[string]int64) error {
	return s.stores.Tx.RunInTx(ctx, skillID.String(), func(ctx context.Context) error {
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
	})
}

// ApplySoulDeltas mirrors ApplySkillDeltas for souls.
func (s *Service) ApplySoulDeltas(ctx context.Context, soulID uuid.UUID, deltas map[string]int64) error {
	return s.stores.Tx.RunInTx(ctx, soulID.String(), func(ctx context.Context) error {
		soul, err := s.stores.Souls.FindByID(ctx, soulID)
		if err != nil {
			return mapNotFound(err, "soul not found")
		}
		soul.Stats = ApplyDeltas(soul.Stats, deltas)
		soul.UpdatedAt = s.now()
		if err := s.stores.Souls.Update(ctx, soul); err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "update soul stats")
		}
		return s.syncSoulResource(ctx, soul)
	})
}

func mapNotFound(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return derrors.New(derrors.CodeNotFound, msg)
	}
	return derrors.Wrap(err, derrors.CodeInternal, msg)
}
