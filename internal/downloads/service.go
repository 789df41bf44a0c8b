// Package downloads implements skill archive delivery and the abuse
// mitigations around its download counter: per-client-per-day dedupe, a
// sliding-window rate limit, and background pruning of expired dedupe rows.
// Mitigations shape the counter only; the archive itself is always served to
// any client that may see the skill.
package downloads

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"skillhub/internal/platform/config"
	"skillhub/internal/ratelimit"
	"skillhub/internal/registry/models"
	"skillhub/internal/registry/service"
	"skillhub/internal/registry/store"
	"skillhub/pkg/platform/sentinel"
)

type Service struct {
	registry *service.Service
	stores   store.Stores
	limiter  ratelimit.Limiter
	hasher   *IPHasher
	metrics  *Metrics
	log      *slog.Logger
	cfg      config.Downloads
	now      func() time.Time
}

func NewService(registry *service.Service, limiter ratelimit.Limiter, hasher *IPHasher, metrics *Metrics, log *slog.Logger, cfg config.Downloads) *Service {
	return &Service{
		registry: registry,
		stores:   registry.Stores(),
		limiter:  limiter,
		hasher:   hasher,
		metrics:  metrics,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CountDownload applies the abuse mitigations and, when the request passes
// both, bumps the skill's download counter and projection row. The caller
// serves the archive regardless of the outcome; failures here never block
// delivery.
//
// Order matters: the rate limit gate runs first and a denied hit is not
// recorded in the dedupe table, so a client backing off and retrying later
// can still be counted that day. An unattributable client (no usable IP)
// is served without counting.
func (s *Service) CountDownload(ctx context.Context, skillID uuid.UUID, clientIP string) {
	ipHash := s.hasher.Hash(clientIP)
	if ipHash == "" {
		s.metrics.CountSkipped("no_ip")
		return
	}

	result, err := s.limiter.Allow(ctx, ratelimit.DownloadKey(skillID.String(), ipHash), s.cfg.RateLimit, s.cfg.RateWindow)
	if err != nil {
		// Limiter outage: serve without counting rather than guess.
		s.log.Warn("rate limiter unavailable", "error", err)
		s.metrics.CountSkipped("limiter_error")
		return
	}
	if !result.Allowed {
		s.metrics.CountSkipped("rate_limited")
		return
	}

	now := s.now()
	rec := &models.DownloadDedupe{
		SkillID:   skillID,
		IPHash:    ipHash,
		DayStart:  DayStart(now),
		CreatedAt: now,
	}

	// Dedupe row, counter, and projection row commit together; a conflict on
	// the dedupe key means another request already counted this client today.
	err = s.stores.Tx.RunInTx(ctx, skillID.String(), func(ctx context.Context) error {
		if err := s.stores.Dedupes.Create(ctx, rec); err != nil {
			return err
		}
		skill, err := s.stores.Skills.FindByID(ctx, skillID)
		if err != nil {
			return err
		}
		skill.Stats = service.ApplyDeltas(skill.Stats, map[string]int64{service.StatDownloads: 1})
		skill.UpdatedAt = now
		if err := s.stores.Skills.Update(ctx, skill); err != nil {
			return err
		}
		return s.registry.SyncSkill(ctx, skill)
	})
	switch {
	case err == nil:
		s.metrics.CountRecorded()
	case errors.Is(err, sentinel.ErrConflict):
		s.metrics.CountSkipped("deduped")
	default:
		s.log.Error("download counter update failed", "error", err, "skill_id", skillID)
		s.metrics.CountSkipped("count_error")
	}
}
