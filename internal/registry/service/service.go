package service

import (
	"log/slog"
	"time"

	"skillhub/internal/audit"
	"skillhub/internal/platform/config"
	"skillhub/internal/registry/store"
)

// Service owns every mutation of content items and their projection rows.
// Handlers never touch the stores directly; routing all writes through here
// is what keeps item state and projection state equal after each operation.
type Service struct {
	stores store.Stores
	audit  audit.Store
	log    *slog.Logger

	bypassEnabled bool
	bypassHandle  string

	now func() time.Time
}

func New(stores store.Stores, auditStore audit.Store, log *slog.Logger, cfg config.Server) *Service {
	return &Service{
		stores:        stores,
		audit:         auditStore,
		log:           log,
		bypassEnabled: cfg.AuthBypassEnabled,
		bypassHandle:  cfg.AuthBypassHandle,
		now:           time.Now,
	}
}

// Stores exposes the underlying store bundle to collaborating services that
// share the same transaction boundary.
func (s *Service) Stores() store.Stores {
	return s.stores
}
