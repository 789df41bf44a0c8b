package audit

import (
	"context"

	"github.com/google/uuid"
)

// Store is the append-only audit log. Append requires no locking beyond the
// insert itself; reads go through the (targetType, targetId, action) index.
//
// Error contract: FindByTarget returns sentinel.ErrNotFound (wrapped) when no
// matching entry exists; infrastructure failures come back wrapped with
// context.
type Store interface {
	Append(ctx context.Context, entry Entry) (uuid.UUID, error)
	FindByTarget(ctx context.Context, targetType string, targetID uuid.UUID, action string) (*Entry, error)
	ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID, limit int) ([]Entry, error)
}
