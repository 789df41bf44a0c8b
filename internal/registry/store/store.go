package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"skillhub/internal/registry/models"
)

// Stores are interface-driven to keep the domain logic testable and to allow
// swapping the in-memory implementation for PostgreSQL without rewiring
// business code.
//
// Error contract, all implementations:
// - Return sentinel.ErrNotFound (wrapped) when the requested record does not exist
// - Return sentinel.ErrConflict (wrapped) when a unique constraint rejects a write
// - Return wrapped errors with context for infrastructure failures

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByHandle(ctx context.Context, handle string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type SkillStore interface {
	Create(ctx context.Context, skill *models.Skill) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Skill, error)
	FindBySlug(ctx context.Context, slug string) (*models.Skill, error)
	Update(ctx context.Context, skill *models.Skill) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SoulStore interface {
	Create(ctx context.Context, soul *models.Soul) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Soul, error)
	FindBySlug(ctx context.Context, slug string) (*models.Soul, error)
	Update(ctx context.Context, soul *models.Soul) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type VersionStore interface {
	Create(ctx context.Context, version *models.Version) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Version, error)
	FindBySkillAndVersion(ctx context.Context, skillID uuid.UUID, version string) (*models.Version, error)
	Update(ctx context.Context, version *models.Version) error
	ListBySkill(ctx context.Context, skillID uuid.UUID) ([]models.Version, error)
}

type ResourceStore interface {
	Insert(ctx context.Context, resource *models.Resource) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Resource, error)
	FindByTypeSlug(ctx context.Context, typ models.ItemType, slug string) (*models.Resource, error)
	// ListPage returns active rows of one type in reverse-chronological
	// updatedAt order; pass a zero before for the first page.
	ListPage(ctx context.Context, typ models.ItemType, limit int, before time.Time) ([]models.Resource, error)
	ListByOwner(ctx context.Context, typ models.ItemType, ownerID uuid.UUID, limit int) ([]models.Resource, error)
	Update(ctx context.Context, resource *models.Resource) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CommentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	ListBySkill(ctx context.Context, skillID uuid.UUID, limit int) ([]models.Comment, error)
}

type StarStore interface {
	Find(ctx context.Context, skillID, userID uuid.UUID) (*models.Star, error)
	Create(ctx context.Context, star *models.Star) error
	Delete(ctx context.Context, skillID, userID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Star, error)
}

type DedupeStore interface {
	// Create returns sentinel.ErrConflict when the (skill, ipHash, dayStart)
	// key already exists; callers treat that as "already counted".
	Create(ctx context.Context, rec *models.DownloadDedupe) error
	// PruneBefore deletes at most limit records with DayStart < cutoff and
	// reports how many went away.
	PruneBefore(ctx context.Context, cutoff int64, limit int) (int64, error)
}

// Tx wraps one externally triggered operation into an indivisible unit of
// work. The PostgreSQL implementation opens a database transaction; the
// in-memory implementation takes a sharded lock keyed by the item being
// mutated so writes to different items never block each other.
type Tx interface {
	RunInTx(ctx context.Context, itemKey string, fn func(ctx context.Context) error) error
}

// Stores bundles every store interface plus the transaction boundary.
type Stores struct {
	Tx        Tx
	Users     UserStore
	Skills    SkillStore
	Souls     SoulStore
	Versions  VersionStore
	Resources ResourceStore
	Comments  CommentStore
	Stars     StarStore
	Dedupes   DedupeStore
}
