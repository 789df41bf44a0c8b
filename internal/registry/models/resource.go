package models

import (
	"time"

	"github.com/google/uuid"
)

// Resource is the denormalized cross-type projection row backing unified
// listing and search. Exactly one row exists per item whose ResourceID is set;
// its stats and lifecycle flags equal the source item's immediately after any
// operation that touches either.
//
// OwnerHandle is a snapshot resolved when the row is rewritten. It may lag a
// user's handle change until the next item mutation; that staleness is
// documented behavior, not a bug.
type Resource struct {
	ID               uuid.UUID
	Type             ItemType
	Slug             string
	DisplayName      string
	Summary          string
	OwnerUserID      uuid.UUID
	OwnerHandle      string
	SoftDeletedAt    *time.Time
	ModerationStatus string
	ModerationFlags  []string
	Stats            Stats
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicResource is the listing view exposed to search and page collaborators.
type PublicResource struct {
	ID          uuid.UUID `json:"id"`
	Type        ItemType  `json:"type"`
	Slug        string    `json:"slug"`
	DisplayName string    `json:"displayName"`
	Summary     string    `json:"summary"`
	OwnerUserID uuid.UUID `json:"ownerUserId"`
	OwnerHandle string    `json:"ownerHandle"`
	Stats       Stats     `json:"stats"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ToPublicResource maps a projection row to its public view, hiding
// soft-deleted and moderation-blocked rows.
func ToPublicResource(r *Resource) *PublicResource {
	if r == nil || r.SoftDeletedAt != nil {
		return nil
	}
	if r.ModerationStatus != "" && r.ModerationStatus != ModerationActive {
		return nil
	}
	if HasFlag(r.ModerationFlags, FlagBlockedMalware) {
		return nil
	}
	return &PublicResource{
		ID:          r.ID,
		Type:        r.Type,
		Slug:        r.Slug,
		DisplayName: r.DisplayName,
		Summary:     r.Summary,
		OwnerUserID: r.OwnerUserID,
		OwnerHandle: r.OwnerHandle,
		Stats:       r.Stats,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
