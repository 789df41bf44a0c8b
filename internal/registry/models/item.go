package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemType discriminates the concrete content-item kinds sharing the
// resources projection table.
type ItemType string

const (
	TypeSkill ItemType = "skill"
	TypeSoul  ItemType = "soul"
)

// ModerationStatus values for content items.
const (
	ModerationActive  = "active"
	ModerationHidden  = "hidden"
	ModerationBlocked = "blocked"
)

// FlagBlockedMalware hides an item from all public surfaces regardless of
// moderation status.
const FlagBlockedMalware = "blocked.malware"

// Stats is the denormalized counter block carried by items and mirrored onto
// their projection row. Counters never go below zero.
type Stats struct {
	Downloads       int64 `json:"downloads"`
	Stars           int64 `json:"stars"`
	Comments        int64 `json:"comments"`
	Versions        int64 `json:"versions"`
	InstallsCurrent int64 `json:"installsCurrent,omitempty"`
	InstallsAllTime int64 `json:"installsAllTime,omitempty"`
}

// Skill is a versioned content package with downloadable file archives.
// Mutated only through the registry service so its projection row stays in
// step; never deleted in place except by an explicit hard delete.
type Skill struct {
	ID               uuid.UUID
	Slug             string
	DisplayName      string
	Summary          string
	OwnerUserID      uuid.UUID
	ResourceID       *uuid.UUID
	LatestVersionID  *uuid.UUID
	Tags             map[string]uuid.UUID
	SoftDeletedAt    *time.Time
	ModerationStatus string
	ModerationFlags  []string
	Stats            Stats
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Soul is the second content-item kind. Souls have no downloadable archives;
// clients report installs through the increment endpoint instead.
type Soul struct {
	ID               uuid.UUID
	Slug             string
	DisplayName      string
	Summary          string
	OwnerUserID      uuid.UUID
	ResourceID       *uuid.UUID
	LatestVersionID  *uuid.UUID
	SoftDeletedAt    *time.Time
	ModerationStatus string
	ModerationFlags  []string
	Stats            Stats
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasFlag reports whether the given moderation flag is present.
func HasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
