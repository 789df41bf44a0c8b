package models

import (
	"time"

	"github.com/google/uuid"
)

// Version is one published release of a skill. Files map archive paths to
// blob storage keys; the archive itself is assembled on demand by the
// download endpoint.
type Version struct {
	ID            uuid.UUID
	SkillID       uuid.UUID
	Version       string
	Files         []VersionFile
	SoftDeletedAt *time.Time
	CreatedAt     time.Time
}

// VersionFile is one member of a version's archive.
type VersionFile struct {
	Path    string `json:"path"`
	BlobKey string `json:"blobKey"`
}

// Comment carries SoftDeletedAt for moderation removal rather than hard
// delete, so the audit trail keeps a target to point at.
type Comment struct {
	ID            uuid.UUID
	SkillID       uuid.UUID
	UserID        uuid.UUID
	Body          string
	SoftDeletedAt *time.Time
	DeletedBy     *uuid.UUID
	CreatedAt     time.Time
}

// Star is unique per (skill, user).
type Star struct {
	SkillID   uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
}

// DownloadDedupe marks one counted download per (skill, hashed IP, UTC day).
// DayStart is the UTC-day floor in Unix milliseconds; together with the hash
// it is a persisted key and must stay stable across deploys.
type DownloadDedupe struct {
	SkillID   uuid.UUID
	IPHash    string
	DayStart  int64
	CreatedAt time.Time
}
