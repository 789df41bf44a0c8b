package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the audit log. The log is append-only and is the sole
// mechanism distinguishing a moderator ban from a self-service deletion.
const (
	ActionUserBan          = "user.ban"
	ActionCommentDelete    = "comment.delete"
	ActionSkillHardDelete  = "skill.harddelete"
	ActionSoulHardDelete   = "soul.harddelete"
	ActionVersionTakedown  = "version.takedown"
	ActionModerationUpdate = "moderation.update"
)

// Target types referenced by audit entries.
const (
	TargetUser    = "user"
	TargetSkill   = "skill"
	TargetSoul    = "soul"
	TargetComment = "comment"
	TargetVersion = "version"
)

// Entry is one append-only audit record. Entries are never mutated or
// deleted.
type Entry struct {
	ID          uuid.UUID
	ActorUserID uuid.UUID
	Action      string
	TargetType  string
	TargetID    uuid.UUID
	Metadata    map[string]any
	CreatedAt   time.Time
}
