package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skillhub/pkg/platform/sentinel"
	txcontext "skillhub/pkg/platform/tx"
)

// PostgresStore persists audit entries in the audit_log table. Appends join
// any transaction found on the context so a ban and its audit entry commit
// together.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) (uuid.UUID, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, actor_user_id, action, target_type, target_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.ActorUserID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return entry.ID, nil
}

func (s *PostgresStore) FindByTarget(ctx context.Context, targetType string, targetID uuid.UUID, action string) (*Entry, error) {
	query := `
		SELECT id, actor_user_id, action, target_type, target_id, metadata, created_at
		FROM audit_log
		WHERE target_type = $1 AND target_id = $2 AND action = $3
		ORDER BY created_at ASC
		LIMIT 1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, targetType, targetID, action)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit entry not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find audit entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID, limit int) ([]Entry, error) {
	query := `
		SELECT id, actor_user_id, action, target_type, target_id, metadata, created_at
		FROM audit_log
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, targetType, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry    Entry
		metadata []byte
	)
	err := row.Scan(
		&entry.ID,
		&entry.ActorUserID,
		&entry.Action,
		&entry.TargetType,
		&entry.TargetID,
		&metadata,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
		}
	}
	return &entry, nil
}
