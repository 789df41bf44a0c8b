package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"skillhub/internal/registry/models"
	"skillhub/pkg/platform/sentinel"
	txcontext "skillhub/pkg/platform/tx"
)

// Postgres implements the store interfaces on PostgreSQL. Mutations pick up
// any transaction stashed on the context so an item update and its projection
// rewrite commit as one unit of work; serialization per item comes from row
// locks, not application locks.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Stores bundles the PostgreSQL implementation behind the store interfaces.
func (p *Postgres) Stores() Stores {
	return Stores{
		Tx:        p,
		Users:     pgUsers{p},
		Skills:    pgSkills{p},
		Souls:     pgSouls{p},
		Versions:  pgVersions{p},
		Resources: pgResources{p},
		Comments:  pgComments{p},
		Stars:     pgStars{p},
		Dedupes:   pgDedupes{p},
	}
}

// RunInTx opens a database transaction for the operation. The item key is
// unused here; per-item ordering falls out of row-level locking.
func (p *Postgres) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	dbtx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	if err := fn(txcontext.WithTx(ctx, dbtx)); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (p *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return p.db
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// isUniqueViolation reports whether err is a unique-constraint rejection.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// --- users ---

type pgUsers struct{ p *Postgres }

func (s pgUsers) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	_, err := s.p.execer(ctx).ExecContext(ctx, `
		INSERT INTO users (id, handle, name, display_name, image, bio, role, deleted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, user.ID, user.Handle, user.Name, user.DisplayName, user.Image, user.Bio, string(user.Role), user.DeletedAt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user handle %q taken: %w", user.Handle, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s pgUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.findBy(ctx, "id = $1", id)
}

func (s pgUsers) FindByHandle(ctx context.Context, handle string) (*models.User, error) {
	return s.findBy(ctx, "handle = $1", handle)
}

func (s pgUsers) findBy(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.p.execer(ctx).QueryRowContext(ctx, `
		SELECT id, handle, name, display_name, image, bio, role, deleted_at, created_at, updated_at
		FROM users WHERE `+where, arg)

	var (
		user models.User
		role string
	)
	err := row.Scan(&user.ID, &user.Handle, &user.Name, &user.DisplayName, &user.Image,
		&user.Bio, &role, &user.DeletedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.Role = models.Role(role)
	return &user, nil
}

func (s pgUsers) Update(ctx context.Context, user *models.User) error {
	res, err := s.p.execer(ctx).ExecContext(ctx, `
		UPDATE users
		SET handle = $2, name = $3, display_name = $4, image = $5, bio = $6,
		    role = $7, deleted_at = $8, updated_at = $9
		WHERE id = $1
	`, user.ID, user.Handle, user.Name, user.DisplayName, user.Image, user.Bio,
		string(user.Role), user.DeletedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res, "user")
}

// --- skills ---

type pgSkills struct{ p *Postgres }

func (s pgSkills) Create(ctx context.Context, skill *models.Skill) error {
	if skill.ID == uuid.Nil {
		skill.ID = uuid.New()
	}
	stats, tags, err := marshalSkillJSON(skill)
	if err != nil {
		return err
	}
	_, err = s.p.execer(ctx).ExecContext(ctx, `
		INSERT INTO skills (id, slug, display_name, summary, owner_user_id, resource_id,
		                    latest_version_id, tags, soft_deleted_at, moderation_status,
		                    moderation_flags, stats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, skill.ID, skill.Slug, skill.DisplayName, skill.Summary, skill.OwnerUserID, skill.ResourceID,
		skill.LatestVersionID, tags, skill.SoftDeletedAt, skill.ModerationStatus,
		pq.Array(skill.ModerationFlags), stats, skill.CreatedAt, skill.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("skill slug %q taken: %w", skill.Slug, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert skill: %w", err)
	}
	return nil
}

func (s pgSkills) FindByID(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	return s.findBy(ctx, "id = $1", id)
}

func (s pgSkills) FindBySlug(ctx context.Context, slug string) (*models.Skill, error) {
	return s.findBy(ctx, "slug = $1", slug)
}

func (s pgSkills) findBy(ctx context.Context, where string, arg any) (*models.Skill, error) {
	row := s.p.execer(ctx).QueryRowContext(ctx, `
		SELECT id, slug, display_name, summary, owner_user_id, resource_id, latest_version_id,
		       tags, soft_deleted_at, moderation_status, moderation_flags, stats, created_at, updated_at
		FROM skills WHERE `+where, arg)

	var (
		skill models.Skill
		tags  []byte
		stats []byte
		flags pq.StringArray
	)
	err := row.Scan(&skill.ID, &skill.Slug, &skill.DisplayName, &skill.Summary, &skill.OwnerUserID,
		&skill.ResourceID, &skill.LatestVersionID, &tags, &skill.SoftDeletedAt,
		&skill.ModerationStatus, &flags, &stats, &skill.CreatedAt, &skill.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("skill: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find skill: %w", err)
	}
	skill.ModerationFlags = flags
	if err := unmarshalJSON(stats, &skill.Stats); err != nil {
		return nil, fmt.Errorf("skill stats: %w", err)
	}
	if err := unmarshalJSON(tags, &skill.Tags); err != nil {
		return nil, fmt.Errorf("skill tags: %w", err)
	}
	return &skill, nil
}

func (s pgSkills) Update(ctx context.Context, skill *models.Skill) error {
	stats, tags, err := marshalSkillJSON(skill)
	if err != nil {
		return err
	}
	res, err := s.p.execer(ctx).ExecContext(ctx, `
		UPDATE skills
		SET slug = $2, display_name = $3, summary = $4, owner_user_id = $5, resource_id = $6,
		    latest_version_id = $7, tags = $8, soft_deleted_at = $9, moderation_status = $10,
		    moderation_flags = $11, stats = $12, updated_at = $13
		WHERE id = $1
	`, skill.ID, skill.Slug, skill.DisplayName, skill.Summary, skill.OwnerUserID, skill.ResourceID,
		skill.LatestVersionID, tags, skill.SoftDeletedAt, skill.ModerationStatus,
		pq.Array(skill.ModerationFlags), stats, skill.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update skill: %w", err)
	}
	return requireRow(res, "skill")
}

func (s pgSkills) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.p.execer(ctx).ExecContext(ctx, `DELETE FROM skills WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	return requireRow(res, "skill")
}

func marshalSkillJSON(skill *models.Skill) (stats, tags []byte, err error) {
	stats, err = json.Marshal(skill.Stats)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal skill stats: %w", err)
	}
	tags, err = json.Marshal(skill.Tags)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal skill tags: %w", err)
	}
	return stats, tags, nil
}

// --- souls ---

type pgSouls struct{ p *Postgres }

func (s pgSouls) Create(ctx context.Context, soul *models.Soul) error {
	if soul.ID == uuid.Nil {
		soul.ID = uuid.New()
	}
	stats, err := json.Marshal(soul.Stats)
	if err != nil {
		return fmt.Errorf("marshal soul stats: %w", err)
	}
	_, err = s.p.execer(ctx).ExecContext(ctx, `
		INSERT INTO souls (id, slug, display_name, summary, owner_user_id, resource_id,
		                   latest_version_id, soft_deleted_at, moderation_status,
		                   moderation_flags, stats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, soul.ID, soul.Slug, soul.DisplayName, soul.Summary, soul.OwnerUserID, soul.ResourceID,
		soul.LatestVersionID, soul.SoftDeletedAt, soul.ModerationStatus,
		pq.Array(soul.ModerationFlags), stats, soul.CreatedAt, soul.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("soul slug %q taken: %w", soul.Slug, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert soul: %w", err)
	}
	return nil
}

func (s pgSouls) FindByID(ctx context.Context, id uuid.UUID) (*models.Soul, error) {
	return s.findBy(ctx, "id = $1", id)
}

func (s pgSouls) FindBySlug(ctx context.Context, slug string) (*models.Soul, error) {
	return s.findBy(ctx, "slug = $1", slug)
}

func (s pgSouls) findBy(ctx context.Context, where string, arg any) (*models.Soul, error) {
	row := s.p.execer(ctx).QueryRowContext(ctx, `
		SELECT id, slug, display_name, summary, owner_user_id, resource_id, latest_version_id,
		       soft_deleted_at, moderation_status, moderation_flags, stats, created_at, updated_at
		FROM souls WHERE `+where, arg)

	var (
		soul  models.Soul
		stats []byte
		flags pq.StringArray
	)
	err := row.Scan(&soul.ID, &soul.Slug, &soul.DisplayName, &soul.Summary, &soul.OwnerUserID,
		&soul.ResourceID, &soul.LatestVersionID, &soul.SoftDeletedAt,
		&soul.ModerationStatus, &flags, &stats, &soul.CreatedAt, &soul.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("soul: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find soul: %w", err)
	}
	soul.ModerationFlags = flags
	if err := unmarshalJSON(stats, &soul.Stats); err != nil {
		return nil, fmt.Errorf("soul stats: %w", err)
	}
	return &soul, nil
}

func (s pgSouls) Update(ctx context.Context, soul *models.Soul) error {
	stats, err := json.Marshal(soul.Stats)
	if err != nil {
		return fmt.Errorf("marshal soul stats: %w", err)
	}
	res, err := s.p.execer(ctx).ExecContext(ctx, `
		UPDATE souls
		SET slug = $2, display_name = $3, summary = $4, owner_user_id = $5, resource_id = $6,
		    latest_version_id = $7, soft_deleted_at = $8, moderation_status = $9,
		    moderation_flags = $10, stats = $11, updated_at = $12
		WHERE id = $1
	`, soul.ID, soul.Slug, soul.DisplayName, soul.Summary, soul.OwnerUserID, soul.ResourceID,
		soul.LatestVersionID, soul.SoftDeletedAt, soul.ModerationStatus,
		pq.Array(soul.ModerationFlags), stats, soul.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update soul: %w", err)
	}
	return requireRow(res, "soul")
}

func (s pgSouls) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.p.execer(ctx).ExecContext(ctx, `DELETE FROM souls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete soul: %w", err)
	}
	return requireRow(res, "soul")
}

// --- versions ---

type pgVersions struct{ p *Postgres }

func (s pgVersions) Create(ctx context.Context, version *models.Version) error {
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	files, err := json.Marshal(version.Files)
	if err != nil {
		return fmt.Errorf("marshal version files: %w", err)
	}
	_, err = s.p.execer(ctx).ExecContext(ctx, `
		INSERT INTO skill_versions (id, skill_id, version, files, soft_deleted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, version.ID, version.SkillID, version.Version, files, version.SoftDeletedAt, version.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("version %q exists: %w", version.Version, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func (s pgVersions) Update(ctx context.Context, version *models.Version) error {
	files, err := json.Marshal(version.Files)
	if err != nil {
		return fmt.Errorf("marshal version files: %w", err)
	}
	res, err := s.p.execer(ctx).ExecContext(ctx, `
		UPDATE skill_versions
		SET version = $2, files = $3, soft_deleted_at = $4
		WHERE id = $1
	`, version.ID, version.Version, files, version.SoftDeletedAt)
	if err != nil {
		return fmt.Errorf("update version: %w", err)
	}
	return requireRow(res, "version")
}

func (s pgVersions) FindByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	return s.findBy(ctx, "id = $1", id)
}

func (s pgVersions) FindBySkillAndVersion(ctx context.Context, skillID uuid.UUID, version string) (*models.Version, error) {
	return s.findBy(ctx, "skill_id = $1 AND version = $2", skillID, version)
}

func (s pgVersions) findBy(ctx context.Context, where string, args ...any) (*models.Version, error) {
	row := s.p.execer(ctx).QueryRowContext(ctx, `
		SELECT id, skill_id, version, files, soft_deleted_at, created_at
		FROM skill_versions WHERE `+where, args...)
	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("version: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find version: %w", err)
	}
	return version, nil
}

func (s pgVersions) ListBySkill(ctx context.Context, skillID uuid.UUID) ([]models.Version, error) {
	rows, err := s.p.execer(ctx).QueryContext(ctx, `
		SELECT id, skill_id, version, files, soft_deleted_at, created_at
		FROM skill_versions WHERE skill_id = $1
		ORDER BY created_at DESC
	`, skillID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []models.Version
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, *version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

func scanVersion(row rowScanner) (*models.Version, error) {
	var (
		version models.Version
		files   []byte
	)
	err := row.Scan(&version.ID, &version.SkillID, &version.Version, &files,
		&version.SoftDeletedAt, &version.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(files, &version.Files); err != nil {
		return nil, fmt.Errorf("version files: %w", err)
	}
	return &version, nil
}

// --- resources ---

type pgResources struct{ p *Postgres }

const resourceColumns = `id, type, slug, display_name, summary, owner_user_id, owner_handle,
	soft_deleted_at, moderation_status, moderation_flags, stats, created_at, updated_at`

func (s pgResources) Insert(ctx context.Context, resource *models.Resource) error {
	if resource.ID == uuid.Nil {
		resource.ID = uuid.New()
	}
	stats, err := json.Marshal(resource.Stats)
	if err != nil {
		return fmt.Errorf("marshal resource stats: %w", err)
	}
	_, err = s.p.execer(ctx).ExecContext(ctx, `
		INSERT INTO resources (id, type, slug, display_name, summary, owner_user_id, owner_handle,
		                       soft_deleted_at, moderation_status, moderation_flags, stats,
		                       created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, resource.ID, string(resource.Type), resource.Slug, resource.DisplayName, resource.Summary,
		resource.OwnerUserID, resource.OwnerHandle, resource.SoftDeletedAt,
		resource.ModerationStatus, pq.Array(resource.ModerationFlags), stats,
		resource.CreatedAt, resource.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("resource %s/%s exists: %w", resource.Type, resource.Slug, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

func (s pgResources) FindByID(ctx context.Context, id uuid.UUID) (*models.Resource, error) {
	row := s.p.execer(ctx).QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id)
	return scanResourceRow(row)
}

func (s pgResources) FindByTypeSlug(ctx context.Context, typ models.ItemType, slug string) (*models.Resource, error) {
	row := s.p.execer(ctx).QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE type = $1 AND slug = $2`, string(typ), slug)
	return scanResourceRow(row)
}

func (s pgResources) ListPage(ctx context.Context, typ models.ItemType, limit int, before time.Time) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + `
		FROM resources
		WHERE type = $1 AND soft_deleted_at IS NULL`
	args := []any{string(typ)}
	if !before.IsZero() {
		query += ` AND updated_at < $2`
		args = append(args, before)
	}
	query += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT %d`, limit)

	return s.list(ctx, query, args...)
}

func (s pgResources) ListByOwner(ctx context.Context, typ models.ItemType, ownerID uuid.UUID, limit int) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + `
		FROM resources
		WHERE type = $1 AND owner_user_id = $2
		ORDER BY updated_at DESC LIMIT $3`
	return s.list(ctx, query, string(typ), ownerID, limit)
}

func (s pgResources) list(ctx context.Context, query string, args ...any) ([]models.Resource, error) {
	rows, err := s.p.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	var resources []models.Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, *resource)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return resources, nil
}

func (s pgResources) Update(ctx context.Context, resource *models.Resource) error {
	stats, err := json.Marshal(resource.Stats)
	if err != nil {
		return fmt.Errorf("marshal resource stats: %w", err)
	}
	res, err := s.p.execer(ctx).ExecContext(ctx, `
		UPDATE resources
		SET slug = $2, display_name = $3, summary = $4, owner_user_id = $5, owner_handle = $6,
		    soft_deleted_at = $7, moderation_status = $8, moderation_flags = $9, stats = $10,
		    updated_at = $11
		WHERE id = $1
	`, resource.ID, resource.Slug, resource.DisplayName, resource.Summary, resource.OwnerUserID,
		resource.OwnerHandle, resource.SoftDeletedAt, resource.ModerationStatus,
		pq.Array(resource.ModerationFlags), stats, resource.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	return requireRow(res, "resource")
}

func (s pgResources) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.p.execer(ctx).ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return requireRow(res, "resource")
}

func scanResourceRow(row *sql.Row) (*models.Resource, error) {
	resource, err := scanResource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("resource: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find resource: %w", err)
	}
	return resource, nil
}

func scanResource(row rowScanner) (*models.Resource, error) {
	var (
		resource models.Resource
		typ      string
		flags    pq.StringArray
		stats    []byte
	)
	err := row.Scan(&resource.ID, &typ, &resource.Slug, &resource.DisplayName, &resource.Summary,
		&resource.OwnerUserID, &resource.OwnerHandle, &resource.SoftDeletedAt,
		&resource.ModerationStatus, &flags, &stats, &resource.CreatedAt, &resource.UpdatedAt)
	if err != nil {
		return nil, err
	}
	resource.Type = models.ItemType(typ)
	resource.ModerationFlags = flags
	if err := unmarshalJSON(stats, &resource.Stats); err != nil {
		return nil, fmt.Errorf("resource stats: %w", err)
	}
	return &resource, nil
}

// --- comments ---

type pgComments struct{ p *Postgres }

func (s pgComments) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	_, err := s.p.execer(ctx).ExecContext(ctx, `
		INSERT INTO comments (id, skill_id, user_id, body, soft_deleted_at, deleted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, comment.ID, comment.SkillID, comment.UserID, comment.Body,
		comment.SoftDeletedAt, comment.DeletedBy, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s pgComments) FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	row := s.p.execer(ctx).QueryRowContext(ctx, `
		SELECT id, skill_id, user_id, body, soft_deleted_at, deleted_by, created_at
		FROM comments WHERE id = $1
	`, id)

	var comment models.Comment
	err := row.Scan(&comment.ID, &comment.SkillID, &comment.UserID, &comment.Body,
		&comment.SoftDeletedAt, &comment.DeletedBy, &comment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("comment: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return &comment, nil
}

func (s pgComments) Update(ctx context.Context, comment *models.Comment) error {
	res, err := s.p.execer(ctx).ExecContext(ctx, `
		UPDATE comments
		SET body = $2, soft_deleted_at = $3, deleted_by = $4
		WHERE id = $1
	`, comment.ID, comment.Body, comment.SoftDeletedAt, comment.DeletedBy)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return requireRow(res, "comment")
}

func (s pgComments) ListBySkill(ctx context.Context, skillID uuid.UUID, limit int) ([]models.Comment, error) {
	rows, err := s.p.execer(ctx).QueryContext(ctx, `
		SELECT id, skill_id, user_id, body, soft_deleted_at, deleted_by, created_at
		FROM comments
		WHERE skill_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, skillID, limit)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var comment models.Comment
		err := rows.Scan(&comment.ID, &comment.SkillID, &comment.UserID, &comment.Body,
			&comment.SoftDeletedAt, &comment.DeletedBy, &comment.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// --- stars ---

type pgStars struct{ p *Postgres }

func (s pgStars) Find(ctx context.Context, skillID, userID uuid.UUID) (*models.Star, error) {
	row := s.p.execer(ctx).QueryRowContext(ctx, `
		SELECT skill_id, user_id, created_at FROM stars WHERE skill_id = $1 AND user_id = $2
	`, skillID, userID)

	var star models.Star
	if err := row.Scan(&star.SkillID, &star.UserID, &star.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("star: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find star: %w", err)
	}
	return &star, nil
}

func (s pgStars) Create(ctx context.Context, star *models.Star) error {
	_, err := s.p.execer(ctx).ExecContext(ctx, `
		INSERT INTO stars (skill_id, user_id, created_at) VALUES ($1, $2, $3)
	`, star.SkillID, star.UserID, star.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("star exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert star: %w", err)
	}
	return nil
}

func (s pgStars) Delete(ctx context.Context, skillID, userID uuid.UUID) error {
	res, err := s.p.execer(ctx).ExecContext(ctx, `
		DELETE FROM stars WHERE skill_id = $1 AND user_id = $2
	`, skillID, userID)
	if err != nil {
		return fmt.Errorf("delete star: %w", err)
	}
	return requireRow(res, "star")
}

func (s pgStars) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Star, error) {
	rows, err := s.p.execer(ctx).QueryContext(ctx, `
		SELECT skill_id, user_id, created_at
		FROM stars
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query stars: %w", err)
	}
	defer rows.Close()

	var stars []models.Star
	for rows.Next() {
		var star models.Star
		if err := rows.Scan(&star.SkillID, &star.UserID, &star.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan star: %w", err)
		}
		stars = append(stars, star)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stars: %w", err)
	}
	return stars, nil
}

// --- download dedupes ---

type pgDedupes struct{ p *Postgres }

func (s pgDedupes) Create(ctx context.Context, rec *models.DownloadDedupe) error {
	_, err := s.p.execer(ctx).ExecContext(ctx, `
		INSERT INTO download_dedupes (skill_id, ip_hash, day_start, created_at)
		VALUES ($1, $2, $3, $4)
	`, rec.SkillID, rec.IPHash, rec.DayStart, rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("dedupe exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert dedupe: %w", err)
	}
	return nil
}

func (s pgDedupes) PruneBefore(ctx context.Context, cutoff int64, limit int) (int64, error) {
	res, err := s.p.execer(ctx).ExecContext(ctx, `
		DELETE FROM download_dedupes
		WHERE (skill_id, ip_hash, day_start) IN (
			SELECT skill_id, ip_hash, day_start
			FROM download_dedupes
			WHERE day_start < $1
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("prune dedupes: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune dedupes rows affected: %w", err)
	}
	return deleted, nil
}

// --- shared helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func requireRow(res sql.Result, entity string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", entity, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", entity, sentinel.ErrNotFound)
	}
	return nil
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
