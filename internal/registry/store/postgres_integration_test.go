//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"skillhub/internal/registry/models"
	"skillhub/internal/registry/store"
	"skillhub/pkg/platform/sentinel"
	"skillhub/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	stores   store.Stores
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.stores = store.NewPostgres(s.postgres.DB).Stores()
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"download_dedupes", "stars", "comments", "skill_versions",
		"resources", "skills", "souls", "audit_log", "users")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) createUser(handle string) *models.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	user := &models.User{
		ID:        uuid.New(),
		Handle:    handle,
		Name:      handle,
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.stores.Users.Create(context.Background(), user))
	return user
}

func (s *PostgresStoreSuite) newSkill(owner *models.User, slug string) *models.Skill {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Skill{
		ID:               uuid.New(),
		Slug:             slug,
		DisplayName:      slug,
		OwnerUserID:      owner.ID,
		Tags:             map[string]uuid.UUID{},
		ModerationStatus: models.ModerationActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *PostgresStoreSuite) TestUserRoundTrip() {
	ctx := context.Background()
	user := s.createUser("octocat")

	byID, err := s.stores.Users.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(user.Handle, byID.Handle)

	byHandle, err := s.stores.Users.FindByHandle(ctx, "octocat")
	s.Require().NoError(err)
	s.Equal(user.ID, byHandle.ID)

	now := time.Now()
	byID.DeletedAt = &now
	s.Require().NoError(s.stores.Users.Update(ctx, byID))

	again, err := s.stores.Users.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.NotNil(again.DeletedAt)
}

func (s *PostgresStoreSuite) TestUserHandleUnique() {
	s.createUser("taken")
	dup := &models.User{ID: uuid.New(), Handle: "taken", Role: models.RoleUser, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	err := s.stores.Users.Create(context.Background(), dup)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestSkillJSONFieldsRoundTrip() {
	ctx := context.Background()
	owner := s.createUser("octocat")

	versionID := uuid.New()
	skill := s.newSkill(owner, "json-skill")
	skill.Tags = map[string]uuid.UUID{"latest": versionID, "stable": versionID}
	skill.ModerationFlags = []string{"reviewed", models.FlagBlockedMalware}
	skill.Stats = models.Stats{Downloads: 42, Stars: 3}
	s.Require().NoError(s.stores.Skills.Create(ctx, skill))

	got, err := s.stores.Skills.FindBySlug(ctx, "json-skill")
	s.Require().NoError(err)
	s.Equal(skill.Tags, got.Tags)
	s.Equal(skill.ModerationFlags, got.ModerationFlags)
	s.Equal(int64(42), got.Stats.Downloads)
	s.Equal(int64(3), got.Stats.Stars)
}

func (s *PostgresStoreSuite) TestSkillSlugUnique() {
	ctx := context.Background()
	owner := s.createUser("octocat")
	s.Require().NoError(s.stores.Skills.Create(ctx, s.newSkill(owner, "once")))
	err := s.stores.Skills.Create(ctx, s.newSkill(owner, "once"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestVersionUniquePerSkill() {
	ctx := context.Background()
	owner := s.createUser("octocat")
	skill := s.newSkill(owner, "versioned")
	s.Require().NoError(s.stores.Skills.Create(ctx, skill))

	v := &models.Version{
		ID:        uuid.New(),
		SkillID:   skill.ID,
		Version:   "1.0.0",
		Files:     []models.VersionFile{{Path: "main.go", BlobKey: "abc"}},
		CreatedAt: time.Now(),
	}
	s.Require().NoError(s.stores.Versions.Create(ctx, v))

	dup := &models.Version{ID: uuid.New(), SkillID: skill.ID, Version: "1.0.0", CreatedAt: time.Now()}
	s.ErrorIs(s.stores.Versions.Create(ctx, dup), sentinel.ErrConflict)

	got, err := s.stores.Versions.FindBySkillAndVersion(ctx, skill.ID, "1.0.0")
	s.Require().NoError(err)
	s.Equal(v.ID, got.ID)
	s.Equal(v.Files, got.Files)
}

func (s *PostgresStoreSuite) TestResourceListPageOrdersAndPaginates() {
	ctx := context.Background()
	owner := s.createUser("octocat")

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		res := &models.Resource{
			ID:               uuid.New(),
			Type:             models.TypeSkill,
			Slug:             uuid.NewString(),
			DisplayName:      "res",
			OwnerUserID:      owner.ID,
			OwnerHandle:      owner.Handle,
			ModerationStatus: models.ModerationActive,
			CreatedAt:        base,
			UpdatedAt:        base.Add(time.Duration(i) * time.Second),
		}
		s.Require().NoError(s.stores.Resources.Insert(ctx, res))
	}

	page, err := s.stores.Resources.ListPage(ctx, models.TypeSkill, 2, time.Time{})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.True(page[0].UpdatedAt.After(page[1].UpdatedAt))

	rest, err := s.stores.Resources.ListPage(ctx, models.TypeSkill, 2, page[1].UpdatedAt)
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.True(rest[0].UpdatedAt.Before(page[1].UpdatedAt))
}

func (s *PostgresStoreSuite) TestResourceListByOwner() {
	ctx := context.Background()
	owner := s.createUser("octocat")
	other := s.createUser("rival")

	base := time.Now().UTC().Truncate(time.Millisecond)
	insert := func(ownerID uuid.UUID, offset time.Duration) {
		res := &models.Resource{
			ID:               uuid.New(),
			Type:             models.TypeSkill,
			Slug:             uuid.NewString(),
			OwnerUserID:      ownerID,
			ModerationStatus: models.ModerationActive,
			CreatedAt:        base,
			UpdatedAt:        base.Add(offset),
		}
		s.Require().NoError(s.stores.Resources.Insert(ctx, res))
	}
	insert(owner.ID, 0)
	insert(owner.ID, time.Second)
	insert(other.ID, 2*time.Second)

	mine, err := s.stores.Resources.ListByOwner(ctx, models.TypeSkill, owner.ID, 10)
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.True(mine[0].UpdatedAt.After(mine[1].UpdatedAt))

	limited, err := s.stores.Resources.ListByOwner(ctx, models.TypeSkill, owner.ID, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *PostgresStoreSuite) TestResourceListPageSkipsSoftDeleted() {
	ctx := context.Background()
	owner := s.createUser("octocat")
	now := time.Now()

	res := &models.Resource{
		ID:               uuid.New(),
		Type:             models.TypeSkill,
		Slug:             "gone",
		OwnerUserID:      owner.ID,
		ModerationStatus: models.ModerationActive,
		SoftDeletedAt:    &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.Require().NoError(s.stores.Resources.Insert(ctx, res))

	page, err := s.stores.Resources.ListPage(ctx, models.TypeSkill, 10, time.Time{})
	s.Require().NoError(err)
	s.Empty(page)
}

func (s *PostgresStoreSuite) TestDedupeConflictAndPrune() {
	ctx := context.Background()
	owner := s.createUser("octocat")
	skill := s.newSkill(owner, "downloaded")
	s.Require().NoError(s.stores.Skills.Create(ctx, skill))

	rec := &models.DownloadDedupe{SkillID: skill.ID, IPHash: "deadbeef", DayStart: 1000, CreatedAt: time.Now()}
	s.Require().NoError(s.stores.Dedupes.Create(ctx, rec))
	s.ErrorIs(s.stores.Dedupes.Create(ctx, rec), sentinel.ErrConflict)

	fresh := &models.DownloadDedupe{SkillID: skill.ID, IPHash: "deadbeef", DayStart: 2000, CreatedAt: time.Now()}
	s.Require().NoError(s.stores.Dedupes.Create(ctx, fresh))

	deleted, err := s.stores.Dedupes.PruneBefore(ctx, 1500, 200)
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	// The still-fresh row is untouched.
	s.ErrorIs(s.stores.Dedupes.Create(ctx, fresh), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackOnError() {
	ctx := context.Background()
	owner := s.createUser("octocat")
	skill := s.newSkill(owner, "rollback")

	failure := errors.New("boom")
	err := s.stores.Tx.RunInTx(ctx, skill.ID.String(), func(ctx context.Context) error {
		if err := s.stores.Skills.Create(ctx, skill); err != nil {
			return err
		}
		return failure
	})
	s.ErrorIs(err, failure)

	_, err = s.stores.Skills.FindBySlug(ctx, "rollback")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRunInTxCommits() {
	ctx := context.Background()
	owner := s.createUser("octocat")
	skill := s.newSkill(owner, "committed")

	err := s.stores.Tx.RunInTx(ctx, skill.ID.String(), func(ctx context.Context) error {
		return s.stores.Skills.Create(ctx, skill)
	})
	s.Require().NoError(err)

	_, err = s.stores.Skills.FindBySlug(ctx, "committed")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestStarLifecycle() {
	ctx := context.Background()
	owner := s.createUser("octocat")
	fan := s.createUser("fan")
	skill := s.newSkill(owner, "starred")
	s.Require().NoError(s.stores.Skills.Create(ctx, skill))

	star := &models.Star{SkillID: skill.ID, UserID: fan.ID, CreatedAt: time.Now()}
	s.Require().NoError(s.stores.Stars.Create(ctx, star))
	s.ErrorIs(s.stores.Stars.Create(ctx, star), sentinel.ErrConflict)

	got, err := s.stores.Stars.Find(ctx, skill.ID, fan.ID)
	s.Require().NoError(err)
	s.Equal(fan.ID, got.UserID)

	listed, err := s.stores.Stars.ListByUser(ctx, fan.ID, 10)
	s.Require().NoError(err)
	s.Len(listed, 1)

	s.Require().NoError(s.stores.Stars.Delete(ctx, skill.ID, fan.ID))
	_, err = s.stores.Stars.Find(ctx, skill.ID, fan.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
