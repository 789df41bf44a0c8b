package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"skillhub/internal/audit"
	"skillhub/internal/platform/config"
	"skillhub/internal/platform/logger"
	"skillhub/internal/platform/middleware"
	"skillhub/internal/registry/models"
	"skillhub/internal/registry/store"
	derrors "skillhub/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	stores store.Stores
	audit  *audit.InMemoryStore
	svc    *Service
	owner  *models.User
	ctx    context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.stores = store.NewMemory().Stores()
	s.audit = audit.NewInMemoryStore()
	s.svc = New(s.stores, s.audit, logger.Discard(), config.Server{})

	now := time.Now()
	s.owner = &models.User{
		ID:        uuid.New(),
		Handle:    "octocat",
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.stores.Users.Create(context.Background(), s.owner))
	s.ctx = middleware.WithUserID(context.Background(), s.owner.ID.String())
}

func (s *ServiceSuite) createSkill(slug string) *models.Skill {
	skill, err := s.svc.CreateSkill(s.ctx, CreateSkillInput{Slug: slug, DisplayName: slug})
	s.Require().NoError(err)
	return skill
}

func (s *ServiceSuite) resourceFor(skill *models.Skill) *models.Resource {
	s.Require().NotNil(skill.ResourceID)
	resource, err := s.stores.Resources.FindByID(context.Background(), *skill.ResourceID)
	s.Require().NoError(err)
	return resource
}

func (s *ServiceSuite) TestCreateSkillProjectsImmediately() {
	skill := s.createSkill("hello-world")

	resource := s.resourceFor(skill)
	s.Equal(models.TypeSkill, resource.Type)
	s.Equal("hello-world", resource.Slug)
	s.Equal(s.owner.ID, resource.OwnerUserID)
	s.Equal("octocat", resource.OwnerHandle)
	s.Equal(skill.Stats, resource.Stats)
	s.Equal(skill.UpdatedAt, resource.UpdatedAt)
}

func (s *ServiceSuite) TestCreateSkillRejectsDuplicateSlug() {
	s.createSkill("taken")
	_, err := s.svc.CreateSkill(s.ctx, CreateSkillInput{Slug: "taken"})
	s.True(derrors.HasCode(err, derrors.CodeConflict))
}

func (s *ServiceSuite) TestProjectionSyncIsIdempotent() {
	skill := s.createSkill("idem")
	first := s.resourceFor(skill)

	loaded, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.SyncSkill(context.Background(), loaded))

	second := s.resourceFor(loaded)
	s.Equal(first, second)
}

func (s *ServiceSuite) TestProjectionRecreatesDeletedRow() {
	skill := s.createSkill("phoenix")
	resourceID := *skill.ResourceID
	s.Require().NoError(s.stores.Resources.Delete(context.Background(), resourceID))

	s.Require().NoError(s.svc.ApplySkillDeltas(s.ctx, skill.ID, map[string]int64{StatDownloads: 1}))

	resource, err := s.stores.Resources.FindByID(context.Background(), resourceID)
	s.Require().NoError(err)
	s.Equal(resourceID, resource.ID)
	s.Equal(int64(1), resource.Stats.Downloads)
}

func (s *ServiceSuite) TestOwnerHandleSnapshotRefreshesOnNextSync() {
	skill := s.createSkill("snap")

	s.owner.Handle = "newhandle"
	s.Require().NoError(s.stores.Users.Update(context.Background(), s.owner))

	// Snapshot stays stale until the item is touched again.
	s.Equal("octocat", s.resourceFor(skill).OwnerHandle)

	s.Require().NoError(s.svc.ApplySkillDeltas(s.ctx, skill.ID, map[string]int64{StatStars: 1}))
	s.Equal("newhandle", s.resourceFor(skill).OwnerHandle)
}

func (s *ServiceSuite) TestApplySkillDeltasClampsAtZero() {
	skill := s.createSkill("clamp")

	s.Require().NoError(s.svc.ApplySkillDeltas(s.ctx, skill.ID, map[string]int64{StatDownloads: -10}))

	loaded, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), loaded.Stats.Downloads)
	s.Equal(int64(0), s.resourceFor(loaded).Stats.Downloads)
}

func (s *ServiceSuite) TestPublishVersion() {
	skill := s.createSkill("versioned")

	version, err := s.svc.PublishVersion(s.ctx, PublishVersionInput{
		SkillID: skill.ID,
		Version: "1.0.0",
		Files:   []models.VersionFile{{Path: "README.md", BlobKey: "blob-1"}},
	})
	s.Require().NoError(err)

	loaded, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.Equal(version.ID, loaded.Tags["latest"])
	s.Equal(&version.ID, loaded.LatestVersionID)
	s.Equal(int64(1), loaded.Stats.Versions)
	s.Equal(int64(1), s.resourceFor(loaded).Stats.Versions)

	s.Run("duplicate version conflicts", func() {
		_, err := s.svc.PublishVersion(s.ctx, PublishVersionInput{SkillID: skill.ID, Version: "1.0.0"})
		s.True(derrors.HasCode(err, derrors.CodeConflict))
	})

	s.Run("invalid semver rejected", func() {
		_, err := s.svc.PublishVersion(s.ctx, PublishVersionInput{SkillID: skill.ID, Version: "not-semver"})
		s.True(derrors.HasCode(err, derrors.CodeBadRequest))
	})

	s.Run("non-owner forbidden", func() {
		stranger := &models.User{ID: uuid.New(), Handle: "stranger", Role: models.RoleUser}
		s.Require().NoError(s.stores.Users.Create(context.Background(), stranger))
		ctx := middleware.WithUserID(context.Background(), stranger.ID.String())
		_, err := s.svc.PublishVersion(ctx, PublishVersionInput{SkillID: skill.ID, Version: "2.0.0"})
		s.True(derrors.HasCode(err, derrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestResolveVersionPrecedence() {
	skill := s.createSkill("resolver")

	v1, err := s.svc.PublishVersion(s.ctx, PublishVersionInput{SkillID: skill.ID, Version: "1.0.0"})
	s.Require().NoError(err)
	v2, err := s.svc.PublishVersion(s.ctx, PublishVersionInput{SkillID: skill.ID, Version: "2.0.0", Tags: []string{"stable"}})
	s.Require().NoError(err)

	loaded, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)

	s.Run("exact version", func() {
		got, err := s.svc.ResolveVersion(context.Background(), loaded, "1.0.0")
		s.Require().NoError(err)
		s.Equal(v1.ID, got.ID)
	})

	s.Run("tag name", func() {
		got, err := s.svc.ResolveVersion(context.Background(), loaded, "stable")
		s.Require().NoError(err)
		s.Equal(v2.ID, got.ID)
	})

	s.Run("empty selector takes latest", func() {
		got, err := s.svc.ResolveVersion(context.Background(), loaded, "")
		s.Require().NoError(err)
		s.Equal(v2.ID, got.ID)
	})

	s.Run("unknown selector not found", func() {
		_, err := s.svc.ResolveVersion(context.Background(), loaded, "nightly")
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestToggleStar() {
	skill := s.createSkill("starry")

	starred, err := s.svc.ToggleStar(s.ctx, "starry")
	s.Require().NoError(err)
	s.True(starred)

	loaded, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), loaded.Stats.Stars)
	s.Equal(int64(1), s.resourceFor(loaded).Stats.Stars)

	starred, err = s.svc.ToggleStar(s.ctx, "starry")
	s.Require().NoError(err)
	s.False(starred)

	loaded, err = s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), loaded.Stats.Stars)
}

func (s *ServiceSuite) userCtx(handle string, role models.Role) context.Context {
	now := time.Now()
	user := &models.User{
		ID:        uuid.New(),
		Handle:    handle,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.stores.Users.Create(context.Background(), user))
	return middleware.WithUserID(context.Background(), user.ID.String())
}

func (s *ServiceSuite) TestOwnerHidesAndRestoresSkill() {
	skill := s.createSkill("on-hiatus")

	s.Require().NoError(s.svc.SetSkillHidden(s.ctx, "on-hiatus", true))

	loaded, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.NotNil(loaded.SoftDeletedAt)
	s.NotNil(s.resourceFor(loaded).SoftDeletedAt)
	_, err = s.svc.GetPublicResource(context.Background(), models.TypeSkill, "on-hiatus")
	s.True(derrors.HasCode(err, derrors.CodeNotFound))

	s.Require().NoError(s.svc.SetSkillHidden(s.ctx, "on-hiatus", false))

	loaded, err = s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.Nil(loaded.SoftDeletedAt)
	s.Nil(s.resourceFor(loaded).SoftDeletedAt)
	got, err := s.svc.GetPublicResource(context.Background(), models.TypeSkill, "on-hiatus")
	s.Require().NoError(err)
	s.Equal("on-hiatus", got.Slug)
}

func (s *ServiceSuite) TestHideSkillIdempotent() {
	s.createSkill("already-dark")
	s.Require().NoError(s.svc.SetSkillHidden(s.ctx, "already-dark", true))

	first, err := s.stores.Skills.FindBySlug(context.Background(), "already-dark")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.SetSkillHidden(s.ctx, "already-dark", true))
	second, err := s.stores.Skills.FindBySlug(context.Background(), "already-dark")
	s.Require().NoError(err)
	s.Equal(first.SoftDeletedAt, second.SoftDeletedAt)
}

func (s *ServiceSuite) TestNonOwnerCannotHideSkill() {
	skill := s.createSkill("not-yours")

	err := s.svc.SetSkillHidden(s.userCtx("bystander", models.RoleUser), "not-yours", true)
	s.True(derrors.HasCode(err, derrors.CodeForbidden))

	loaded, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.Nil(loaded.SoftDeletedAt)
}

func (s *ServiceSuite) TestModeratorCanHideAnySkill() {
	s.createSkill("reported")

	err := s.svc.SetSkillHidden(s.userCtx("mod", models.RoleModerator), "reported", true)
	s.Require().NoError(err)

	loaded, err := s.stores.Skills.FindBySlug(context.Background(), "reported")
	s.Require().NoError(err)
	s.NotNil(loaded.SoftDeletedAt)
}

func (s *ServiceSuite) TestOwnerHidesAndRestoresSoul() {
	soul, err := s.svc.CreateSoul(s.ctx, CreateSoulInput{Slug: "quiet-soul", DisplayName: "quiet-soul"})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.SetSoulHidden(s.ctx, "quiet-soul", true))
	loaded, err := s.stores.Souls.FindByID(context.Background(), soul.ID)
	s.Require().NoError(err)
	s.NotNil(loaded.SoftDeletedAt)

	s.Require().NoError(s.svc.SetSoulHidden(s.ctx, "quiet-soul", false))
	loaded, err = s.stores.Souls.FindByID(context.Background(), soul.ID)
	s.Require().NoError(err)
	s.Nil(loaded.SoftDeletedAt)
}

func (s *ServiceSuite) TestIsStarred() {
	s.createSkill("watchlist")

	starred, err := s.svc.IsStarred(s.ctx, "watchlist")
	s.Require().NoError(err)
	s.False(starred)

	_, err = s.svc.ToggleStar(s.ctx, "watchlist")
	s.Require().NoError(err)

	starred, err = s.svc.IsStarred(s.ctx, "watchlist")
	s.Require().NoError(err)
	s.True(starred)
}

func (s *ServiceSuite) TestComments() {
	skill := s.createSkill("chatty")

	comment, err := s.svc.AddComment(s.ctx, "chatty", "nice work")
	s.Require().NoError(err)

	loaded, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), loaded.Stats.Comments)

	s.Run("listing joins the author", func() {
		views, err := s.svc.ListComments(s.ctx, "chatty", 10)
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Equal("octocat", views[0].Author.Handle)
	})

	s.Run("author removal decrements without audit", func() {
		s.Require().NoError(s.svc.RemoveComment(s.ctx, comment.ID))

		loaded, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
		s.Require().NoError(err)
		s.Equal(int64(0), loaded.Stats.Comments)

		_, err = s.audit.FindByTarget(context.Background(), audit.TargetComment, comment.ID, audit.ActionCommentDelete)
		s.Error(err)
	})

	s.Run("moderator removal is audited", func() {
		other, err := s.svc.AddComment(s.ctx, "chatty", "second")
		s.Require().NoError(err)

		mod := &models.User{ID: uuid.New(), Handle: "mod", Role: models.RoleModerator}
		s.Require().NoError(s.stores.Users.Create(context.Background(), mod))
		modCtx := middleware.WithUserID(context.Background(), mod.ID.String())

		s.Require().NoError(s.svc.RemoveComment(modCtx, other.ID))

		entry, err := s.audit.FindByTarget(context.Background(), audit.TargetComment, other.ID, audit.ActionCommentDelete)
		s.Require().NoError(err)
		s.Equal(mod.ID, entry.ActorUserID)
	})
}

func (s *ServiceSuite) TestSoulInstalls() {
	_, err := s.svc.CreateSoul(s.ctx, CreateSoulInput{Slug: "spirit", DisplayName: "Spirit"})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.IncrementSoulInstalls(context.Background(), "spirit", false))
	s.Require().NoError(s.svc.IncrementSoulInstalls(context.Background(), "spirit", false))
	s.Require().NoError(s.svc.IncrementSoulInstalls(context.Background(), "spirit", true))

	soul, err := s.stores.Souls.FindBySlug(context.Background(), "spirit")
	s.Require().NoError(err)
	s.Equal(int64(1), soul.Stats.InstallsCurrent)
	s.Equal(int64(2), soul.Stats.InstallsAllTime)
}

func (s *ServiceSuite) TestGetPublicResourceHidesModerated() {
	skill := s.createSkill("shady")

	_, err := s.svc.GetPublicResource(context.Background(), models.TypeSkill, "shady")
	s.Require().NoError(err)

	loaded, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	loaded.ModerationStatus = models.ModerationHidden
	s.Require().NoError(s.stores.Skills.Update(context.Background(), loaded))
	s.Require().NoError(s.svc.SyncSkill(context.Background(), loaded))

	_, err = s.svc.GetPublicResource(context.Background(), models.TypeSkill, "shady")
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

func (s *ServiceSuite) TestListResourcesFiltersAndOrders() {
	s.createSkill("alpha")
	time.Sleep(time.Millisecond)
	s.createSkill("beta")

	items, err := s.svc.ListResources(context.Background(), models.TypeSkill, 10, time.Time{})
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal("beta", items[0].Slug)
	s.Equal("alpha", items[1].Slug)
}

func (s *ServiceSuite) TestListResourcesByOwnerHandle() {
	s.createSkill("mine-one")
	time.Sleep(time.Millisecond)
	s.createSkill("mine-two")

	otherCtx := s.userCtx("somebody-else", models.RoleUser)
	_, err := s.svc.CreateSkill(otherCtx, CreateSkillInput{Slug: "theirs", DisplayName: "theirs"})
	s.Require().NoError(err)

	items, err := s.svc.ListResourcesByOwnerHandle(context.Background(), models.TypeSkill, "octocat", 10)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal("mine-two", items[0].Slug)
	s.Equal("mine-one", items[1].Slug)

	limited, err := s.svc.ListResourcesByOwnerHandle(context.Background(), models.TypeSkill, "octocat", 1)
	s.Require().NoError(err)
	s.Require().Len(limited, 1)
	s.Equal("mine-two", limited[0].Slug)
}

func (s *ServiceSuite) TestListResourcesByOwnerHandleHidesModerated() {
	s.createSkill("public-one")
	s.createSkill("hidden-one")
	s.Require().NoError(s.svc.SetSkillHidden(s.ctx, "hidden-one", true))

	items, err := s.svc.ListResourcesByOwnerHandle(context.Background(), models.TypeSkill, "octocat", 10)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("public-one", items[0].Slug)
}

func (s *ServiceSuite) TestListResourcesByOwnerHandleUnknownUser() {
	_, err := s.svc.ListResourcesByOwnerHandle(context.Background(), models.TypeSkill, "nobody", 10)
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

func (s *ServiceSuite) TestListResourcesByOwnerHandleDeletedUser() {
	s.createSkill("orphaned")
	now := time.Now()
	s.owner.DeletedAt = &now
	s.Require().NoError(s.stores.Users.Update(context.Background(), s.owner))

	_, err := s.svc.ListResourcesByOwnerHandle(context.Background(), models.TypeSkill, "octocat", 10)
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

func (s *ServiceSuite) TestAuthBypass() {
	svc := New(s.stores, s.audit, logger.Discard(), config.Server{
		AuthBypassEnabled: true,
		AuthBypassHandle:  "local",
	})

	user, err := svc.CurrentUser(context.Background())
	s.Require().NoError(err)
	s.Equal("local", user.Handle)

	again, err := svc.CurrentUser(context.Background())
	s.Require().NoError(err)
	s.Equal(user.ID, again.ID)
}

func (s *ServiceSuite) TestCurrentUserRequiresIdentityWithoutBypass() {
	_, err := s.svc.CurrentUser(context.Background())
	s.True(derrors.HasCode(err, derrors.CodeUnauthorized))
}
