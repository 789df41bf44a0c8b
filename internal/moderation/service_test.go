package moderation

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
	"skillhub/internal/registry/service"
	"skillhub/internal/registry/store"
	derrors "skillhub/pkg/domain-errors"
	"skillhub/pkg/platform/sentinel"
)

type ModerationSuite struct {
	suite.Suite
	stores   store.Stores
	audit    *audit.InMemoryStore
	registry *service.Service
	svc      *Service

	owner     *models.User
	moderator *models.User
	admin     *models.User
}

func TestModerationSuite(t *testing.T) {
	suite.Run(t, new(ModerationSuite))
}

func (s *ModerationSuite) SetupTest() {
	s.stores = store.NewMemory().Stores()
	s.audit = audit.NewInMemoryStore()
	s.registry = service.New(s.stores, s.audit, logger.Discard(), config.Server{})
	s.svc = New(s.registry, s.audit, logger.Discard())

	s.owner = s.createUser("owner", models.RoleUser)
	s.moderator = s.createUser("mod", models.RoleModerator)
	s.admin = s.createUser("boss", models.RoleAdmin)
}

func (s *ModerationSuite) createUser(handle string, role models.Role) *models.User {
	now := time.Now()
	user := &models.User{
		ID:        uuid.New(),
		Handle:    handle,
		Name:      handle,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.stores.Users.Create(context.Background(), user))
	return user
}

func (s *ModerationSuite) as(user *models.User) context.Context {
	return middleware.WithUserID(context.Background(), user.ID.String())
}

func (s *ModerationSuite) createSkill(slug string) *models.Skill {
	skill, err := s.registry.CreateSkill(s.as(s.owner), service.CreateSkillInput{
		Slug:        slug,
		DisplayName: slug,
	})
	s.Require().NoError(err)
	return skill
}

func (s *ModerationSuite) resource(skill *models.Skill) *models.Resource {
	s.Require().NotNil(skill.ResourceID)
	res, err := s.stores.Resources.FindByID(context.Background(), *skill.ResourceID)
	s.Require().NoError(err)
	return res
}

func (s *ModerationSuite) TestBanUserRecordsAudit() {
	err := s.svc.BanUser(s.as(s.moderator), s.owner.ID, "spam")
	s.Require().NoError(err)

	banned, err := s.stores.Users.FindByID(context.Background(), s.owner.ID)
	s.Require().NoError(err)
	s.NotNil(banned.DeletedAt)

	entry, err := s.audit.FindByTarget(context.Background(), audit.TargetUser, s.owner.ID, audit.ActionUserBan)
	s.Require().NoError(err)
	s.Equal(s.moderator.ID, entry.ActorUserID)
	s.Equal("spam", entry.Metadata["reason"])
}

func (s *ModerationSuite) TestBanConvertsSelfDeletion() {
	// Self-deleted account: DeletedAt set, no audit entry.
	now := time.Now()
	s.owner.DeletedAt = &now
	s.Require().NoError(s.stores.Users.Update(context.Background(), s.owner))

	err := s.svc.BanUser(s.as(s.moderator), s.owner.ID, "evasion")
	s.Require().NoError(err)

	// The existing deletion timestamp is preserved; only the audit entry is new.
	banned, err := s.stores.Users.FindByID(context.Background(), s.owner.ID)
	s.Require().NoError(err)
	s.Require().NotNil(banned.DeletedAt)
	s.WithinDuration(now, *banned.DeletedAt, time.Millisecond)

	_, err = s.audit.FindByTarget(context.Background(), audit.TargetUser, s.owner.ID, audit.ActionUserBan)
	s.Require().NoError(err)
}

func (s *ModerationSuite) TestBanRequiresModerator() {
	err := s.svc.BanUser(s.as(s.owner), s.moderator.ID, "revenge")
	s.True(derrors.HasCode(err, derrors.CodeForbidden))

	// Nothing changed, nothing logged.
	target, findErr := s.stores.Users.FindByID(context.Background(), s.moderator.ID)
	s.Require().NoError(findErr)
	s.Nil(target.DeletedAt)
	_, auditErr := s.audit.FindByTarget(context.Background(), audit.TargetUser, s.moderator.ID, audit.ActionUserBan)
	s.ErrorIs(auditErr, sentinel.ErrNotFound)
}

func (s *ModerationSuite) TestBanSelfRejected() {
	err := s.svc.BanUser(s.as(s.moderator), s.moderator.ID, "oops")
	s.True(derrors.HasCode(err, derrors.CodeBadRequest))
}

func (s *ModerationSuite) TestBanUnknownUser() {
	err := s.svc.BanUser(s.as(s.moderator), uuid.New(), "ghost")
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

func (s *ModerationSuite) TestDeleteOwnAccountLeavesNoAudit() {
	err := s.svc.DeleteOwnAccount(s.as(s.owner))
	s.Require().NoError(err)

	deleted, err := s.stores.Users.FindByID(context.Background(), s.owner.ID)
	s.Require().NoError(err)
	s.NotNil(deleted.DeletedAt)

	_, err = s.audit.FindByTarget(context.Background(), audit.TargetUser, s.owner.ID, audit.ActionUserBan)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ModerationSuite) TestHideSkillSyncsProjection() {
	skill := s.createSkill("shady-skill")
	hidden := models.ModerationHidden

	err := s.svc.UpdateSkillModeration(s.as(s.moderator), skill.ID, ModerationUpdate{Status: &hidden})
	s.Require().NoError(err)

	stored, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.Equal(models.ModerationHidden, stored.ModerationStatus)

	res := s.resource(stored)
	s.Equal(models.ModerationHidden, res.ModerationStatus)

	// Hidden items drop out of the public read path.
	_, err = s.registry.GetPublicResource(context.Background(), models.TypeSkill, "shady-skill")
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

func (s *ModerationSuite) TestRestoreSkillSyncsProjection() {
	skill := s.createSkill("redeemed")
	hidden := models.ModerationHidden
	s.Require().NoError(s.svc.UpdateSkillModeration(s.as(s.moderator), skill.ID, ModerationUpdate{Status: &hidden}))

	active := models.ModerationActive
	s.Require().NoError(s.svc.UpdateSkillModeration(s.as(s.moderator), skill.ID, ModerationUpdate{Status: &active}))

	got, err := s.registry.GetPublicResource(context.Background(), models.TypeSkill, "redeemed")
	s.Require().NoError(err)
	s.Equal("redeemed", got.Slug)
}

func (s *ModerationSuite) TestFlagAddAndClear() {
	skill := s.createSkill("flagged")

	err := s.svc.UpdateSkillModeration(s.as(s.moderator), skill.ID, ModerationUpdate{
		AddFlags: []string{models.FlagBlockedMalware},
	})
	s.Require().NoError(err)

	stored, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.True(models.HasFlag(stored.ModerationFlags, models.FlagBlockedMalware))
	s.True(models.HasFlag(s.resource(stored).ModerationFlags, models.FlagBlockedMalware))

	err = s.svc.UpdateSkillModeration(s.as(s.moderator), skill.ID, ModerationUpdate{
		ClearFlags: []string{models.FlagBlockedMalware},
	})
	s.Require().NoError(err)

	stored, err = s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.False(models.HasFlag(stored.ModerationFlags, models.FlagBlockedMalware))
	s.False(models.HasFlag(s.resource(stored).ModerationFlags, models.FlagBlockedMalware))
}

func (s *ModerationSuite) TestSoftDeleteSkillHidesListing() {
	skill := s.createSkill("gone-soon")
	softDelete := true

	err := s.svc.UpdateSkillModeration(s.as(s.moderator), skill.ID, ModerationUpdate{SoftDelete: &softDelete})
	s.Require().NoError(err)

	stored, err := s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
	s.NotNil(stored.SoftDeletedAt)
	s.NotNil(s.resource(stored).SoftDeletedAt)

	listed, err := s.registry.ListResources(context.Background(), models.TypeSkill, 10, time.Time{})
	s.Require().NoError(err)
	s.Empty(listed)
}

func (s *ModerationSuite) TestInvalidStatusRejected() {
	skill := s.createSkill("typo-target")
	bogus := "archived"

	err := s.svc.UpdateSkillModeration(s.as(s.moderator), skill.ID, ModerationUpdate{Status: &bogus})
	s.True(derrors.HasCode(err, derrors.CodeBadRequest))
}

func (s *ModerationSuite) TestModerationUpdateAudited() {
	skill := s.createSkill("watched")
	hidden := models.ModerationHidden

	s.Require().NoError(s.svc.UpdateSkillModeration(s.as(s.moderator), skill.ID, ModerationUpdate{Status: &hidden}))

	entry, err := s.audit.FindByTarget(context.Background(), audit.TargetSkill, skill.ID, audit.ActionModerationUpdate)
	s.Require().NoError(err)
	s.Equal(s.moderator.ID, entry.ActorUserID)
}

func (s *ModerationSuite) TestTakeDownVersion() {
	skill := s.createSkill("versioned")
	version, err := s.registry.PublishVersion(s.as(s.owner), service.PublishVersionInput{
		SkillID: skill.ID,
		Version: "1.0.0",
	})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.TakeDownVersion(s.as(s.moderator), version.ID, "dmca"))

	stored, err := s.stores.Versions.FindByID(context.Background(), version.ID)
	s.Require().NoError(err)
	s.NotNil(stored.SoftDeletedAt)

	entry, err := s.audit.FindByTarget(context.Background(), audit.TargetVersion, version.ID, audit.ActionVersionTakedown)
	s.Require().NoError(err)
	s.Equal("dmca", entry.Metadata["reason"])

	// Taking down again is a no-op, not an error.
	s.Require().NoError(s.svc.TakeDownVersion(s.as(s.moderator), version.ID, "again"))
}

func (s *ModerationSuite) TestHardDeleteSkillRemovesProjection() {
	skill := s.createSkill("doomed")
	resourceID := *skill.ResourceID

	err := s.svc.HardDeleteSkill(s.as(s.admin), skill.ID, "illegal content")
	s.Require().NoError(err)

	_, err = s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.stores.Resources.FindByID(context.Background(), resourceID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	entry, err := s.audit.FindByTarget(context.Background(), audit.TargetSkill, skill.ID, audit.ActionSkillHardDelete)
	s.Require().NoError(err)
	s.Equal("doomed", entry.Metadata["slug"])
}

func (s *ModerationSuite) TestHardDeleteRequiresAdmin() {
	skill := s.createSkill("protected")

	err := s.svc.HardDeleteSkill(s.as(s.moderator), skill.ID, "not allowed")
	s.True(derrors.HasCode(err, derrors.CodeForbidden))

	_, err = s.stores.Skills.FindByID(context.Background(), skill.ID)
	s.Require().NoError(err)
}
