package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"skillhub/internal/audit"
	"skillhub/internal/platform/logger"
	"skillhub/internal/registry/models"
	"skillhub/internal/registry/store"
	derrors "skillhub/pkg/domain-errors"
)

type AuthServiceSuite struct {
	suite.Suite
	stores store.Stores
	audit  *audit.InMemoryStore
	svc    *Service
	ctx    context.Context
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.stores = store.NewMemory().Stores()
	s.audit = audit.NewInMemoryStore()
	s.svc = New(s.stores, s.audit, logger.Discard())
	s.ctx = context.Background()
}

func (s *AuthServiceSuite) signIn(handle string) (*models.User, error) {
	return s.svc.SignIn(s.ctx, SignInInput{Handle: handle, Name: handle})
}

func (s *AuthServiceSuite) softDelete(user *models.User) {
	now := time.Now()
	user.DeletedAt = &now
	s.Require().NoError(s.stores.Users.Update(s.ctx, user))
}

func (s *AuthServiceSuite) TestFirstSignInCreatesAccount() {
	user, err := s.signIn("newcomer")
	s.Require().NoError(err)
	s.Equal("newcomer", user.Handle)
	s.Equal(models.RoleUser, user.Role)
	s.Nil(user.DeletedAt)
}

func (s *AuthServiceSuite) TestRepeatSignInRefreshesProfile() {
	first, err := s.signIn("regular")
	s.Require().NoError(err)

	again, err := s.svc.SignIn(s.ctx, SignInInput{Handle: "regular", Name: "New Name"})
	s.Require().NoError(err)
	s.Equal(first.ID, again.ID)
	s.Equal("New Name", again.Name)
}

func (s *AuthServiceSuite) TestSelfDeletedAccountRevives() {
	user, err := s.signIn("comeback")
	s.Require().NoError(err)
	s.softDelete(user)

	revived, err := s.signIn("comeback")
	s.Require().NoError(err)
	s.Equal(user.ID, revived.ID)
	s.Nil(revived.DeletedAt)

	stored, err := s.stores.Users.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Nil(stored.DeletedAt)
}

func (s *AuthServiceSuite) TestBannedAccountStaysSuspended() {
	user, err := s.signIn("troublemaker")
	s.Require().NoError(err)
	s.softDelete(user)

	_, err = s.audit.Append(s.ctx, audit.Entry{
		ActorUserID: uuid.New(),
		Action:      audit.ActionUserBan,
		TargetType:  audit.TargetUser,
		TargetID:    user.ID,
		CreatedAt:   time.Now(),
	})
	s.Require().NoError(err)

	_, err = s.signIn("troublemaker")
	s.True(derrors.HasCode(err, derrors.CodeSuspended))

	// DeletedAt stays set; the failed sign-in changes nothing.
	stored, err := s.stores.Users.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.NotNil(stored.DeletedAt)
}

func (s *AuthServiceSuite) TestBanOnOtherUserDoesNotSuspend() {
	user, err := s.signIn("bystander")
	s.Require().NoError(err)
	s.softDelete(user)

	// A ban on a different account must not leak onto this one.
	_, err = s.audit.Append(s.ctx, audit.Entry{
		ActorUserID: uuid.New(),
		Action:      audit.ActionUserBan,
		TargetType:  audit.TargetUser,
		TargetID:    uuid.New(),
		CreatedAt:   time.Now(),
	})
	s.Require().NoError(err)

	revived, err := s.signIn("bystander")
	s.Require().NoError(err)
	s.Nil(revived.DeletedAt)
}

func (s *AuthServiceSuite) TestLiveAccountSkipsAuditLookup() {
	_, err := s.signIn("busy")
	s.Require().NoError(err)

	// A non-ban entry on the user must not affect a live sign-in either.
	_, err = s.signIn("busy")
	s.Require().NoError(err)
}

func (s *AuthServiceSuite) TestHandleNormalized() {
	user, err := s.svc.SignIn(s.ctx, SignInInput{Handle: "  MixedCase  "})
	s.Require().NoError(err)
	s.Equal("mixedcase", user.Handle)
}

func (s *AuthServiceSuite) TestEmptyHandleRejected() {
	_, err := s.svc.SignIn(s.ctx, SignInInput{Handle: "   "})
	s.True(derrors.HasCode(err, derrors.CodeBadRequest))
}
