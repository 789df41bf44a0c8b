// Package auth handles sign-in: upserting the account from the identity
// provider's claims and deciding what a soft-deleted account means when its
// owner comes back. A deletion with a matching ban entry in the audit log is
// permanent; one without is a self-service deletion and the account revives.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"skillhub/internal/audit"
	"skillhub/internal/registry/models"
	"skillhub/internal/registry/store"
	derrors "skillhub/pkg/domain-errors"
	"skillhub/pkg/platform/sentinel"
)

type Service struct {
	stores store.Stores
	audit  audit.Store
	log    *slog.Logger
	now    func() time.Time
}

func New(stores store.Stores, auditStore audit.Store, log *slog.Logger) *Service {
	return &Service{
		stores: stores,
		audit:  auditStore,
		log:    log,
		now:    time.Now,
	}
}

// SignInInput carries the verified identity-provider claims.
type SignInInput struct {
	Handle      string
	Name        string
	DisplayName string
	Image       string
}

// SignIn resolves the account for a verified identity, creating it on first
// sign-in. For an existing live account this is a cheap read plus profile
// refresh; the audit log is consulted only when the account is soft-deleted.
// Banned accounts come back CodeSuspended with DeletedAt untouched;
// self-deleted accounts revive in place.
func (s *Service) SignIn(ctx context.Context, input SignInInput) (*models.User, error) {
	handle := strings.TrimSpace(strings.ToLower(input.Handle))
	if handle == "" {
		return nil, derrors.New(derrors.CodeBadRequest, "handle is required")
	}

	user, err := s.stores.Users.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return s.createUser(ctx, handle, input)
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "find user")
	}

	if user.DeletedAt != nil {
		if err := s.checkBanned(ctx, user.ID); err != nil {
			return nil, err
		}
		// Self-service deletion; signing back in revives the account.
		user.DeletedAt = nil
		s.log.Info("account revived on sign-in", "user_id", user.ID)
	}

	user.Name = input.Name
	user.DisplayName = input.DisplayName
	user.Image = input.Image
	user.UpdatedAt = s.now()
	if err := s.stores.Users.Update(ctx, user); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "update user")
	}
	return user, nil
}

// checkBanned looks for a ban entry targeting the user. Only called for
// soft-deleted accounts so the common sign-in path never reads the audit log.
func (s *Service) checkBanned(ctx context.Context, userID uuid.UUID) error {
	_, err := s.audit.FindByTarget(ctx, audit.TargetUser, userID, audit.ActionUserBan)
	if err == nil {
		return derrors.New(derrors.CodeSuspended, "account is suspended")
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	return derrors.Wrap(err, derrors.CodeInternal, "check ban status")
}

func (s *Service) createUser(ctx context.Context, handle string, input SignInInput) (*models.User, error) {
	now := s.now()
	user := &models.User{
		ID:          uuid.New(),
		Handle:      handle,
		Name:        input.Name,
		DisplayName: input.DisplayName,
		Image:       input.Image,
		Role:        models.RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.stores.Users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a first-sign-in race; take the winner's row.
			return s.stores.Users.FindByHandle(ctx, handle)
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "create user")
	}
	return user, nil
}
