package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"skillhub/internal/registry/models"
	derrors "skillhub/pkg/domain-errors"
)

const defaultPageSize = 50

// ListResources returns one public listing page of the given type, newest
// updated first. Rows hidden by moderation are filtered after the store read
// so a page may come back short; callers paginate on the raw updatedAt
// cursor, not the filtered count.
func (s *Service) ListResources(ctx context.Context, typ models.ItemType, limit int, before time.Time) ([]models.PublicResource, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultPageSize
	}
	resources, err := s.stores.Resources.ListPage(ctx, typ, limit, before)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "list resources")
	}
	return publicViews(resources), nil
}

// ListResourcesByOwner returns an owner's public rows of the given type.
func (s *Service) ListResourcesByOwner(ctx context.Context, typ models.ItemType, ownerID uuid.UUID, limit int) ([]models.PublicResource, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultPageSize
	}
	resources, err := s.stores.Resources.ListByOwner(ctx, typ, ownerID, limit)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "list owner resources")
	}
	return publicViews(resources), nil
}

// ListResourcesByOwnerHandle resolves the owner by handle and lists their
// public rows. Unknown and soft-deleted owners report not found so profile
// pages of banned or departed users go dark with their items.
func (s *Service) ListResourcesByOwnerHandle(ctx context.Context, typ models.ItemType, handle string, limit int) ([]models.PublicResource, error) {
	owner, err := s.stores.Users.FindByHandle(ctx, strings.TrimSpace(strings.ToLower(handle)))
	if err != nil {
		return nil, mapNotFound(err, "user not found")
	}
	if owner.DeletedAt != nil {
		return nil, derrors.New(derrors.CodeNotFound, "user not found")
	}
	return s.ListResourcesByOwner(ctx, typ, owner.ID, limit)
}

// GetPublicResource resolves one public projection row by type and slug.
// Hidden, blocked, and soft-deleted rows report not found rather than
// leaking their existence.
func (s *Service) GetPublicResource(ctx context.Context, typ models.ItemType, slug string) (*models.PublicResource, error) {
	resource, err := s.stores.Resources.FindByTypeSlug(ctx, typ, slug)
	if err != nil {
		return nil, mapNotFound(err, "resource not found")
	}
	public := models.ToPublicResource(resource)
	if public == nil {
		return nil, derrors.New(derrors.CodeNotFound, "resource not found")
	}
	return public, nil
}

func publicViews(resources []models.Resource) []models.PublicResource {
	views := make([]models.PublicResource, 0, len(resources))
	for i := range resources {
		if public := models.ToPublicResource(&resources[i]); public != nil {
			views = append(views, *public)
		}
	}
	return views
}
