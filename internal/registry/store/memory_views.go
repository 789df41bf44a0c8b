package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"skillhub/internal/registry/models"
)

// Per-entity views over *Memory, satisfying the store interfaces. The data
// methods live on Memory itself so everything shares one lock.

type memoryUsers struct{ m *Memory }

func (s memoryUsers) Create(ctx context.Context, user *models.User) error {
	return s.m.CreateUser(ctx, user)
}

func (s memoryUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.m.FindUserByID(ctx, id)
}

func (s memoryUsers) FindByHandle(ctx context.Context, handle string) (*models.User, error) {
	return s.m.FindUserByHandle(ctx, handle)
}

func (s memoryUsers) Update(ctx context.Context, user *models.User) error {
	return s.m.UpdateUser(ctx, user)
}

type memorySkills struct{ m *Memory }

func (s memorySkills) Create(ctx context.Context, skill *models.Skill) error {
	return s.m.CreateSkill(ctx, skill)
}

func (s memorySkills) FindByID(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	return s.m.FindSkillByID(ctx, id)
}

func (s memorySkills) FindBySlug(ctx context.Context, slug string) (*models.Skill, error) {
	return s.m.FindSkillBySlug(ctx, slug)
}

func (s memorySkills) Update(ctx context.Context, skill *models.Skill) error {
	return s.m.UpdateSkill(ctx, skill)
}

func (s memorySkills) Delete(ctx context.Context, id uuid.UUID) error {
	return s.m.DeleteSkill(ctx, id)
}

type memorySouls struct{ m *Memory }

func (s memorySouls) Create(ctx context.Context, soul *models.Soul) error {
	return s.m.CreateSoul(ctx, soul)
}

func (s memorySouls) FindByID(ctx context.Context, id uuid.UUID) (*models.Soul, error) {
	return s.m.FindSoulByID(ctx, id)
}

func (s memorySouls) FindBySlug(ctx context.Context, slug string) (*models.Soul, error) {
	return s.m.FindSoulBySlug(ctx, slug)
}

func (s memorySouls) Update(ctx context.Context, soul *models.Soul) error {
	return s.m.UpdateSoul(ctx, soul)
}

func (s memorySouls) Delete(ctx context.Context, id uuid.UUID) error {
	return s.m.DeleteSoul(ctx, id)
}

type memoryVersions struct{ m *Memory }

func (s memoryVersions) Create(ctx context.Context, version *models.Version) error {
	return s.m.CreateVersion(ctx, version)
}

func (s memoryVersions) FindByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	return s.m.FindVersionByID(ctx, id)
}

func (s memoryVersions) Update(ctx context.Context, version *models.Version) error {
	return s.m.UpdateVersion(ctx, version)
}

func (s memoryVersions) FindBySkillAndVersion(ctx context.Context, skillID uuid.UUID, version string) (*models.Version, error) {
	return s.m.FindBySkillAndVersion(ctx, skillID, version)
}

func (s memoryVersions) ListBySkill(ctx context.Context, skillID uuid.UUID) ([]models.Version, error) {
	return s.m.ListBySkill(ctx, skillID)
}

type memoryResources struct{ m *Memory }

func (s memoryResources) Insert(ctx context.Context, resource *models.Resource) error {
	return s.m.InsertResource(ctx, resource)
}

func (s memoryResources) FindByID(ctx context.Context, id uuid.UUID) (*models.Resource, error) {
	return s.m.FindResourceByID(ctx, id)
}

func (s memoryResources) FindByTypeSlug(ctx context.Context, typ models.ItemType, slug string) (*models.Resource, error) {
	return s.m.FindByTypeSlug(ctx, typ, slug)
}

func (s memoryResources) ListPage(ctx context.Context, typ models.ItemType, limit int, before time.Time) ([]models.Resource, error) {
	return s.m.ListPage(ctx, typ, limit, before)
}

func (s memoryResources) ListByOwner(ctx context.Context, typ models.ItemType, ownerID uuid.UUID, limit int) ([]models.Resource, error) {
	return s.m.ListByOwner(ctx, typ, ownerID, limit)
}

func (s memoryResources) Update(ctx context.Context, resource *models.Resource) error {
	return s.m.UpdateResource(ctx, resource)
}

func (s memoryResources) Delete(ctx context.Context, id uuid.UUID) error {
	return s.m.DeleteResource(ctx, id)
}

type memoryComments struct{ m *Memory }

func (s memoryComments) Create(ctx context.Context, comment *models.Comment) error {
	return s.m.CreateComment(ctx, comment)
}

func (s memoryComments) FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return s.m.FindCommentByID(ctx, id)
}

func (s memoryComments) Update(ctx context.Context, comment *models.Comment) error {
	return s.m.UpdateComment(ctx, comment)
}

func (s memoryComments) ListBySkill(ctx context.Context, skillID uuid.UUID, limit int) ([]models.Comment, error) {
	return s.m.ListCommentsBySkill(ctx, skillID, limit)
}

type memoryStars struct{ m *Memory }

func (s memoryStars) Find(ctx context.Context, skillID, userID uuid.UUID) (*models.Star, error) {
	return s.m.FindStar(ctx, skillID, userID)
}

func (s memoryStars) Create(ctx context.Context, star *models.Star) error {
	return s.m.CreateStar(ctx, star)
}

func (s memoryStars) Delete(ctx context.Context, skillID, userID uuid.UUID) error {
	return s.m.DeleteStar(ctx, skillID, userID)
}

func (s memoryStars) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Star, error) {
	return s.m.ListStarsByUser(ctx, userID, limit)
}

type memoryDedupes struct{ m *Memory }

func (s memoryDedupes) Create(ctx context.Context, rec *models.DownloadDedupe) error {
	return s.m.CreateDedupe(ctx, rec)
}

func (s memoryDedupes) PruneBefore(ctx context.Context, cutoff int64, limit int) (int64, error) {
	return s.m.PruneBefore(ctx, cutoff, limit)
}
