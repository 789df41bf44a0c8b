package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"skillhub/internal/registry/models"
	"skillhub/pkg/platform/sentinel"
)

// Memory implements every store interface in memory for tests and local
// development. Records are copied on the way in and out so callers cannot
// mutate store state behind the lock's back.
type Memory struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]models.User
	skills    map[uuid.UUID]models.Skill
	souls     map[uuid.UUID]models.Soul
	versions  map[uuid.UUID]models.Version
	resources map[uuid.UUID]models.Resource
	comments  map[uuid.UUID]models.Comment
	stars     map[starKey]models.Star
	dedupes   map[dedupeKey]models.DownloadDedupe

	txShards [numTxShards]sync.Mutex
}

type starKey struct {
	skillID uuid.UUID
	userID  uuid.UUID
}

type dedupeKey struct {
	skillID  uuid.UUID
	ipHash   string
	dayStart int64
}

// numTxShards spreads operation locks across shards hashed by item key so
// operations on different items never block each other.
const numTxShards = 64

// NewMemory constructs an empty in-memory store set.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[uuid.UUID]models.User),
		skills:    make(map[uuid.UUID]models.Skill),
		souls:     make(map[uuid.UUID]models.Soul),
		versions:  make(map[uuid.UUID]models.Version),
		resources: make(map[uuid.UUID]models.Resource),
		comments:  make(map[uuid.UUID]models.Comment),
		stars:     make(map[starKey]models.Star),
		dedupes:   make(map[dedupeKey]models.DownloadDedupe),
	}
}

// Stores bundles the memory implementation behind the store interfaces. Each
// entity view shares the same lock and maps.
func (m *Memory) Stores() Stores {
	return Stores{
		Tx:        m,
		Users:     memoryUsers{m},
		Skills:    memorySkills{m},
		Souls:     memorySouls{m},
		Versions:  memoryVersions{m},
		Resources: memoryResources{m},
		Comments:  memoryComments{m},
		Stars:     memoryStars{m},
		Dedupes:   memoryDedupes{m},
	}
}

// RunInTx serializes operations touching the same item via a sharded mutex.
// Unlike the postgres implementation there is no rollback and no read
// isolation: an error mid-callback leaves earlier writes in place, and a
// concurrent reader may observe a mutation before its projection rewrite.
// Writers to the same item are serialized, which is what the domain
// invariants depend on; treat the rest as a known gap of the memory backend.
func (m *Memory) RunInTx(ctx context.Context, itemKey string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	shard := hashKey(itemKey) % numTxShards
	m.txShards[shard].Lock()
	defer m.txShards[shard].Unlock()
	return fn(ctx)
}

// hashKey uses FNV-1a for shard distribution.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// --- users ---

func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.users[user.ID] = cloneUser(*user)
	return nil
}

func (m *Memory) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if user, ok := m.users[id]; ok {
		u := cloneUser(user)
		return &u, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
}

func (m *Memory) FindUserByHandle(_ context.Context, handle string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.Handle == handle {
			u := cloneUser(user)
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", handle, sentinel.ErrNotFound)
}

func (m *Memory) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrNotFound)
	}
	m.users[user.ID] = cloneUser(*user)
	return nil
}

// --- skills ---

func (m *Memory) CreateSkill(ctx context.Context, skill *models.Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if skill.ID == uuid.Nil {
		skill.ID = uuid.New()
	}
	m.skills[skill.ID] = cloneSkill(*skill)
	return nil
}

func (m *Memory) FindSkillByID(_ context.Context, id uuid.UUID) (*models.Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if skill, ok := m.skills[id]; ok {
		s := cloneSkill(skill)
		return &s, nil
	}
	return nil, fmt.Errorf("skill %s: %w", id, sentinel.ErrNotFound)
}

func (m *Memory) FindSkillBySlug(_ context.Context, slug string) (*models.Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, skill := range m.skills {
		if skill.Slug == slug {
			s := cloneSkill(skill)
			return &s, nil
		}
	}
	return nil, fmt.Errorf("skill %q: %w", slug, sentinel.ErrNotFound)
}

func (m *Memory) UpdateSkill(_ context.Context, skill *models.Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.skills[skill.ID]; !ok {
		return fmt.Errorf("skill %s: %w", skill.ID, sentinel.ErrNotFound)
	}
	m.skills[skill.ID] = cloneSkill(*skill)
	return nil
}

func (m *Memory) DeleteSkill(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.skills[id]; !ok {
		return fmt.Errorf("skill %s: %w", id, sentinel.ErrNotFound)
	}
	delete(m.skills, id)
	return nil
}

// --- souls ---

func (m *Memory) CreateSoul(ctx context.Context, soul *models.Soul) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if soul.ID == uuid.Nil {
		soul.ID = uuid.New()
	}
	m.souls[soul.ID] = cloneSoul(*soul)
	return nil
}

func (m *Memory) FindSoulByID(_ context.Context, id uuid.UUID) (*models.Soul, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if soul, ok := m.souls[id]; ok {
		s := cloneSoul(soul)
		return &s, nil
	}
	return nil, fmt.Errorf("soul %s: %w", id, sentinel.ErrNotFound)
}

func (m *Memory) FindSoulBySlug(_ context.Context, slug string) (*models.Soul, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, soul := range m.souls {
		if soul.Slug == slug {
			s := cloneSoul(soul)
			return &s, nil
		}
	}
	return nil, fmt.Errorf("soul %q: %w", slug, sentinel.ErrNotFound)
}

func (m *Memory) UpdateSoul(_ context.Context, soul *models.Soul) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.souls[soul.ID]; !ok {
		return fmt.Errorf("soul %s: %w", soul.ID, sentinel.ErrNotFound)
	}
	m.souls[soul.ID] = cloneSoul(*soul)
	return nil
}

func (m *Memory) DeleteSoul(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.souls[id]; !ok {
		return fmt.Errorf("soul %s: %w", id, sentinel.ErrNotFound)
	}
	delete(m.souls, id)
	return nil
}

// --- versions ---

func (m *Memory) CreateVersion(_ context.Context, version *models.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.versions {
		if existing.SkillID == version.SkillID && existing.Version == version.Version {
			return fmt.Errorf("version %q: %w", version.Version, sentinel.ErrConflict)
		}
	}
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	m.versions[version.ID] = cloneVersion(*version)
	return nil
}

func (m *Memory) UpdateVersion(_ context.Context, version *models.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[version.ID]; !ok {
		return fmt.Errorf("version %s: %w", version.ID, sentinel.ErrNotFound)
	}
	m.versions[version.ID] = cloneVersion(*version)
	return nil
}

func (m *Memory) FindVersionByID(_ context.Context, id uuid.UUID) (*models.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if version, ok := m.versions[id]; ok {
		v := cloneVersion(version)
		return &v, nil
	}
	return nil, fmt.Errorf("version %s: %w", id, sentinel.ErrNotFound)
}

func (m *Memory) FindBySkillAndVersion(_ context.Context, skillID uuid.UUID, ver string) (*models.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, version := range m.versions {
		if version.SkillID == skillID && version.Version == ver {
			v := cloneVersion(version)
			return &v, nil
		}
	}
	return nil, fmt.Errorf("version %q: %w", ver, sentinel.ErrNotFound)
}

func (m *Memory) ListBySkill(_ context.Context, skillID uuid.UUID) ([]models.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Version
	for _, version := range m.versions {
		if version.SkillID == skillID {
			out = append(out, cloneVersion(version))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- resources ---

func (m *Memory) InsertResource(_ context.Context, resource *models.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if resource.ID == uuid.Nil {
		resource.ID = uuid.New()
	}
	m.resources[resource.ID] = cloneResource(*resource)
	return nil
}

func (m *Memory) FindResourceByID(_ context.Context, id uuid.UUID) (*models.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if resource, ok := m.resources[id]; ok {
		r := cloneResource(resource)
		return &r, nil
	}
	return nil, fmt.Errorf("resource %s: %w", id, sentinel.ErrNotFound)
}

func (m *Memory) FindByTypeSlug(_ context.Context, typ models.ItemType, slug string) (*models.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, resource := range m.resources {
		if resource.Type == typ && resource.Slug == slug {
			r := cloneResource(resource)
			return &r, nil
		}
	}
	return nil, fmt.Errorf("resource %s/%s: %w", typ, slug, sentinel.ErrNotFound)
}

func (m *Memory) ListPage(_ context.Context, typ models.ItemType, limit int, before time.Time) ([]models.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Resource
	for _, resource := range m.resources {
		if resource.Type != typ || resource.SoftDeletedAt != nil {
			continue
		}
		if !before.IsZero() && !resource.UpdatedAt.Before(before) {
			continue
		}
		out = append(out, cloneResource(resource))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListByOwner(_ context.Context, typ models.ItemType, ownerID uuid.UUID, limit int) ([]models.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Resource
	for _, resource := range m.resources {
		if resource.Type != typ || resource.OwnerUserID != ownerID {
			continue
		}
		out = append(out, cloneResource(resource))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateResource(_ context.Context, resource *models.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[resource.ID]; !ok {
		return fmt.Errorf("resource %s: %w", resource.ID, sentinel.ErrNotFound)
	}
	m.resources[resource.ID] = cloneResource(*resource)
	return nil
}

func (m *Memory) DeleteResource(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[id]; !ok {
		return fmt.Errorf("resource %s: %w", id, sentinel.ErrNotFound)
	}
	delete(m.resources, id)
	return nil
}

// --- comments ---

func (m *Memory) CreateComment(_ context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	m.comments[comment.ID] = cloneComment(*comment)
	return nil
}

func (m *Memory) FindCommentByID(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if comment, ok := m.comments[id]; ok {
		c := cloneComment(comment)
		return &c, nil
	}
	return nil, fmt.Errorf("comment %s: %w", id, sentinel.ErrNotFound)
}

func (m *Memory) UpdateComment(_ context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[comment.ID]; !ok {
		return fmt.Errorf("comment %s: %w", comment.ID, sentinel.ErrNotFound)
	}
	m.comments[comment.ID] = cloneComment(*comment)
	return nil
}

func (m *Memory) ListCommentsBySkill(_ context.Context, skillID uuid.UUID, limit int) ([]models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Comment
	for _, comment := range m.comments {
		if comment.SkillID == skillID {
			out = append(out, cloneComment(comment))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- stars ---

func (m *Memory) FindStar(_ context.Context, skillID, userID uuid.UUID) (*models.Star, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if star, ok := m.stars[starKey{skillID, userID}]; ok {
		s := star
		return &s, nil
	}
	return nil, fmt.Errorf("star: %w", sentinel.ErrNotFound)
}

func (m *Memory) CreateStar(_ context.Context, star *models.Star) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := starKey{star.SkillID, star.UserID}
	if _, ok := m.stars[key]; ok {
		return fmt.Errorf("star exists: %w", sentinel.ErrConflict)
	}
	m.stars[key] = *star
	return nil
}

func (m *Memory) DeleteStar(_ context.Context, skillID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := starKey{skillID, userID}
	if _, ok := m.stars[key]; !ok {
		return fmt.Errorf("star: %w", sentinel.ErrNotFound)
	}
	delete(m.stars, key)
	return nil
}

func (m *Memory) ListStarsByUser(_ context.Context, userID uuid.UUID, limit int) ([]models.Star, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Star
	for _, star := range m.stars {
		if star.UserID == userID {
			out = append(out, star)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- download dedupes ---

func (m *Memory) CreateDedupe(_ context.Context, rec *models.DownloadDedupe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dedupeKey{rec.SkillID, rec.IPHash, rec.DayStart}
	if _, ok := m.dedupes[key]; ok {
		return fmt.Errorf("dedupe exists: %w", sentinel.ErrConflict)
	}
	m.dedupes[key] = *rec
	return nil
}

func (m *Memory) PruneBefore(_ context.Context, cutoff int64, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for key, rec := range m.dedupes {
		if deleted >= int64(limit) {
			break
		}
		if rec.DayStart < cutoff {
			delete(m.dedupes, key)
			deleted++
		}
	}
	return deleted, nil
}

// --- clone helpers ---

func cloneUser(u models.User) models.User {
	u.DeletedAt = cloneTime(u.DeletedAt)
	return u
}

func cloneSkill(s models.Skill) models.Skill {
	s.SoftDeletedAt = cloneTime(s.SoftDeletedAt)
	s.ResourceID = cloneID(s.ResourceID)
	s.LatestVersionID = cloneID(s.LatestVersionID)
	if s.Tags != nil {
		tags := make(map[string]uuid.UUID, len(s.Tags))
		for k, v := range s.Tags {
			tags[k] = v
		}
		s.Tags = tags
	}
	s.ModerationFlags = append([]string(nil), s.ModerationFlags...)
	return s
}

func cloneSoul(s models.Soul) models.Soul {
	s.SoftDeletedAt = cloneTime(s.SoftDeletedAt)
	s.ResourceID = cloneID(s.ResourceID)
	s.LatestVersionID = cloneID(s.LatestVersionID)
	s.ModerationFlags = append([]string(nil), s.ModerationFlags...)
	return s
}

func cloneVersion(v models.Version) models.Version {
	v.SoftDeletedAt = cloneTime(v.SoftDeletedAt)
	v.Files = append([]models.VersionFile(nil), v.Files...)
	return v
}

func cloneResource(r models.Resource) models.Resource {
	r.SoftDeletedAt = cloneTime(r.SoftDeletedAt)
	r.ModerationFlags = append([]string(nil), r.ModerationFlags...)
	return r
}

func cloneComment(c models.Comment) models.Comment {
	c.SoftDeletedAt = cloneTime(c.SoftDeletedAt)
	c.DeletedBy = cloneID(c.DeletedBy)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
