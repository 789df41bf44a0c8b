package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"skillhub/internal/auth"
	jwttoken "skillhub/internal/jwt_token"
	"skillhub/internal/moderation"
	"skillhub/internal/registry/models"
	"skillhub/internal/registry/service"
	derrors "skillhub/pkg/domain-errors"
)

const accessTokenTTL = 24 * time.Hour

// API bundles the services behind the public and moderation endpoints.
type API struct {
	registry   *service.Service
	auth       *auth.Service
	moderation *moderation.Service
	tokens     *jwttoken.JWTService
	log        *slog.Logger
}

func NewAPI(registry *service.Service, authService *auth.Service, moderationService *moderation.Service, tokens *jwttoken.JWTService, log *slog.Logger) *API {
	return &API{
		registry:   registry,
		auth:       authService,
		moderation: moderationService,
		tokens:     tokens,
		log:        log,
	}
}

// --- auth ---

type signInRequest struct {
	Handle      string `json:"handle"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image"`
}

type signInResponse struct {
	AccessToken string            `json:"accessToken"`
	User        models.PublicUser `json:"user"`
}

// SignIn is the identity-provider callback. The gateway has already verified
// the upstream identity; this endpoint upserts the account, applies the
// ban-or-revive decision for soft-deleted accounts, and mints an access
// token.
func (a *API) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := a.auth.SignIn(r.Context(), auth.SignInInput{
		Handle:      req.Handle,
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Image:       req.Image,
	})
	if err != nil {
		WriteError(w, a.log, err)
		return
	}

	token, err := a.tokens.GenerateAccessToken(user.ID, accessTokenTTL)
	if err != nil {
		WriteError(w, a.log, derrors.Wrap(err, derrors.CodeInternal, "mint access token"))
		return
	}

	WriteJSON(w, http.StatusOK, signInResponse{
		AccessToken: token,
		User:        *models.ToPublicUser(user),
	})
}

func (a *API) DeleteOwnAccount(w http.ResponseWriter, r *http.Request) {
	if err := a.moderation.DeleteOwnAccount(r.Context()); err != nil {
		WriteError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- listings ---

func (a *API) ListSkills(w http.ResponseWriter, r *http.Request) {
	a.listResources(w, r, models.TypeSkill)
}

func (a *API) ListSouls(w http.ResponseWriter, r *http.Request) {
	a.listResources(w, r, models.TypeSoul)
}

func (a *API) ListUserSkills(w http.ResponseWriter, r *http.Request) {
	a.listOwnerResources(w, r, models.TypeSkill)
}

func (a *API) ListUserSouls(w http.ResponseWriter, r *http.Request) {
	a.listOwnerResources(w, r, models.TypeSoul)
}

func (a *API) listOwnerResources(w http.ResponseWriter, r *http.Request, typ models.ItemType) {
	resources, err := a.registry.ListResourcesByOwnerHandle(r.Context(), typ, chi.URLParam(r, "handle"), queryInt(r, "limit"))
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": resources})
}

func (a *API) listResources(w http.ResponseWriter, r *http.Request, typ models.ItemType) {
	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid before cursor"))
			return
		}
		before = parsed
	}

	resources, err := a.registry.ListResources(r.Context(), typ, queryInt(r, "limit"), before)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": resources})
}

func (a *API) GetSkill(w http.ResponseWriter, r *http.Request) {
	a.getResource(w, r, models.TypeSkill)
}

func (a *API) GetSoul(w http.ResponseWriter, r *http.Request) {
	a.getResource(w, r, models.TypeSoul)
}

func (a *API) HideSkill(w http.ResponseWriter, r *http.Request) {
	a.setHidden(w, r, a.registry.SetSkillHidden, true)
}

func (a *API) RestoreSkill(w http.ResponseWriter, r *http.Request) {
	a.setHidden(w, r, a.registry.SetSkillHidden, false)
}

func (a *API) HideSoul(w http.ResponseWriter, r *http.Request) {
	a.setHidden(w, r, a.registry.SetSoulHidden, true)
}

func (a *API) RestoreSoul(w http.ResponseWriter, r *http.Request) {
	a.setHidden(w, r, a.registry.SetSoulHidden, false)
}

func (a *API) setHidden(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, bool) error, hidden bool) {
	if err := fn(r.Context(), chi.URLParam(r, "slug"), hidden); err != nil {
		WriteError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getResource(w http.ResponseWriter, r *http.Request, typ models.ItemType) {
	resource, err := a.registry.GetPublicResource(r.Context(), typ, chi.URLParam(r, "slug"))
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, resource)
}

// --- item creation and publishing ---

type createItemRequest struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"displayName"`
	Summary     string `json:"summary"`
}

func (a *API) CreateSkill(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	skill, err := a.registry.CreateSkill(r.Context(), service.CreateSkillInput{
		Slug:        req.Slug,
		DisplayName: req.DisplayName,
		Summary:     req.Summary,
	})
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"id": skill.ID, "slug": skill.Slug})
}

func (a *API) CreateSoul(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	soul, err := a.registry.CreateSoul(r.Context(), service.CreateSoulInput{
		Slug:        req.Slug,
		DisplayName: req.DisplayName,
		Summary:     req.Summary,
	})
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"id": soul.ID, "slug": soul.Slug})
}

type publishVersionRequest struct {
	Version string               `json:"version"`
	Files   []models.VersionFile `json:"files"`
	Tags    []string             `json:"tags"`
}

func (a *API) PublishVersion(w http.ResponseWriter, r *http.Request) {
	skill, err := a.registry.GetSkillBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	var req publishVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	version, err := a.registry.PublishVersion(r.Context(), service.PublishVersionInput{
		SkillID: skill.ID,
		Version: req.Version,
		Files:   req.Files,
		Tags:    req.Tags,
	})
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"id": version.ID, "version": version.Version})
}

// --- comments and stars ---

type addCommentRequest struct {
	Body string `json:"body"`
}

func (a *API) AddComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	comment, err := a.registry.AddComment(r.Context(), chi.URLParam(r, "slug"), req.Body)
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"id": comment.ID})
}

func (a *API) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := a.registry.ListComments(r.Context(), chi.URLParam(r, "slug"), queryInt(r, "limit"))
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": comments})
}

func (a *API) RemoveComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid comment id"))
		return
	}
	if err := a.registry.RemoveComment(r.Context(), commentID); err != nil {
		WriteError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) ToggleStar(w http.ResponseWriter, r *http.Request) {
	starred, err := a.registry.ToggleStar(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"starred": starred})
}

func (a *API) GetStar(w http.ResponseWriter, r *http.Request) {
	starred, err := a.registry.IsStarred(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"starred": starred})
}

func (a *API) ListStarred(w http.ResponseWriter, r *http.Request) {
	items, err := a.registry.ListStarredSkills(r.Context(), queryInt(r, "limit"))
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// --- soul installs ---

type installRequest struct {
	Uninstall bool `json:"uninstall"`
}

func (a *API) ReportSoulInstall(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	if err := a.registry.IncrementSoulInstalls(r.Context(), chi.URLParam(r, "slug"), req.Uninstall); err != nil {
		WriteError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- moderation ---

type banRequest struct {
	Reason string `json:"reason"`
}

func (a *API) BanUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid user id"))
		return
	}
	var req banRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	if err := a.moderation.BanUser(r.Context(), targetID, req.Reason); err != nil {
		WriteError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moderationUpdateRequest struct {
	Status     *string  `json:"status"`
	AddFlags   []string `json:"addFlags"`
	ClearFlags []string `json:"clearFlags"`
	SoftDelete *bool    `json:"softDelete"`
}

func (a *API) UpdateSkillModeration(w http.ResponseWriter, r *http.Request) {
	a.updateModeration(w, r, a.moderation.UpdateSkillModeration)
}

func (a *API) UpdateSoulModeration(w http.ResponseWriter, r *http.Request) {
	a.updateModeration(w, r, a.moderation.UpdateSoulModeration)
}

func (a *API) updateModeration(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID, update moderation.ModerationUpdate) error) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid item id"))
		return
	}
	var req moderationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	err = apply(r.Context(), itemID, moderation.ModerationUpdate{
		Status:     req.Status,
		AddFlags:   req.AddFlags,
		ClearFlags: req.ClearFlags,
		SoftDelete: req.SoftDelete,
	})
	if err != nil {
		WriteError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) TakeDownVersion(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid version id"))
		return
	}
	var req banRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	if err := a.moderation.TakeDownVersion(r.Context(), versionID, req.Reason); err != nil {
		WriteError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) HardDeleteSkill(w http.ResponseWriter, r *http.Request) {
	a.hardDelete(w, r, a.moderation.HardDeleteSkill)
}

func (a *API) HardDeleteSoul(w http.ResponseWriter, r *http.Request) {
	a.hardDelete(w, r, a.moderation.HardDeleteSoul)
}

func (a *API) hardDelete(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID, reason string) error) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid item id"))
		return
	}
	var req banRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, a.log, derrors.New(derrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	if err := apply(r.Context(), itemID, req.Reason); err != nil {
		WriteError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}
