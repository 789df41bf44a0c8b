package downloads

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"skillhub/internal/blob"
	"skillhub/internal/registry/models"
	derrors "skillhub/pkg/domain-errors"
)

// Handler serves skill archives as zip streams.
type Handler struct {
	service *Service
	blobs   blob.Store
	log     *slog.Logger
}

func NewHandler(service *Service, blobs blob.Store, log *slog.Logger) *Handler {
	return &Handler{service: service, blobs: blobs, log: log}
}

// Routes mounts the download endpoint.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/skills/{slug}/download", h.Download)
}

// Download streams one version's files as a zip archive. The version query
// parameter takes an exact version, a tag name, or nothing for the latest
// tag. Abuse mitigations shape only the counter; whether the bytes go out
// depends solely on visibility.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		h.writeError(w, derrors.New(derrors.CodeBadRequest, "slug is required"))
		return
	}

	skill, err := h.service.registry.GetSkillBySlug(ctx, slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := checkSkillVisible(skill); err != nil {
		h.writeError(w, err)
		return
	}

	version, err := h.service.registry.ResolveVersion(ctx, skill, r.URL.Query().Get("version"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if version.SoftDeletedAt != nil {
		h.writeError(w, derrors.New(derrors.CodeGone, "version has been removed"))
		return
	}

	// Count before streaming; mitigation failures never block delivery.
	clientIP := ClientIP(r.RemoteAddr, r.Header.Get("X-Forwarded-For"))
	h.service.CountDownload(ctx, skill.ID, clientIP)
	h.service.metrics.ServedTo(r.Header.Get("User-Agent"))

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-%s.zip"`, skill.Slug, version.Version))
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)

	h.streamArchive(ctx, w, version)
}

// streamArchive writes the version's files into a zip stream. A file whose
// blob cannot be read is skipped so one lost blob does not break the whole
// archive; the skip is logged for operators.
func (h *Handler) streamArchive(ctx context.Context, w io.Writer, version *models.Version) {
	zw := zip.NewWriter(w)
	defer zw.Close()

	for _, file := range version.Files {
		body, err := h.blobs.Get(ctx, file.BlobKey)
		if err != nil {
			h.log.Warn("skipping archive member", "path", file.Path, "error", err)
			continue
		}
		entry, err := zw.Create(file.Path)
		if err != nil {
			body.Close()
			h.log.Error("zip entry create failed", "path", file.Path, "error", err)
			return
		}
		if _, err := io.Copy(entry, body); err != nil {
			body.Close()
			h.log.Error("zip entry write failed", "path", file.Path, "error", err)
			return
		}
		body.Close()
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	status := derrors.ToHTTPStatus(code)
	if status >= 500 {
		h.log.Error("download request failed", "error", err)
	}
	http.Error(w, string(code), status)
}

// checkSkillVisible decides whether any client may download from this skill.
// Soft-deleted skills report gone; hidden and blocked skills report not found
// so their existence does not leak.
func checkSkillVisible(skill *models.Skill) error {
	if skill.SoftDeletedAt != nil {
		return derrors.New(derrors.CodeGone, "skill has been deleted")
	}
	if skill.ModerationStatus != "" && skill.ModerationStatus != models.ModerationActive {
		return derrors.New(derrors.CodeNotFound, "skill not found")
	}
	if models.HasFlag(skill.ModerationFlags, models.FlagBlockedMalware) {
		return derrors.New(derrors.CodeNotFound, "skill not found")
	}
	return nil
}
