package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skillhub/internal/downloads"
	"skillhub/internal/platform/middleware"
)

// NewRouter assembles the full route tree. Authentication is resolved once
// at the top; individual operations decide whether they need a user.
func NewRouter(api *API, downloadHandler *downloads.Handler, validator middleware.JWTValidator, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Auth(validator, log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/callback", api.SignIn)
		r.Delete("/me", api.DeleteOwnAccount)
		r.Get("/me/stars", api.ListStarred)

		r.Route("/skills", func(r chi.Router) {
			r.Get("/", api.ListSkills)
			r.Post("/", api.CreateSkill)
			r.Get("/{slug}", api.GetSkill)
			r.Post("/{slug}/versions", api.PublishVersion)
			r.Get("/{slug}/comments", api.ListComments)
			r.Post("/{slug}/comments", api.AddComment)
			r.Post("/{slug}/star", api.ToggleStar)
			r.Get("/{slug}/star", api.GetStar)
			r.Delete("/{slug}", api.HideSkill)
			r.Post("/{slug}/restore", api.RestoreSkill)
		})
		downloadHandler.Routes(r)

		r.Route("/souls", func(r chi.Router) {
			r.Get("/", api.ListSouls)
			r.Post("/", api.CreateSoul)
			r.Get("/{slug}", api.GetSoul)
			r.Post("/{slug}/install", api.ReportSoulInstall)
			r.Delete("/{slug}", api.HideSoul)
			r.Post("/{slug}/restore", api.RestoreSoul)
		})

		r.Get("/users/{handle}/skills", api.ListUserSkills)
		r.Get("/users/{handle}/souls", api.ListUserSouls)

		r.Delete("/comments/{id}", api.RemoveComment)

		r.Route("/moderation", func(r chi.Router) {
			r.Post("/users/{id}/ban", api.BanUser)
			r.Patch("/skills/{id}", api.UpdateSkillModeration)
			r.Patch("/souls/{id}", api.UpdateSoulModeration)
			r.Post("/versions/{id}/takedown", api.TakeDownVersion)
			r.Delete("/skills/{id}", api.HardDeleteSkill)
			r.Delete("/souls/{id}", api.HardDeleteSoul)
		})
	})

	return r
}
