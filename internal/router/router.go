package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"finrep-server/internal/config"
	"finrep-server/internal/handler"
	"finrep-server/internal/middleware"
	"finrep-server/internal/model"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	oauthHandler *handler.OAuthHandler,
	userHandler *handler.UserHandler,
	roleHandler *handler.RoleHandler,
	auditHandler *handler.AuditHandler,
	healthHandler http.HandlerFunc,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", healthHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", authHandler.Login)
			auth.Post("/otp/verify", authHandler.VerifyOTP)
			auth.Post("/refresh", authHandler.Refresh)
			auth.Post("/logout", authHandler.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		api.Route("/oauth", func(oauth chi.Router) {
			oauth.Get("/providers", oauthHandler.Providers)
			oauth.Get("/{provider}/login", oauthHandler.Login)
			oauth.Get("/{provider}/callback", oauthHandler.Callback)
			oauth.With(authMiddleware.RequireAuth).Get("/{provider}/link", oauthHandler.Link)
			oauth.With(authMiddleware.RequireAuth).Get("/{provider}/unlink", oauthHandler.Unlink)
		})

		api.With(authMiddleware.RequireAuth, authMiddleware.RequirePermission(model.PermUsersCreate)).Post("/users", userHandler.Create)
		api.With(authMiddleware.RequireAuth, authMiddleware.RequirePermission(model.PermUsersCreate)).Post("/users/invite", userHandler.Invite)
		api.With(authMiddleware.RequireAuth, authMiddleware.RequirePermission(model.PermUsersRead)).Get("/users", userHandler.List)
		api.With(authMiddleware.RequireAuth).Get("/users/{id}", userHandler.Get)
		api.With(authMiddleware.RequireAuth, authMiddleware.RequirePermission(model.PermUsersUpdate)).Patch("/users/{id}", userHandler.Update)
		api.With(authMiddleware.RequireAuth, authMiddleware.RequirePermission(model.PermUsersDelete)).Delete("/users/{id}", userHandler.Delete)

		api.With(authMiddleware.RequireAuth, authMiddleware.RequirePermission(model.PermRolesRead)).Get("/roles", roleHandler.List)
		api.With(authMiddleware.RequireAuth, authMiddleware.RequirePermission(model.PermSiteManage)).Get("/audit", auditHandler.List)
	})

	return r
}
