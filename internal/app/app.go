package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"finrep-server/internal/config"
	"finrep-server/internal/database"
	"finrep-server/internal/event"
	"finrep-server/internal/handler"
	"finrep-server/internal/middleware"
	"finrep-server/internal/model"
	"finrep-server/internal/oauth"
	"finrep-server/internal/repository"
	"finrep-server/internal/router"
	"finrep-server/internal/service"
	"finrep-server/internal/token"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	if err := roleRepo.Seed(context.Background(), model.SeedRoles()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed roles: %w", err)
	}
	if err := seedDefaultSuperintendent(context.Background(), userRepo, cfg.BcryptCost); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed default account: %w", err)
	}
	slog.Info("database ready")

	issuer, err := token.NewIssuer(cfg.SigningKey, cfg.EncryptionKey, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	bus := event.NewBus()

	authService := service.NewAuthService(userRepo, tokenRepo, issuer, bus, service.AuthConfig{
		LockoutThreshold: cfg.LockoutThreshold,
		NotifyThreshold:  cfg.NotifyThreshold,
		LockoutWindow:    cfg.LockoutWindow,
		LockoutDuration:  cfg.LockoutDuration,
		MFANonceTTL:      cfg.MFANonceTTL,
	})
	permissionService := service.NewPermissionService(userRepo, roleRepo)
	userService := service.NewUserService(userRepo, roleRepo, tokenRepo, permissionService, bus, cfg.BcryptCost)
	oauthService := service.NewOAuthService(buildProviders(cfg), userRepo, authService, bus)
	auditService := service.NewAuditService(auditRepo, bus, permissionService)

	auditCtx, auditCancel := context.WithCancel(context.Background())
	go auditService.Run(auditCtx)

	authMiddleware := middleware.NewAuthMiddleware(authService, permissionService)
	authHandler := handler.NewAuthHandler(authService, userService)
	oauthHandler := handler.NewOAuthHandler(oauthService)
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(roleRepo)
	auditHandler := handler.NewAuditHandler(auditService)

	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		if err := db.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}

	appRouter := router.New(cfg, authMiddleware, authHandler, oauthHandler, userHandler, roleHandler, auditHandler, healthHandler)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			func() { auditCancel() },
			func() { db.Close() },
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}

// buildProviders wires up each identity provider that has a complete
// client registration. Incomplete ones are left out, which the HTTP
// layer reports as 501.
func buildProviders(cfg *config.Config) []oauth.Provider {
	var providers []oauth.Provider

	if cfg.OAuthGoogle.Configured() {
		providers = append(providers, oauth.NewGoogle(oauth.Config{
			ClientID:     cfg.OAuthGoogle.ClientID,
			ClientSecret: cfg.OAuthGoogle.ClientSecret,
			RedirectURI:  cfg.OAuthGoogle.RedirectURI,
			Timeout:      cfg.ProviderTimeout,
		}))
	}
	if cfg.OAuthMicrosoft.Configured() {
		providers = append(providers, oauth.NewMicrosoft(oauth.Config{
			ClientID:     cfg.OAuthMicrosoft.ClientID,
			ClientSecret: cfg.OAuthMicrosoft.ClientSecret,
			RedirectURI:  cfg.OAuthMicrosoft.RedirectURI,
			Tenant:       cfg.OAuthMicrosoft.Tenant,
			Timeout:      cfg.ProviderTimeout,
		}))
	}
	if cfg.OAuthFacebook.Configured() {
		providers = append(providers, oauth.NewFacebook(oauth.Config{
			ClientID:     cfg.OAuthFacebook.ClientID,
			ClientSecret: cfg.OAuthFacebook.ClientSecret,
			RedirectURI:  cfg.OAuthFacebook.RedirectURI,
			Timeout:      cfg.ProviderTimeout,
		}))
	}

	for _, p := range providers {
		slog.Info("identity provider configured", "provider", p.Name())
	}
	return providers
}

// seedDefaultSuperintendent creates the bootstrap account on an empty
// database. The generated password is logged once; it must be changed
// after first login.
func seedDefaultSuperintendent(ctx context.Context, users *repository.UserRepository, bcryptCost int) error {
	count, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	superintendent := model.User{
		ID:           uuid.NewString(),
		Username:     "superintendent",
		PasswordHash: string(hash),
		RoleID:       1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, superintendent); err != nil {
		return err
	}

	slog.Warn("seeded default superintendent account, change this password immediately",
		"username", superintendent.Username,
		"password", password,
	)
	return nil
}
