package main

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"github.com/nasermirzaei89/env"
	"github.com/nasermirzaei89/myboard/api"
	"github.com/nasermirzaei89/myboard/authentication"
	"github.com/nasermirzaei89/myboard/authorization"
	"github.com/nasermirzaei89/myboard/authorization/casbin"
	"github.com/nasermirzaei89/myboard/contents"
	"github.com/nasermirzaei89/myboard/db/sqlite3"
	"github.com/nasermirzaei89/myboard/discuss"
	"github.com/nasermirzaei89/myboard/random"
	"github.com/nasermirzaei89/myboard/server"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	defaultCommentSweepInterval = 10 * time.Minute
	refreshCookieMaxAge         = int(authentication.DefaultRefreshTokenTTL / time.Second)
)

type App struct {
	server         *server.Server
	handler        *api.Handler
	sweeper        *discuss.Sweeper
	tracerProvider *sdktrace.TracerProvider
	db             *sql.DB
}

//go:embed policy.csv
var defaultAuthorizationPolicyContent string

func NewApp(ctx context.Context) (*App, error) {
	db, err := sqlite3.NewDB(ctx, env.GetString("DB_DSN", sqlite3.DefaultDSN))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	err = sqlite3.MigrateUp(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	memberRepo := sqlite3.NewMemberRepository(db)
	refreshTokenRepo := sqlite3.NewRefreshTokenRepository(db)
	postRepo := sqlite3.NewPostRepository(db)
	commentRepo := sqlite3.NewCommentRepository(db)

	authzProvider, err := newAuthorizationProvider(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization provider: %w", err)
	}

	authzSvc, err := authorization.NewService(authzProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization service: %w", err)
	}

	authzClient := authorization.NewClient(authzSvc)

	tokenIssuer, err := newTokenIssuer()
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	authSvc := authentication.NewService(memberRepo, refreshTokenRepo, authzClient, tokenIssuer)

	err = authSvc.LoadBloomFilter(ctx, 10_000, 0.01)
	if err != nil {
		return nil, fmt.Errorf("failed to load bloom filter: %w", err)
	}

	err = ensureAdmin(ctx, authSvc)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure admin member: %w", err)
	}

	contentsSvc := contents.NewAuthorizationMiddleware(authzClient, contents.NewService(postRepo))

	discussBaseSvc := discuss.NewService(commentRepo)
	discussSvc := discuss.NewAuthorizationMiddleware(authzClient, discussBaseSvc)
	discussSweepSvc := discuss.NewSweepAuthorizationMiddleware(authzClient, discussBaseSvc)

	sweepInterval, err := getDurationFromEnv("COMMENT_SWEEP_INTERVAL", defaultCommentSweepInterval)
	if err != nil {
		return nil, err
	}

	sessionName := env.GetString("SESSION_NAME", "myboard-"+random.String(4))
	sessionKey := env.GetString("SESSION_KEY", random.String(32))
	cookieStore := newCookieStore([]byte(sessionKey))

	// No span processor is registered. Spans only mint the X-Trace-Id response header.
	tracerProvider := sdktrace.NewTracerProvider()

	httpHandler := api.NewHandler(
		authSvc,
		contentsSvc,
		discussSvc,
		cookieStore,
		sessionName,
		tracerProvider,
	)

	app := &App{
		server:         newServer(),
		handler:        httpHandler,
		sweeper:        discuss.NewSweeper(discussSweepSvc, sweepInterval),
		tracerProvider: tracerProvider,
		db:             db,
	}

	return app, nil
}

func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		if app.db != nil {
			err := app.db.Close()
			if err != nil {
				slog.ErrorContext(ctx, "failed to close database", "error", err)
			}
		}
	}()

	defer func() {
		err := app.tracerProvider.Shutdown(context.WithoutCancel(ctx))
		if err != nil {
			slog.ErrorContext(ctx, "failed to shutdown tracer provider", "error", err)
		}
	}()

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		app.sweeper.Run(ctx)
	}()

	err := app.server.Run(ctx, app.handler)

	stop()
	wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	return nil
}

func newServer() *server.Server {
	server := &server.Server{
		Port: env.GetString("PORT", server.DefaultPort),
		Host: env.GetString("HOST", ""),
		TLS: server.ServerTLS{
			Enabled: env.GetBool("TLS_ENABLED", false),
			Mode:    env.GetString("TLS_MODE", server.DefaultTLSMode),
			AutoCert: &server.ServerTLSAutoCert{
				CacheDir: env.GetString("TLS_AUTOCERT_CACHE_DIR", "./cert-cache"),
				Domains:  env.GetStringSlice("TLS_AUTOCERT_DOMAINS", []string{}),
				Email:    env.GetString("TLS_AUTOCERT_EMAIL", ""),
			},
			CertFile: env.GetString("TLS_CERT_FILE", ""),
			KeyFile:  env.GetString("TLS_KEY_FILE", ""),
		},
	}

	return server
}

func newCookieStore(key []byte) *sessions.CookieStore {
	cookieStore := sessions.NewCookieStore(key)
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   refreshCookieMaxAge,
		Secure:   env.GetBool("TLS_ENABLED", false),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}

	return cookieStore
}

func newTokenIssuer() (*authentication.TokenIssuer, error) {
	accessTTL, err := getDurationFromEnv("ACCESS_TOKEN_TTL", authentication.DefaultAccessTokenTTL)
	if err != nil {
		return nil, err
	}

	refreshTTL, err := getDurationFromEnv("REFRESH_TOKEN_TTL", authentication.DefaultRefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	return authentication.NewTokenIssuer(
		[]byte(env.GetString("JWT_SECRET", random.String(32))),
		authentication.WithIssuer(env.GetString("JWT_ISSUER", authentication.DefaultTokenIssuer)),
		authentication.WithAccessTokenTTL(accessTTL),
		authentication.WithRefreshTokenTTL(refreshTTL),
	)
}

func getDurationFromEnv(key string, def time.Duration) (time.Duration, error) {
	value := env.GetString(key, "")
	if value == "" {
		return def, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}

	return d, nil
}

// ensureAdmin registers the admin member named by ADMIN_USERNAME unless it already exists.
func ensureAdmin(ctx context.Context, authSvc *authentication.Service) error {
	username := env.GetString("ADMIN_USERNAME", "")
	if username == "" {
		return nil
	}

	_, err := authSvc.Register(ctx, authentication.RegisterRequest{
		Username: username,
		Password: env.GetString("ADMIN_PASSWORD", ""),
		Name:     env.GetString("ADMIN_NAME", username),
		NickName: "",
		Age:      0,
		Role:     authentication.RoleAdmin,
	})
	if err != nil {
		var alreadyExistsErr *authentication.MemberAlreadyExistsError
		if errors.As(err, &alreadyExistsErr) {
			return nil
		}

		return fmt.Errorf("failed to register admin: %w", err)
	}

	slog.InfoContext(ctx, "admin member registered", "username", username)

	return nil
}

func GetLogLevelFromEnv() slog.Level {
	levelStr := env.GetString("LOG_LEVEL", "info")
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("unknown log level, defaulting to info", "level", levelStr)

		return slog.LevelInfo
	}
}

func newAuthorizationProvider(ctx context.Context, db *sql.DB) (*casbin.AuthorizationProvider, error) {
	adapter, err := casbin.NewSQLAdapter(db, "sqlite3", casbin.DefaultTableName)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization adapter: %w", err)
	}

	provider, err := casbin.NewAuthorizationProvider(adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization provider: %w", err)
	}

	policyContent, err := loadPolicyContent()
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization policy content: %w", err)
	}

	err = provider.AddPolicyFromCSV(ctx, policyContent)
	if err != nil {
		return nil, fmt.Errorf("failed to add authorization policy from csv: %w", err)
	}

	return provider, nil
}

func loadPolicyContent() (string, error) {
	policyFilePath := env.GetString("AUTHORIZATION_POLICY_FILE", "")

	if policyFilePath == "" {
		return defaultAuthorizationPolicyContent, nil
	}

	content, err := os.ReadFile(policyFilePath) // nolint:gosec
	if err != nil {
		return "", fmt.Errorf("failed to read policy file %q: %w", policyFilePath, err)
	}

	return string(content), nil
}
