package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/byceps/byceps-sub001/internal/di"
	"github.com/byceps/byceps-sub001/internal/handlers"
	"github.com/byceps/byceps-sub001/internal/platform/auth"
	"github.com/byceps/byceps-sub001/internal/platform/config"
	"github.com/byceps/byceps-sub001/internal/platform/observability"
	"github.com/byceps/byceps-sub001/internal/platform/secrets"
	"github.com/byceps/byceps-sub001/internal/services"
)

const exportLinkTTL = 15 * time.Minute

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("shop-api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	container, err := di.NewContainer(ctx, cfg, di.Options{Logger: baseLogger, Build: buildInfo})
	if err != nil {
		logger.Fatal("failed to initialise container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	svc := container.Services
	infra := container.Infrastructure

	authenticator := buildAuthenticator(logger, cfg, infra.Verifier)

	var orderOpts []handlers.OrderOption
	orderOpts = append(orderOpts, handlers.WithOrderIdempotency(container.IdempotencyMiddleware()))
	if infra.Links != nil {
		orderOpts = append(orderOpts, handlers.WithExportLinker(infra.Links, exportLinkTTL))
	}
	orderHandlers := handlers.NewOrderHandlers(handlers.OrderHandlersDeps{
		Orders:  svc.Orders,
		Catalog: svc.Catalog,
		Shops:   svc.Shops,
		Emails:  svc.Emails,
		Exports: svc.Exports,
	}, orderOpts...)
	shopHandlers := handlers.NewShopHandlers(svc.Shops, svc.Emails)
	articleHandlers := handlers.NewArticleHandlers(svc.Catalog)
	actionHandlers := handlers.NewOrderActionHandlers(svc.OrderActions)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	var opts []handlers.Option
	opts = append(opts, handlers.WithMiddlewares(middlewares...))
	opts = append(opts, handlers.WithHealthHandlers(healthHandlers))
	opts = append(opts, handlers.WithMetricsHandler(infra.Metrics.Handler()))
	opts = append(opts, handlers.WithAdminMiddlewares(authenticator.RequireStaff))
	opts = append(opts, handlers.WithAdminRoutes(handlers.AdminRoutes(
		shopHandlers.Routes,
		articleHandlers.Routes,
		orderHandlers.Routes,
		actionHandlers.Routes,
	)))

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("shop api listening", zap.String("store", cfg.Store.Driver), zap.String("jobs", cfg.Jobs.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildAuthenticator(logger *zap.Logger, cfg config.Config, verifier *auth.FirebaseVerifier) *auth.Authenticator {
	if cfg.Firebase.AuthDisabled {
		logger.Warn("authentication disabled; every admin request acts as local staff")
		return auth.NewAuthenticator(nil, auth.WithAuthDisabled())
	}
	if verifier == nil {
		logger.Warn("firebase project not configured; admin API will reject all requests")
		return auth.NewAuthenticator(nil)
	}
	return auth.NewAuthenticator(verifier)
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["SHOP_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["SHOP_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Store.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("SHOP_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("SHOP_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("SHOP_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("SHOP_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the config fields that must resolve when their
// backend is enabled.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if strings.EqualFold(strings.TrimSpace(env["SHOP_STORE_DRIVER"]), config.StoreDriverPostgres) {
		required = append(required, "Store.Postgres.DSN")
	}
	if strings.TrimSpace(env["SHOP_SMTP_USERNAME"]) != "" {
		required = append(required, "SMTP.Password")
	}
	return required
}
