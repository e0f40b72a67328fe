package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/platform/auth"
	"github.com/byceps/byceps-sub001/internal/platform/config"
	"github.com/byceps/byceps-sub001/internal/platform/events"
	"github.com/byceps/byceps-sub001/internal/platform/i18n"
	"github.com/byceps/byceps-sub001/internal/platform/idempotency"
	"github.com/byceps/byceps-sub001/internal/platform/jobs"
	"github.com/byceps/byceps-sub001/internal/platform/mail"
	"github.com/byceps/byceps-sub001/internal/platform/observability"
	"github.com/byceps/byceps-sub001/internal/platform/sessions"
	"github.com/byceps/byceps-sub001/internal/platform/storage"
	"github.com/byceps/byceps-sub001/internal/platform/textutil"
	"github.com/byceps/byceps-sub001/internal/repositories"
	"github.com/byceps/byceps-sub001/internal/services"
)

// Services bundles the service-layer contracts that handlers and commands
// rely upon.
type Services struct {
	Catalog      services.CatalogService
	Shops        services.ShopService
	Sequences    services.SequenceService
	Orders       services.OrderService
	OrderActions services.OrderActionService
	Emails       services.OrderEmailService
	Exports      services.OrderExportService
	Sessions     services.SessionService
	Snippets     services.SnippetService
	Ticketing    services.TicketingService
	Badges       services.BadgeService
	System       services.SystemService
}

// Infrastructure holds the clients the services were built on. Fields are
// nil when the matching backend is not configured.
type Infrastructure struct {
	Metrics     *observability.Metrics
	Events      *events.Bus
	Dispatcher  *jobs.Dispatcher
	Jobs        services.JobQueue
	Users       services.UserDirectory
	Verifier    *auth.FirebaseVerifier
	Idempotency idempotency.Store
	Links       *storage.Linker
	Redis       redis.UniversalClient
	PubSub      *pubsub.Client
}

// Options tune container construction.
type Options struct {
	Logger *zap.Logger
	Build  services.BuildInfo
	// Users replaces the user directory. Used by tests and the CLI.
	Users services.UserDirectory
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config         config.Config
	Repositories   repositories.Registry
	Services       Services
	Infrastructure Infrastructure

	logger  *zap.Logger
	closers []func(context.Context) error
}

// NewContainer opens the configured store and constructs the runtime
// dependencies on top of it.
func NewContainer(ctx context.Context, cfg config.Config, opts Options) (*Container, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c, err := NewContainerWithStore(ctx, cfg, store, opts)
	if err != nil {
		_ = store.Registry.Close(ctx)
		return nil, err
	}
	return c, nil
}

// NewContainerWithStore builds the container over an already opened store.
func NewContainerWithStore(ctx context.Context, cfg config.Config, store Store, opts Options) (*Container, error) {
	if store.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{
		Config:       cfg,
		Repositories: store.Registry,
		logger:       logger,
	}
	if err := c.buildInfrastructure(ctx, store, opts); err != nil {
		_ = c.closeInfrastructure(ctx)
		return nil, err
	}
	if err := c.buildServices(ctx, cfg, opts.Build); err != nil {
		_ = c.closeInfrastructure(ctx)
		return nil, err
	}
	return c, nil
}

// Close releases resources such as repository clients, broker connections, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	err := c.closeInfrastructure(ctx)
	if c.Repositories != nil {
		err = errors.Join(err, c.Repositories.Close(ctx))
	}
	return err
}

func (c *Container) closeInfrastructure(ctx context.Context) error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, c.closers[i](ctx))
	}
	c.closers = nil
	return err
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

func (c *Container) serviceLogger(name string) services.ServiceLogger {
	return observability.ServiceLogger(c.logger.Named(name), c.Infrastructure.Metrics.ObserveEvent)
}

func (c *Container) buildInfrastructure(ctx context.Context, store Store, opts Options) error {
	cfg := c.Config
	infra := &c.Infrastructure

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	infra.Metrics = metrics
	c.onClose(metrics.Shutdown)

	if needsRedis(cfg) {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		infra.Redis = client
		c.onClose(func(context.Context) error { return client.Close() })
	}

	if needsPubSub(cfg) {
		client, err := pubsub.NewClient(ctx, cfg.Events.PubSubProjectID)
		if err != nil {
			return fmt.Errorf("pubsub client: %w", err)
		}
		infra.PubSub = client
		c.onClose(func(context.Context) error { return client.Close() })
	}

	if err := c.buildUsers(ctx, opts); err != nil {
		return err
	}

	sender := mail.NewSMTPSender(cfg.SMTP, c.logger.Named("mail"))
	infra.Dispatcher = jobs.NewDispatcher(c.logger.Named("jobs"))
	infra.Dispatcher.Register(services.JobSendEmail, mail.NewSendEmailHandler(sender))
	if infra.Jobs, err = c.buildJobQueue(); err != nil {
		return err
	}

	if infra.Events, err = c.buildEventBus(); err != nil {
		return err
	}
	c.onClose(func(context.Context) error { return infra.Events.Close() })

	if infra.Idempotency, err = c.buildIdempotencyStore(ctx, store); err != nil {
		return err
	}

	if path := strings.TrimSpace(cfg.Storage.SignerKeyFile); path != "" {
		signer, err := storage.LoadKeySigner(path)
		if err != nil {
			return err
		}
		if infra.Links, err = storage.NewLinker(signer, cfg.Storage.ExportsBucket); err != nil {
			return err
		}
	}
	return nil
}

func needsRedis(cfg config.Config) bool {
	return cfg.Jobs.Driver == config.JobsDriverRedis ||
		cfg.Sessions.Store == "redis" ||
		cfg.Idempotency.Store == "redis"
}

func needsPubSub(cfg config.Config) bool {
	return cfg.Jobs.Driver == config.JobsDriverPubSub || cfg.Events.HasSink(config.EventSinkPubSub)
}

func (c *Container) buildUsers(ctx context.Context, opts Options) error {
	cfg := c.Config
	if !cfg.Firebase.AuthDisabled && strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return err
		}
		c.Infrastructure.Verifier = verifier
	}
	switch {
	case opts.Users != nil:
		c.Infrastructure.Users = opts.Users
	case c.Infrastructure.Verifier != nil:
		c.Infrastructure.Users = auth.NewDirectory(c.Infrastructure.Verifier)
	default:
		c.Infrastructure.Users = services.NewMemoryUserDirectory()
	}
	return nil
}

func (c *Container) buildJobQueue() (services.JobQueue, error) {
	cfg := c.Config
	switch cfg.Jobs.Driver {
	case config.JobsDriverPubSub:
		topic := c.Infrastructure.PubSub.Topic(cfg.Jobs.PubSubTopic)
		c.onClose(func(context.Context) error { topic.Stop(); return nil })
		return jobs.NewPubSubQueue(topic)
	case config.JobsDriverRedis:
		return jobs.NewRedisQueue(c.Infrastructure.Redis, cfg.Jobs.RedisStream)
	default:
		return jobs.NewInlineQueue(c.Infrastructure.Dispatcher), nil
	}
}

func (c *Container) buildEventBus() (*events.Bus, error) {
	cfg := c.Config.Events
	var sinks []events.Sink
	if cfg.HasSink(config.EventSinkPubSub) {
		sink, err := events.NewPubSubSink(c.Infrastructure.PubSub.Topic(cfg.PubSubTopic))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	if cfg.HasSink(config.EventSinkNATS) {
		conn, err := events.DialNATS(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		sink, err := events.NewNATSSink(conn, cfg.NATSSubjectPrefix)
		if err != nil {
			conn.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	if cfg.HasSink(config.EventSinkKafka) {
		sink, err := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return events.NewBus(c.logger.Named("events"), sinks...), nil
}

func (c *Container) buildIdempotencyStore(ctx context.Context, store Store) (idempotency.Store, error) {
	switch c.Config.Idempotency.Store {
	case "redis":
		return idempotency.NewRedisStore(c.Infrastructure.Redis), nil
	case "firestore":
		if store.Provider == nil {
			return nil, errors.New("firestore idempotency store requires the firestore store driver")
		}
		client, err := store.Provider.Client(ctx)
		if err != nil {
			return nil, err
		}
		return idempotency.NewFirestoreStore(client), nil
	default:
		return idempotency.NewMemoryStore(), nil
	}
}

func (c *Container) buildSessionStore() (services.SessionStore, error) {
	if c.Config.Sessions.Store == "redis" {
		return sessions.NewRedisStore(c.Infrastructure.Redis)
	}
	return sessions.NewMemoryStore(), nil
}

// IdempotencyMiddleware wraps unsafe requests with the configured store.
func (c *Container) IdempotencyMiddleware() func(http.Handler) http.Handler {
	cfg := c.Config.Idempotency
	return idempotency.Middleware(c.Infrastructure.Idempotency,
		idempotency.WithHeader(cfg.Header),
		idempotency.WithTTL(cfg.TTL),
	)
}

func (c *Container) buildServices(ctx context.Context, cfg config.Config, build services.BuildInfo) error {
	reg := c.Repositories
	infra := c.Infrastructure
	svc := &c.Services

	location, err := cfg.Shop.ExportLocation()
	if err != nil {
		return fmt.Errorf("export timezone: %w", err)
	}
	paymentMethods, err := domain.NewPaymentMethods(cfg.Shop.ExtraPaymentMethods...)
	if err != nil {
		return err
	}
	localizer, err := i18n.Load(cfg.Shop.DefaultLocale)
	if err != nil {
		return err
	}
	sanitizer := textutil.NewSanitizer()

	if svc.Sequences, err = services.NewSequenceService(services.SequenceServiceDeps{
		Sequences:  reg.Sequences(),
		UnitOfWork: reg,
		Logger:     c.serviceLogger("sequences"),
	}); err != nil {
		return err
	}

	if svc.Shops, err = services.NewShopService(services.ShopServiceDeps{
		Shops:       reg.Shops(),
		Brands:      reg.Brands(),
		Storefronts: reg.Storefronts(),
		Sequences:   svc.Sequences,
		UnitOfWork:  reg,
		Logger:      c.serviceLogger("shops"),
	}); err != nil {
		return err
	}

	if svc.Catalog, err = services.NewCatalogService(services.CatalogServiceDeps{
		Articles:   reg.Articles(),
		Sequences:  svc.Sequences,
		UnitOfWork: reg,
		Sanitize:   sanitizer.PlainText,
		Logger:     c.serviceLogger("catalog"),
	}); err != nil {
		return err
	}

	if svc.Ticketing, err = services.NewTicketingService(services.TicketingServiceDeps{
		Tickets:    reg.Tickets(),
		UnitOfWork: reg,
	}); err != nil {
		return err
	}
	if svc.Badges, err = services.NewBadgeService(services.BadgeServiceDeps{
		Badges: reg.Badges(),
	}); err != nil {
		return err
	}

	if svc.OrderActions, err = services.NewOrderActionService(services.OrderActionServiceDeps{
		Actions:   reg.OrderActions(),
		Orders:    reg.Orders(),
		Articles:  reg.Articles(),
		Ticketing: svc.Ticketing,
		Badges:    svc.Badges,
		Logger:    c.serviceLogger("order-actions"),
	}); err != nil {
		return err
	}

	if svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders:         reg.Orders(),
		Shops:          reg.Shops(),
		Storefronts:    reg.Storefronts(),
		Catalog:        svc.Catalog,
		Sequences:      svc.Sequences,
		Actions:        svc.OrderActions,
		Users:          infra.Users,
		Events:         infra.Events,
		PaymentMethods: paymentMethods,
		Metrics:        infra.Metrics,
		Sanitize:       sanitizer.PlainText,
		UnitOfWork:     reg,
		Logger:         c.serviceLogger("orders"),
	}); err != nil {
		return err
	}

	if svc.Snippets, err = services.NewSnippetService(services.SnippetServiceDeps{
		Snippets: reg.Snippets(),
		Logger:   c.serviceLogger("snippets"),
	}); err != nil {
		return err
	}

	mailer, err := services.NewJobMailer(infra.Jobs, c.serviceLogger("mailer"))
	if err != nil {
		return err
	}
	if svc.Emails, err = services.NewOrderEmailService(services.OrderEmailServiceDeps{
		Orders:    reg.Orders(),
		Shops:     reg.Shops(),
		Brands:    reg.Brands(),
		Users:     infra.Users,
		Snippets:  svc.Snippets,
		Localizer: localizer,
		Mailer:    mailer,
		Scopes: services.SnippetScopes{
			PaymentInstructions: domain.SnippetScopeType(cfg.Shop.PaymentInstructionsScope),
			Footer:              domain.SnippetScopeType(cfg.Shop.FooterScope),
		},
		Timezone: location,
		Logger:   c.serviceLogger("emails"),
	}); err != nil {
		return err
	}
	notifier, err := services.NewOrderEmailNotifier(svc.Emails, c.serviceLogger("email-notifier"))
	if err != nil {
		return err
	}
	infra.Events.Subscribe(notifier.HandleEvent)

	exportStore, err := c.buildExportStore(ctx)
	if err != nil {
		return err
	}
	if svc.Exports, err = services.NewOrderExportService(services.OrderExportServiceDeps{
		Orders:   reg.Orders(),
		Users:    infra.Users,
		Store:    exportStore,
		Timezone: location,
		Logger:   c.serviceLogger("exports"),
	}); err != nil {
		return err
	}

	sessionStore, err := c.buildSessionStore()
	if err != nil {
		return err
	}
	sessionDeps := services.SessionServiceDeps{
		Store:  sessionStore,
		Logger: c.serviceLogger("sessions"),
	}
	if infra.Verifier != nil {
		sessionDeps.Revoker = infra.Verifier
	}
	if svc.Sessions, err = services.NewSessionService(sessionDeps); err != nil {
		return err
	}

	if build.StartedAt.IsZero() {
		build.StartedAt = time.Now().UTC()
	}
	if build.Environment == "" {
		build.Environment = cfg.Environment
	}
	if svc.System, err = services.NewSystemService(services.SystemServiceDeps{
		Health: reg.Health(),
		Build:  build,
	}); err != nil {
		return err
	}
	return nil
}

// buildExportStore returns nil when no exports bucket is configured; the
// export service then renders but refuses uploads.
func (c *Container) buildExportStore(ctx context.Context) (services.ExportStore, error) {
	bucket := strings.TrimSpace(c.Config.Storage.ExportsBucket)
	if bucket == "" {
		return nil, nil
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	c.onClose(func(context.Context) error { return client.Close() })
	return storage.NewUploader(client, bucket)
}
