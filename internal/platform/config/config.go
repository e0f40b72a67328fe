package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultEnvironment         = "local"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultLogLevel            = "info"
	defaultStoreDriver         = StoreDriverMemory
	defaultPostgresMaxConns    = 10
	defaultJobsDriver          = JobsDriverInline
	defaultJobsRedisStream     = "shop:jobs"
	defaultJobsRedisGroup      = "shop-worker"
	defaultNATSSubjectPrefix   = "shop.orders"
	defaultRedisAddr           = "localhost:6379"
	defaultSMTPHost            = "localhost"
	defaultSMTPPort            = 25
	defaultExportTimezone      = "Europe/Berlin"
	defaultShopLocale          = "en"
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
)

// Store drivers.
const (
	StoreDriverMemory    = "memory"
	StoreDriverPostgres  = "postgres"
	StoreDriverFirestore = "firestore"
)

// Job queue drivers.
const (
	JobsDriverInline = "inline"
	JobsDriverPubSub = "pubsub"
	JobsDriverRedis  = "redis"
)

// Event sinks.
const (
	EventSinkPubSub = "pubsub"
	EventSinkNATS   = "nats"
	EventSinkKafka  = "kafka"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Log         LogConfig
	Store       StoreConfig
	Firebase    FirebaseConfig
	Storage     StorageConfig
	Events      EventsConfig
	Jobs        JobsConfig
	Redis       RedisConfig
	SMTP        SMTPConfig
	Sessions    SessionsConfig
	Shop        ShopConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver    string
	Postgres  PostgresConfig
	Firestore FirestoreConfig
}

// PostgresConfig stores connection parameters for the Postgres backend.
type PostgresConfig struct {
	DSN        string
	Migrations bool
	MaxConns   int
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	AuthDisabled    bool
}

// StorageConfig lists bucket names used by the application.
type StorageConfig struct {
	ExportsBucket string
	// SignerKeyFile is a service account key used to sign download links.
	SignerKeyFile string
}

// EventsConfig lists the sinks order events are forwarded to.
type EventsConfig struct {
	Sinks             []string
	PubSubProjectID   string
	PubSubTopic       string
	NATSURL           string
	NATSSubjectPrefix string
	KafkaBrokers      []string
	KafkaTopic        string
}

// JobsConfig selects the background job transport.
type JobsConfig struct {
	Driver             string
	PubSubTopic        string
	PubSubSubscription string
	RedisStream        string
	RedisGroup         string
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SMTPConfig configures outgoing mail delivery.
type SMTPConfig struct {
	Host         string
	Port         int
	StartTLS     bool
	UseSSL       bool
	Username     string
	Password     string
	SuppressSend bool
}

// SessionsConfig selects where login sessions live.
type SessionsConfig struct {
	// Store is memory or redis.
	Store string
}

// ShopConfig holds order engine settings.
type ShopConfig struct {
	ExportTimezone           string
	ExtraPaymentMethods      []string
	PaymentInstructionsScope string
	FooterScope              string
	DefaultLocale            string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
	// Store is memory, redis or firestore. Firestore requires the firestore
	// store driver.
	Store string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	names := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		names = append(names, secret.redacted)
	}
	sort.Strings(names)
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(names, ", "))
}

// RedactedNames returns a copy of the redacted secret identifiers.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.name)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

// EnvironmentValues returns the effective key/value environment map after applying the same precedence
// rules as Load (dotenv < OS env < explicit env map). Callers can use the result to initialise
// dependencies before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	merge := func(source map[string]string) {
		if source == nil {
			return
		}
		for key, value := range source {
			values[key] = value
		}
	}

	merge(dotEnvValues)

	if options.useSystemEnv {
		system := make(map[string]string)
		for _, entry := range os.Environ() {
			if entry == "" {
				continue
			}
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			system[key] = parts[1]
		}
		merge(system)
	}

	merge(options.envMap)

	return values, nil
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers as mandatory.
// Identifiers should match the config field names recorded by the loader
// (e.g. "SMTP.Password" or "Store.Postgres.DSN").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "SHOP_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "SHOP_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "SHOP_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SHOP_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SHOP_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel)),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(stringWithDefault(lookup, "SHOP_STORE_DRIVER", defaultStoreDriver)),
			Postgres: PostgresConfig{
				DSN:        stringWithDefault(lookup, "SHOP_POSTGRES_DSN", ""),
				Migrations: boolWithDefault(lookup, "SHOP_POSTGRES_MIGRATIONS", true),
				MaxConns:   intWithDefault(lookup, "SHOP_POSTGRES_MAX_CONNS", defaultPostgresMaxConns),
			},
			Firestore: FirestoreConfig{
				ProjectID:    stringWithDefault(lookup, "SHOP_FIRESTORE_PROJECT_ID", ""),
				EmulatorHost: stringWithDefault(lookup, "SHOP_FIRESTORE_EMULATOR_HOST", ""),
			},
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "SHOP_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "SHOP_FIREBASE_CREDENTIALS_FILE", ""),
			AuthDisabled:    boolWithDefault(lookup, "SHOP_AUTH_DISABLED", false),
		},
		Storage: StorageConfig{
			ExportsBucket: stringWithDefault(lookup, "SHOP_STORAGE_EXPORTS_BUCKET", ""),
			SignerKeyFile: stringWithDefault(lookup, "SHOP_STORAGE_SIGNER_KEY_FILE", ""),
		},
		Events: EventsConfig{
			Sinks:             lowerAll(csvWithDefault(lookup, "SHOP_EVENTS_SINKS")),
			PubSubProjectID:   stringWithDefault(lookup, "SHOP_PUBSUB_PROJECT_ID", ""),
			PubSubTopic:       stringWithDefault(lookup, "SHOP_EVENTS_PUBSUB_TOPIC", ""),
			NATSURL:           stringWithDefault(lookup, "SHOP_NATS_URL", ""),
			NATSSubjectPrefix: stringWithDefault(lookup, "SHOP_NATS_SUBJECT_PREFIX", defaultNATSSubjectPrefix),
			KafkaBrokers:      csvWithDefault(lookup, "SHOP_KAFKA_BROKERS"),
			KafkaTopic:        stringWithDefault(lookup, "SHOP_KAFKA_TOPIC", ""),
		},
		Jobs: JobsConfig{
			Driver:             strings.ToLower(stringWithDefault(lookup, "SHOP_JOBS_DRIVER", defaultJobsDriver)),
			PubSubTopic:        stringWithDefault(lookup, "SHOP_JOBS_PUBSUB_TOPIC", ""),
			PubSubSubscription: stringWithDefault(lookup, "SHOP_JOBS_PUBSUB_SUBSCRIPTION", ""),
			RedisStream:        stringWithDefault(lookup, "SHOP_JOBS_REDIS_STREAM", defaultJobsRedisStream),
			RedisGroup:         stringWithDefault(lookup, "SHOP_JOBS_REDIS_GROUP", defaultJobsRedisGroup),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "SHOP_REDIS_ADDR", defaultRedisAddr),
			Password: stringWithDefault(lookup, "SHOP_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "SHOP_REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:         stringWithDefault(lookup, "SHOP_SMTP_HOST", defaultSMTPHost),
			Port:         intWithDefault(lookup, "SHOP_SMTP_PORT", defaultSMTPPort),
			StartTLS:     boolWithDefault(lookup, "SHOP_SMTP_STARTTLS", false),
			UseSSL:       boolWithDefault(lookup, "SHOP_SMTP_USE_SSL", false),
			Username:     stringWithDefault(lookup, "SHOP_SMTP_USERNAME", ""),
			Password:     stringWithDefault(lookup, "SHOP_SMTP_PASSWORD", ""),
			SuppressSend: boolWithDefault(lookup, "SHOP_SMTP_SUPPRESS_SEND", false),
		},
		Sessions: SessionsConfig{
			Store: strings.ToLower(stringWithDefault(lookup, "SHOP_SESSIONS_STORE", StoreDriverMemory)),
		},
		Shop: ShopConfig{
			ExportTimezone:           stringWithDefault(lookup, "SHOP_ORDER_EXPORT_TIMEZONE", defaultExportTimezone),
			ExtraPaymentMethods:      csvWithDefault(lookup, "SHOP_PAYMENT_METHODS_EXTRA"),
			PaymentInstructionsScope: strings.ToLower(stringWithDefault(lookup, "SHOP_SNIPPET_SCOPE_PAYMENT_INSTRUCTIONS", "shop")),
			FooterScope:              strings.ToLower(stringWithDefault(lookup, "SHOP_SNIPPET_SCOPE_FOOTER", "brand")),
			DefaultLocale:            strings.ToLower(stringWithDefault(lookup, "SHOP_DEFAULT_LOCALE", defaultShopLocale)),
		},
		Idempotency: IdempotencyConfig{
			Header: stringWithDefault(lookup, "SHOP_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:    durationWithDefault(lookup, "SHOP_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			Store:  strings.ToLower(stringWithDefault(lookup, "SHOP_IDEMPOTENCY_STORE", StoreDriverMemory)),
		},
	}

	// Firestore and Pub/Sub default to the Firebase project.
	if cfg.Store.Firestore.ProjectID == "" {
		cfg.Store.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.PubSubProjectID == "" {
		cfg.Events.PubSubProjectID = cfg.Store.Firestore.ProjectID
	}

	resolvedSecrets := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Store.Postgres.DSN", &cfg.Store.Postgres.DSN},
		{"Redis.Password", &cfg.Redis.Password},
		{"SMTP.Password", &cfg.SMTP.Password},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
		resolvedSecrets[target.name] = strings.TrimSpace(resolved)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolvedSecrets); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

// ExportLocation loads the configured export timezone.
func (c ShopConfig) ExportLocation() (*time.Location, error) {
	name := strings.TrimSpace(c.ExportTimezone)
	if name == "" {
		name = defaultExportTimezone
	}
	return time.LoadLocation(name)
}

// HasSink reports whether the named event sink is enabled.
func (c EventsConfig) HasSink(name string) bool {
	for _, sink := range c.Sinks {
		if sink == name {
			return true
		}
	}
	return false
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" {
		return value, nil
	}
	if !isSecretReference(value) {
		return value, nil
	}
	if resolver == nil {
		normalized := normalizeSecretReference(value)
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	normalized := normalizeSecretReference(value)
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		missing = append(missing, "Log.Level")
	}

	switch cfg.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if strings.TrimSpace(cfg.Store.Postgres.DSN) == "" {
			missing = append(missing, "Store.Postgres.DSN")
		}
		if cfg.Store.Postgres.MaxConns <= 0 {
			missing = append(missing, "Store.Postgres.MaxConns")
		}
	case StoreDriverFirestore:
		if cfg.Store.Firestore.ProjectID == "" {
			missing = append(missing, "Store.Firestore.ProjectID")
		}
	default:
		missing = append(missing, "Store.Driver")
	}

	if !cfg.Firebase.AuthDisabled && cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}

	for _, sink := range cfg.Events.Sinks {
		switch sink {
		case EventSinkPubSub:
			if cfg.Events.PubSubTopic == "" || cfg.Events.PubSubProjectID == "" {
				missing = append(missing, "Events.PubSubTopic")
			}
		case EventSinkNATS:
			if cfg.Events.NATSURL == "" {
				missing = append(missing, "Events.NATSURL")
			}
		case EventSinkKafka:
			if len(cfg.Events.KafkaBrokers) == 0 || cfg.Events.KafkaTopic == "" {
				missing = append(missing, "Events.Kafka")
			}
		default:
			missing = append(missing, fmt.Sprintf("Events.Sinks[%s]", sink))
		}
	}

	switch cfg.Jobs.Driver {
	case JobsDriverInline:
	case JobsDriverPubSub:
		if cfg.Jobs.PubSubTopic == "" || cfg.Events.PubSubProjectID == "" {
			missing = append(missing, "Jobs.PubSubTopic")
		}
	case JobsDriverRedis:
		if cfg.Redis.Addr == "" || cfg.Jobs.RedisStream == "" || cfg.Jobs.RedisGroup == "" {
			missing = append(missing, "Jobs.RedisStream")
		}
	default:
		missing = append(missing, "Jobs.Driver")
	}

	if cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535 {
		missing = append(missing, "SMTP.Port")
	}
	if cfg.SMTP.StartTLS && cfg.SMTP.UseSSL {
		missing = append(missing, "SMTP.UseSSL")
	}

	switch cfg.Sessions.Store {
	case StoreDriverMemory:
	case "redis":
		if cfg.Redis.Addr == "" {
			missing = append(missing, "Redis.Addr")
		}
	default:
		missing = append(missing, "Sessions.Store")
	}

	if _, err := cfg.Shop.ExportLocation(); err != nil {
		missing = append(missing, "Shop.ExportTimezone")
	}
	if !validScope(cfg.Shop.PaymentInstructionsScope) {
		missing = append(missing, "Shop.PaymentInstructionsScope")
	}
	if !validScope(cfg.Shop.FooterScope) {
		missing = append(missing, "Shop.FooterScope")
	}

	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	switch cfg.Idempotency.Store {
	case StoreDriverMemory, "redis":
	case StoreDriverFirestore:
		if cfg.Store.Driver != StoreDriverFirestore {
			missing = append(missing, "Idempotency.Store")
		}
	default:
		missing = append(missing, "Idempotency.Store")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func validScope(scope string) bool {
	return scope == "shop" || scope == "brand"
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	if len(required) == 0 {
		return nil
	}
	missing := make([]missingSecret, 0, len(required))
	seen := make(map[string]struct{})
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if value := strings.TrimSpace(resolved[trimmed]); value != "" {
			continue
		}
		missing = append(missing, missingSecret{
			name:     trimmed,
			redacted: redactSecretName(trimmed),
		})
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{secrets: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}


func lowerAll(values []string) []string {
	for i, value := range values {
		values[i] = strings.ToLower(value)
	}
	return values
}
