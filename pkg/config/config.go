package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"resledger/pkg/client"
	"resledger/pkg/logger"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	StoreDriver string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	SQLDSN             string
	SQLMaxOpenConns    int
	SQLMaxIdleConns    int
	SQLConnMaxLifetime time.Duration

	Port     string
	LogLevel string

	RequestTimeout time.Duration
	MaxRequestSize int

	RateLimitPerSecond float64
	RateLimitBurst     int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	TimeZone       string
	Location       *time.Location
	StrictLocation bool

	BulkWorkers       int
	BulkRatePerSecond float64
	ReconcileCron     string
	ReconcileAhead    int

	CatalogCacheTTL time.Duration

	KafkaEnabled  bool
	KafkaTopic    string
	KafkaDLQTopic string

	OTelEndpoint string

	Log    *logger.Logger
	Client *client.Client
}

// fileValues holds the optional YAML overlay. Environment variables win over it.
var fileValues = map[string]string{}

func Load(serviceName string) *Config {
	var warnings []string
	if err := loadDotEnv(os.Getenv(EnvDotEnvFile)); err != nil {
		warnings = append(warnings, err.Error())
	}
	if path := os.Getenv(EnvConfigFile); path != "" {
		values, err := readConfigFile(path)
		if err != nil {
			warnings = append(warnings, err.Error())
		}
		fileValues = values
	}

	logLevel := getEnvStr(EnvLogLevel, DefaultLogLevel)
	storeDriver := strings.ToLower(getEnvStr(EnvStoreDriver, DefaultStoreDriver))
	cfg := &Config{
		StoreDriver: storeDriver,

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		SQLDSN:             getEnvStr(EnvSQLDSN, DefaultSQLDSN),
		SQLMaxOpenConns:    getEnvNum(EnvSQLMaxOpenConns, DefaultSQLMaxOpenConns),
		SQLMaxIdleConns:    getEnvNum(EnvSQLMaxIdleConns, DefaultSQLMaxIdleConns),
		SQLConnMaxLifetime: getEnvDuration(EnvSQLConnMaxLifetime, DefaultSQLConnMaxLifetime),

		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: logLevel,

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		RateLimitPerSecond: getEnvFloat(EnvRateLimitPerSecond, DefaultRateLimitPerSecond),
		RateLimitBurst:     getEnvNum(EnvRateLimitBurst, DefaultRateLimitBurst),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		TimeZone:       getEnvStr(EnvTimeZone, DefaultTimeZone),
		StrictLocation: getEnvBool(EnvStrictLocation, DefaultStrictLocation),

		BulkWorkers:       getEnvNum(EnvBulkWorkers, DefaultBulkWorkers),
		BulkRatePerSecond: getEnvFloat(EnvBulkRatePerSecond, DefaultBulkRatePerSecond),
		ReconcileCron:     getEnvStr(EnvReconcileCron, DefaultReconcileCron),
		ReconcileAhead:    getEnvNum(EnvReconcileAhead, DefaultReconcileAhead),

		CatalogCacheTTL: getEnvDuration(EnvCatalogCacheTTL, DefaultCatalogCacheTTL),

		KafkaEnabled:  getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaTopic:    getEnvStr(EnvKafkaTopic, DefaultKafkaTopic),
		KafkaDLQTopic: getEnvStr(EnvKafkaDLQTopic, DefaultKafkaDLQTopic),

		OTelEndpoint: getEnvStr(EnvOTelEndpoint, DefaultOTelEndpoint),

		Log: logger.New(logger.Config{
			Level:     logLevel,
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
			Store:     storeDriver,
		}),
		Client: client.NewClient(),
	}

	for _, w := range warnings {
		cfg.Log.Warn("Configuration source skipped", "reason", w)
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// readConfigFile reads a flat YAML document keyed by environment variable name.
func readConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]string{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return map[string]string{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return values, nil
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetSQL() {
	cfg.Client.SetSQL(cfg.Log, client.SQLOptions{
		Driver:          cfg.StoreDriver,
		DSN:             cfg.SQLDSN,
		MaxOpenConns:    cfg.SQLMaxOpenConns,
		MaxIdleConns:    cfg.SQLMaxIdleConns,
		ConnMaxLifetime: cfg.SQLConnMaxLifetime,
		LogLevel:        cfg.LogLevel,
	})
}

// SetStore connects the store selected by StoreDriver.
func (cfg *Config) SetStore() {
	if cfg.UsesMongo() {
		cfg.SetMongo()
		return
	}
	cfg.SetSQL()
}

func (cfg *Config) UsesMongo() bool {
	return cfg.StoreDriver == client.DriverMongo
}

// TimeLocation returns the zone used to interpret window dates. It falls back
// to UTC when the configuration was built without Load.
func (cfg *Config) TimeLocation() *time.Location {
	if cfg == nil || cfg.Location == nil {
		return time.UTC
	}
	return cfg.Location
}

func (cfg *Config) Validate() error {
	var errors []string

	switch cfg.StoreDriver {
	case client.DriverMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case client.DriverPostgres, client.DriverMySQL, client.DriverSQLite:
		if cfg.SQLDSN == "" {
			errors = append(errors, "SQLDSN cannot be empty")
		}
		if cfg.SQLMaxOpenConns < 0 {
			errors = append(errors, fmt.Sprintf("SQLMaxOpenConns cannot be negative, got: %d", cfg.SQLMaxOpenConns))
		}
		if cfg.SQLMaxIdleConns < 0 {
			errors = append(errors, fmt.Sprintf("SQLMaxIdleConns cannot be negative, got: %d", cfg.SQLMaxIdleConns))
		}
	default:
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of [mongo, postgres, mysql, sqlite], got: %s", cfg.StoreDriver))
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.RateLimitPerSecond < 0 {
		errors = append(errors, fmt.Sprintf("RateLimitPerSecond cannot be negative, got: %g", cfg.RateLimitPerSecond))
	}
	if cfg.RateLimitPerSecond > 0 && cfg.RateLimitBurst <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitBurst must be positive when rate limiting is enabled, got: %d", cfg.RateLimitBurst))
	}

	if loc, err := time.LoadLocation(cfg.TimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("TimeZone must be a valid IANA zone, got: %s", cfg.TimeZone))
	} else {
		cfg.Location = loc
	}

	if cfg.BulkWorkers <= 0 {
		errors = append(errors, fmt.Sprintf("BulkWorkers must be positive, got: %d", cfg.BulkWorkers))
	}
	if cfg.BulkRatePerSecond < 0 {
		errors = append(errors, fmt.Sprintf("BulkRatePerSecond cannot be negative, got: %g", cfg.BulkRatePerSecond))
	}
	if cfg.ReconcileCron != "" {
		if _, err := cron.ParseStandard(cfg.ReconcileCron); err != nil {
			errors = append(errors, fmt.Sprintf("ReconcileCron must be a standard cron expression, got: %s", cfg.ReconcileCron))
		}
	}
	if cfg.ReconcileAhead < 0 {
		errors = append(errors, fmt.Sprintf("ReconcileAhead cannot be negative, got: %d", cfg.ReconcileAhead))
	}
	if cfg.CatalogCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("CatalogCacheTTL cannot be negative, got: %s", cfg.CatalogCacheTTL))
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		errors = append(errors, "KafkaTopic cannot be empty when Kafka is enabled")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_driver", cfg.StoreDriver,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"sql_dsn", redactDSN(cfg.SQLDSN),
		"sql_max_open_conns", cfg.SQLMaxOpenConns,
		"sql_max_idle_conns", cfg.SQLMaxIdleConns,
		"port", cfg.Port,
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"rate_limit_per_second", cfg.RateLimitPerSecond,
		"rate_limit_burst", cfg.RateLimitBurst,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"time_zone", cfg.TimeZone,
		"strict_location", cfg.StrictLocation,
		"bulk_workers", cfg.BulkWorkers,
		"bulk_rate_per_second", cfg.BulkRatePerSecond,
		"reconcile_cron", cfg.ReconcileCron,
		"reconcile_ahead_days", cfg.ReconcileAhead,
		"catalog_cache_ttl", cfg.CatalogCacheTTL,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_topic", cfg.KafkaTopic,
		"otel_endpoint_set", cfg.OTelEndpoint != "",
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactDSN(dsn string) string {
	urlCredentials := regexp.MustCompile(`(://[^:/@]+:)[^@]+@`)
	keyValuePassword := regexp.MustCompile(`(password=)\S+`)
	mysqlCredentials := regexp.MustCompile(`^([^:/@]+:)[^@/]+@`)
	dsn = urlCredentials.ReplaceAllString(dsn, "${1}***@")
	dsn = keyValuePassword.ReplaceAllString(dsn, "${1}***")
	return mysqlCredentials.ReplaceAllString(dsn, "${1}***@")
}

func lookup(key string) (string, bool) {
	if value := os.Getenv(key); value != "" {
		return value, true
	}
	if value, ok := fileValues[key]; ok && value != "" {
		return value, true
	}
	return "", false
}

func getEnvStr(key, fallback string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}
