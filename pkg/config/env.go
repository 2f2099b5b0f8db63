package config

const (
	EnvConfigFile = "CONFIG_FILE"
	EnvDotEnvFile = "DOTENV_FILE"

	EnvStoreDriver = "STORE_DRIVER"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvSQLDSN             = "SQL_DSN"
	EnvSQLMaxOpenConns    = "SQL_MAX_OPEN_CONNS"
	EnvSQLMaxIdleConns    = "SQL_MAX_IDLE_CONNS"
	EnvSQLConnMaxLifetime = "SQL_CONN_MAX_LIFETIME"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvRateLimitPerSecond = "RATE_LIMIT_PER_SECOND"
	EnvRateLimitBurst     = "RATE_LIMIT_BURST"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvTimeZone       = "TIME_ZONE"
	EnvStrictLocation = "STRICT_LOCATION"

	EnvBulkWorkers       = "BULK_WORKERS"
	EnvBulkRatePerSecond = "BULK_RATE_PER_SECOND"
	EnvReconcileCron     = "RECONCILE_CRON"
	EnvReconcileAhead    = "RECONCILE_AHEAD_DAYS"

	EnvCatalogCacheTTL = "CATALOG_CACHE_TTL"

	EnvKafkaEnabled  = "KAFKA_ENABLED"
	EnvKafkaTopic    = "KAFKA_TOPIC"
	EnvKafkaDLQTopic = "KAFKA_DLQ_TOPIC"

	EnvOTelEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)
