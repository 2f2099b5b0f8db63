package config

import "time"

const (
	DefaultStoreDriver = "mongo"

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "resledger"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultSQLDSN             = "file:resledger.db?cache=shared"
	DefaultSQLMaxOpenConns    = 20
	DefaultSQLMaxIdleConns    = 5
	DefaultSQLConnMaxLifetime = 30 * time.Minute

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultRateLimitPerSecond = 0.0
	DefaultRateLimitBurst     = 10

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultTimeZone       = "UTC"
	DefaultStrictLocation = true

	DefaultBulkWorkers       = 4
	DefaultBulkRatePerSecond = 0.0
	DefaultReconcileCron     = "0 2 * * *"
	DefaultReconcileAhead    = 14

	DefaultCatalogCacheTTL = 5 * time.Minute

	DefaultKafkaEnabled  = false
	DefaultKafkaTopic    = "booking-events"
	DefaultKafkaDLQTopic = ""

	DefaultOTelEndpoint = ""
)
