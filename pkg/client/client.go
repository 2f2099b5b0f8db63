package client

import (
	"context"
	"fmt"
	"resledger/pkg/logger"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Client holds the store connections of a process. Exactly one of Mongo and
// SQL is set, depending on the configured driver.
type Client struct {
	Mongo *mongo.Client
	SQL   *gorm.DB
}

type SQLOptions struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB",
			"error", err,
		)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

func (c *Client) SetSQL(log *logger.Logger, opts SQLOptions) {
	db, err := OpenSQL(opts)
	if err != nil {
		log.Fatal("Failed to connect to SQL database",
			"error", err,
			"driver", opts.Driver,
		)
	}

	log.Info("Successfully connected to SQL database", "driver", opts.Driver)
	c.SQL = db
}

// OpenSQL opens a gorm connection for one of the supported SQL drivers.
// Driver errors are translated to gorm errors such as gorm.ErrDuplicatedKey.
func OpenSQL(opts SQLOptions) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverMySQL:
		dialector = mysql.Open(opts.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormLogLevel(opts.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return db, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case logger.DEBUG:
		return gormlogger.Info
	case logger.WARN, logger.INFO:
		return gormlogger.Warn
	case logger.ERROR:
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}

func (c *Client) GracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.Mongo != nil {
		_ = c.Mongo.Disconnect(ctx)
	}
	if c.SQL != nil {
		if sqlDB, err := c.SQL.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// Ping checks whichever store connection is open.
func (c *Client) Ping(ctx context.Context) error {
	switch {
	case c.Mongo != nil:
		return c.Mongo.Ping(ctx, nil)
	case c.SQL != nil:
		sqlDB, err := c.SQL.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	default:
		return fmt.Errorf("no store connection")
	}
}
