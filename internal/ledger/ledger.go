// Package ledger assembles the booking ledgers, the catalog and the services
// built on them for the configured store.
package ledger

import (
	"context"
	"fmt"

	catrepo "resledger/internal/catalog/repository"
	catservice "resledger/internal/catalog/service"
	emprepo "resledger/internal/employeebookings/repository"
	empservice "resledger/internal/employeebookings/service"
	empvalidator "resledger/internal/employeebookings/validator"
	"resledger/internal/guard"
	locrepo "resledger/internal/locationbookings/repository"
	locservice "resledger/internal/locationbookings/service"
	locvalidator "resledger/internal/locationbookings/validator"
	"resledger/internal/reconciler"
	"resledger/pkg/config"
	"resledger/pkg/db"
	"resledger/pkg/db/gormdb"
	mongotx "resledger/pkg/db/mongo"
	"resledger/pkg/kafka"
	kafka_config "resledger/pkg/kafka/config"
	kafka_middleware "resledger/pkg/kafka/middleware"
	"resledger/pkg/timetable"
)

type Ledger struct {
	Employees  empservice.EmployeeBookingService
	Locations  locservice.LocationBookingService
	Catalog    *catservice.Catalog
	Reconciler *reconciler.Reconciler
	Guard      *guard.Guard

	producer *kafka.Producer
}

// Models lists every table the SQL store needs, for AutoMigrate.
func Models() []any {
	return append([]any{&emprepo.EmployeeBookingRow{}, &locrepo.LocationBookingRow{}}, catrepo.Models()...)
}

// New wires the ledger on the store already connected in cfg.Client. Events
// are published only when Kafka is enabled.
func New(cfg *config.Config, serviceName string) (*Ledger, error) {
	var (
		employeeRepo emprepo.EmployeeBookingRepository
		locationRepo locrepo.LocationBookingRepository
		catalogRepo  catrepo.CatalogRepository
		tx           db.TransactionManager
	)
	switch {
	case cfg.UsesMongo():
		if cfg.Client == nil || cfg.Client.Mongo == nil {
			return nil, fmt.Errorf("mongo store is not connected")
		}
		employeeRepo = emprepo.NewMongoEmployeeBookingRepository(cfg)
		locationRepo = locrepo.NewMongoLocationBookingRepository(cfg)
		catalogRepo = catrepo.NewMongoCatalogRepository(cfg)
		tx = mongotx.NewTransactionManager(cfg.Client.Mongo)
	default:
		if cfg.Client == nil || cfg.Client.SQL == nil {
			return nil, fmt.Errorf("sql store is not connected")
		}
		employeeRepo = emprepo.NewGormEmployeeBookingRepository(cfg.Client.SQL)
		locationRepo = locrepo.NewGormLocationBookingRepository(cfg.Client.SQL)
		catalogRepo = catrepo.NewGormCatalogRepository(cfg.Client.SQL)
		tx = gormdb.NewTransactionManager(cfg.Client.SQL)
	}

	catalog := catservice.NewCatalog(catrepo.NewCached(catalogRepo, cfg.CatalogCacheTTL), cfg)
	l := &Ledger{
		Catalog: catalog,
		Employees: empservice.NewEmployeeBookingService(
			employeeRepo,
			empvalidator.NewEmployeeBookingValidator(cfg.Log),
			cfg,
		),
		Locations: locservice.NewLocationBookingService(
			locationRepo,
			locvalidator.NewLocationBookingValidator(cfg.Log),
			catalog,
			cfg,
		),
	}

	reconcilerDeps := reconciler.Dependencies{
		Groupings:      catalog,
		Slots:          timetable.NewWeeklyEnumerator(catalog, cfg.TimeLocation()),
		Instructors:    catalog,
		Locations:      catalog,
		EmployeeLedger: l.Employees,
		LocationLedger: l.Locations,
	}
	guardDeps := guard.Dependencies{
		EmployeeLedger: l.Employees,
		LocationLedger: l.Locations,
		Instructors:    catalog,
		Tx:             tx,
	}

	if cfg.KafkaEnabled {
		publisher, err := l.startPublisher(cfg, serviceName)
		if err != nil {
			return nil, err
		}
		reconcilerDeps.Publisher = publisher
		guardDeps.Publisher = publisher
	}

	l.Reconciler = reconciler.New(reconcilerDeps, cfg)
	l.Guard = guard.New(guardDeps, cfg)

	cfg.Log.Component("ledger").Info("Ledger initialized",
		"store", cfg.StoreDriver,
		"kafka", cfg.KafkaEnabled,
		"catalog_cache_ttl", cfg.CatalogCacheTTL,
	)
	return l, nil
}

func (l *Ledger) startPublisher(cfg *config.Config, serviceName string) (*kafka.EventPublisher, error) {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		return nil, fmt.Errorf("kafka config: %w", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.KafkaTopic, cfg.KafkaDLQTopic)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log, cfg.KafkaTopic))
	l.producer = producer
	return kafka.NewEventPublisher(producer, serviceName), nil
}

// Close flushes and closes the event producer, if any.
func (l *Ledger) Close(_ context.Context) error {
	if l.producer == nil {
		return nil
	}
	return l.producer.Close()
}
