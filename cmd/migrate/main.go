package main

import (
	"context"
	"flag"
	"os"
	"time"

	catrepo "resledger/internal/catalog/repository"
	"resledger/internal/catalog/seed"
	"resledger/internal/ledger"
	mongoMigration "resledger/internal/migrations/mongo"
	"resledger/pkg/config"
)

const JobName = "migration"

func main() {
	seedPath := flag.String("seed", "", "optional YAML catalog to load after migrating")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetStore()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "store", cfg.StoreDriver)

	var repo catrepo.CatalogRepository
	if cfg.UsesMongo() {
		if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
			cfg.Log.Fatal("Migration failed", "error", err)
		}
		repo = catrepo.NewMongoCatalogRepository(cfg)
	} else {
		if err := cfg.Client.SQL.WithContext(ctx).AutoMigrate(ledger.Models()...); err != nil {
			cfg.Log.Fatal("Migration failed", "error", err)
		}
		repo = catrepo.NewGormCatalogRepository(cfg.Client.SQL)
	}
	cfg.Log.Info("Schema is up to date")

	if *seedPath == "" {
		return
	}

	f, err := os.Open(*seedPath)
	if err != nil {
		cfg.Log.Fatal("Failed to open catalog seed", "path", *seedPath, "error", err)
	}
	defer f.Close()

	doc, err := seed.Parse(f)
	if err != nil {
		cfg.Log.Fatal("Failed to read catalog seed", "path", *seedPath, "error", err)
	}
	stats, err := seed.Apply(ctx, repo, doc, cfg.TimeLocation())
	if err != nil {
		cfg.Log.Fatal("Failed to apply catalog seed", "path", *seedPath, "error", err)
	}
	cfg.Log.Info("Catalog seeded",
		"locations", stats.Locations,
		"instructors", stats.Instructors,
		"groupings", stats.Groupings,
	)
}
