package main

import (
	"context"

	"resledger/internal/availability/handler"
	"resledger/internal/ledger"
	"resledger/pkg/app"
	"resledger/pkg/config"
	"resledger/pkg/obs"
)

const ServiceName = "scheduling"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Scheduling service")

	shutdownTracer, err := obs.InitTracer(context.Background(), cfg.Log, ServiceName, cfg.OTelEndpoint)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize tracing", "error", err)
	}

	l, err := ledger.New(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize ledger", "error", err)
	}

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewLedgerHandler(l.Employees, l.Locations, l.Reconciler, l.Guard, cfg))
	serverApp.OnShutdown(l.Close)
	serverApp.OnShutdown(shutdownTracer)
	serverApp.Run()
}
