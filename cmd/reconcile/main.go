package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resledger/internal/ledger"
	"resledger/internal/reconciler"
	"resledger/pkg/config"
	"resledger/pkg/model"
	"resledger/pkg/obs"

	"github.com/robfig/cron/v3"
)

const JobName = "reconcile"

func main() {
	once := flag.Bool("once", false, "run a single reconciliation and exit")
	school := flag.String("school", "", "only reconcile groupings of this school")
	academicYear := flag.String("academic-year", "", "only reconcile groupings of this academic year")
	flag.Parse()

	cfg := config.Load(JobName)
	cfg.SetStore()
	defer cfg.GracefulShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.Log, JobName, cfg.OTelEndpoint)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	l, err := ledger.New(cfg, JobName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize ledger", "error", err)
	}
	defer func() { _ = l.Close(context.Background()) }()

	filter := model.GroupingFilter{School: *school, AcademicYear: *academicYear, ActiveOnly: true}
	job := func() { run(ctx, cfg, l.Reconciler, filter) }

	if *once {
		job()
		return
	}

	scheduler := cron.New(cron.WithLocation(cfg.TimeLocation()))
	if _, err := scheduler.AddFunc(cfg.ReconcileCron, job); err != nil {
		cfg.Log.Fatal("Invalid reconcile schedule", "cron", cfg.ReconcileCron, "error", err)
	}
	scheduler.Start()
	cfg.Log.Info("Reconcile scheduler started", "cron", cfg.ReconcileCron, "ahead_days", cfg.ReconcileAhead)

	<-ctx.Done()
	cfg.Log.Info("Shutdown signal received, waiting for running reconciliation")
	<-scheduler.Stop().Done()
}

// run reconciles the window from today through ReconcileAhead days. Failures
// are logged, the next tick retries.
func run(ctx context.Context, cfg *config.Config, r *reconciler.Reconciler, filter model.GroupingFilter) {
	loc := cfg.TimeLocation()
	now := time.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, cfg.ReconcileAhead)

	bulk, err := r.ReconcileAll(ctx, filter, reconciler.Options{
		WindowStart: &start,
		WindowEnd:   &end,
		Actor:       JobName,
	})
	if err != nil {
		cfg.Log.Error("Reconciliation failed", "error", err)
		return
	}
	for _, res := range bulk.Results {
		if res.Err != nil {
			cfg.Log.Warn("Grouping reconciliation failed", "grouping_id", res.GroupingID, "error", res.Err)
		}
	}
}
