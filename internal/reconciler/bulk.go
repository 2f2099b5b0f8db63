package reconciler

import (
	"context"
	"resledger/pkg/model"
	"sync"

	"golang.org/x/time/rate"
)

// ReconcileAll reconciles every grouping the filter selects. Groupings run on
// a bounded worker pool and never share state, so one grouping's failure is
// recorded in its result and the others carry on.
func (r *Reconciler) ReconcileAll(ctx context.Context, filter model.GroupingFilter, opts Options) (*BulkReport, error) {
	ids, err := r.deps.Groupings.ListGroupings(ctx, filter)
	if err != nil {
		return nil, err
	}

	bulk := &BulkReport{Results: make([]GroupingResult, len(ids))}
	if len(ids) == 0 {
		return bulk, nil
	}

	workers := r.cfg.BulkWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	var limiter *rate.Limiter
	if r.cfg.BulkRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.BulkRatePerSecond), 1)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				bulk.Results[i] = r.reconcileOne(ctx, ids[i], opts, limiter)
			}
		}()
	}

	for i := range ids {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, res := range bulk.Results {
		if res.Err != nil {
			bulk.Failed++
		} else {
			bulk.Succeeded++
		}
	}

	r.cfg.Log.Info("Bulk reconciliation finished",
		"school", filter.School,
		"academic_year", filter.AcademicYear,
		"groupings", len(ids),
		"succeeded", bulk.Succeeded,
		"failed", bulk.Failed,
		"upserted", bulk.Upserted(),
		"deleted", bulk.Deleted(),
		"skipped", bulk.Skipped(),
	)
	return bulk, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, id string, opts Options, limiter *rate.Limiter) GroupingResult {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return GroupingResult{GroupingID: id, Err: err}
		}
	} else if err := ctx.Err(); err != nil {
		return GroupingResult{GroupingID: id, Err: err}
	}

	report, err := r.Reconcile(ctx, id, opts)
	if err != nil {
		r.cfg.Log.Error("Grouping reconciliation failed",
			"grouping_id", id,
			"error", err,
		)
	}
	return GroupingResult{GroupingID: id, Report: report, Err: err}
}
