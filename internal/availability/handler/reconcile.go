package handler

import (
	"net/http"

	"resledger/internal/reconciler"
	httputil "resledger/pkg/http"
	"resledger/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type GroupingOutcome struct {
	GroupingID string             `json:"grouping_id"`
	Report     *reconciler.Report `json:"report,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type BulkResponse struct {
	Results   []GroupingOutcome `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Upserted  int               `json:"upserted"`
	Deleted   int64             `json:"deleted"`
	Skipped   int               `json:"skipped"`
}

func (h *LedgerHandler) ReconcileGrouping(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	opts, err := h.reconcileOptions(r)
	if err != nil {
		h.writeError(w, "ReconcileGrouping", err)
		return
	}
	loc := h.cfg.TimeLocation()
	if start, ok, err := httputil.QueryTime(r, "window_start", loc); err != nil {
		h.writeError(w, "ReconcileGrouping", err)
		return
	} else if ok {
		opts.WindowStart = &start
	}
	if end, ok, err := httputil.QueryTime(r, "window_end", loc); err != nil {
		h.writeError(w, "ReconcileGrouping", err)
		return
	} else if ok {
		opts.WindowEnd = &end
	}

	report, err := h.reconciler.Reconcile(r.Context(), ps.ByName("id"), opts)
	if err != nil {
		h.writeError(w, "ReconcileGrouping", err)
		return
	}

	if err := httputil.WriteSuccess(w, report); err != nil {
		h.cfg.Log.Error("failed to write success response", "handler", "ReconcileGrouping", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LedgerHandler) ReconcileAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	opts, err := h.reconcileOptions(r)
	if err != nil {
		h.writeError(w, "ReconcileAll", err)
		return
	}
	activeOnly, err := httputil.QueryBool(r, "active_only")
	if err != nil {
		h.writeError(w, "ReconcileAll", err)
		return
	}

	query := r.URL.Query()
	filter := model.GroupingFilter{
		School:       query.Get("school"),
		AcademicYear: query.Get("academic_year"),
		ActiveOnly:   activeOnly == nil || *activeOnly,
	}

	bulk, err := h.reconciler.ReconcileAll(r.Context(), filter, opts)
	if err != nil {
		h.writeError(w, "ReconcileAll", err)
		return
	}

	if err := httputil.WriteSuccess(w, newBulkResponse(bulk)); err != nil {
		h.cfg.Log.Error("failed to write success response", "handler", "ReconcileAll", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LedgerHandler) reconcileOptions(r *http.Request) (reconciler.Options, error) {
	strict, err := httputil.QueryBool(r, "strict")
	if err != nil {
		return reconciler.Options{}, err
	}
	return reconciler.Options{
		StrictLocation: strict,
		Actor:          r.Header.Get(ActorHeader),
	}, nil
}

func newBulkResponse(bulk *reconciler.BulkReport) BulkResponse {
	resp := BulkResponse{
		Results:   make([]GroupingOutcome, 0, len(bulk.Results)),
		Succeeded: bulk.Succeeded,
		Failed:    bulk.Failed,
		Upserted:  bulk.Upserted(),
		Deleted:   bulk.Deleted(),
		Skipped:   bulk.Skipped(),
	}
	for _, res := range bulk.Results {
		outcome := GroupingOutcome{GroupingID: res.GroupingID, Report: res.Report}
		if res.Err != nil {
			outcome.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, outcome)
	}
	return resp
}
