package handler

import (
	"context"
	"net/http"
	"time"

	empservice "resledger/internal/employeebookings/service"
	"resledger/internal/guard"
	locservice "resledger/internal/locationbookings/service"
	"resledger/internal/reconciler"
	"resledger/pkg/config"
	apperrors "resledger/pkg/errors"
	httputil "resledger/pkg/http"
	"resledger/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// ActorHeader names the user on whose behalf a write is made.
const ActorHeader = "X-Actor"

type Reconciler interface {
	Reconcile(ctx context.Context, groupingID string, opts reconciler.Options) (*reconciler.Report, error)
	ReconcileAll(ctx context.Context, filter model.GroupingFilter, opts reconciler.Options) (*reconciler.BulkReport, error)
}

type Guard interface {
	Check(ctx context.Context, c guard.Commitment) error
	Book(ctx context.Context, c guard.Commitment, opts guard.BookOptions) (*guard.BookResult, error)
	Release(ctx context.Context, source model.SourceRef, actor string) (*guard.ReleaseResult, error)
}

type EmployeeAvailability struct {
	Employee  string           `json:"employee"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Free      bool             `json:"free"`
	Conflicts []model.Conflict `json:"conflicts"`
}

type LocationAvailability struct {
	Location        string           `json:"location"`
	IncludeChildren bool             `json:"include_children"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	Free            bool             `json:"free"`
	Conflicts       []model.Conflict `json:"conflicts"`
}

type LedgerHandler struct {
	employees  empservice.EmployeeBookingService
	locations  locservice.LocationBookingService
	reconciler Reconciler
	guard      Guard
	cfg        *config.Config
	now        func() time.Time
}

func NewLedgerHandler(
	employees empservice.EmployeeBookingService,
	locations locservice.LocationBookingService,
	reconciler Reconciler,
	guard Guard,
	cfg *config.Config,
) *LedgerHandler {
	return &LedgerHandler{
		employees:  employees,
		locations:  locations,
		reconciler: reconciler,
		guard:      guard,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (h *LedgerHandler) EmployeeAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	employee := ps.ByName("id")

	start, end, err := httputil.RequiredWindow(r, h.cfg.TimeLocation())
	if err != nil {
		h.writeError(w, "EmployeeAvailability", err)
		return
	}
	includeSoft, err := httputil.QueryBool(r, "include_soft")
	if err != nil {
		h.writeError(w, "EmployeeAvailability", err)
		return
	}
	exclude, err := excludedSource(r)
	if err != nil {
		h.writeError(w, "EmployeeAvailability", err)
		return
	}

	bookings, err := h.employees.FindConflicts(r.Context(), empservice.ConflictQuery{
		Employee:      employee,
		Start:         start,
		End:           end,
		IncludeSoft:   includeSoft != nil && *includeSoft,
		ExcludeSource: exclude,
	})
	if err != nil {
		h.writeError(w, "EmployeeAvailability", err)
		return
	}

	conflicts := make([]model.Conflict, 0, len(bookings))
	for _, b := range bookings {
		conflicts = append(conflicts, model.EmployeeConflict(b))
	}

	if err := httputil.WriteSuccess(w, EmployeeAvailability{
		Employee:  employee,
		Start:     start.UTC(),
		End:       end.UTC(),
		Free:      len(conflicts) == 0,
		Conflicts: conflicts,
	}); err != nil {
		h.cfg.Log.Error("failed to write success response", "handler", "EmployeeAvailability", "operation", "WriteSuccess", "error", err)
	}
}

// LocationAvailability lists bookings that occupy the location: its own and
// those of its ancestors. include_children widens the read to descendants.
// Commitment checks always cover descendants regardless of this flag.
func (h *LedgerHandler) LocationAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	location := ps.ByName("id")

	start, end, err := httputil.RequiredWindow(r, h.cfg.TimeLocation())
	if err != nil {
		h.writeError(w, "LocationAvailability", err)
		return
	}
	includeChildren, err := httputil.QueryBool(r, "include_children")
	if err != nil {
		h.writeError(w, "LocationAvailability", err)
		return
	}
	exclude, err := excludedSource(r)
	if err != nil {
		h.writeError(w, "LocationAvailability", err)
		return
	}

	q := locservice.ConflictQuery{
		Location:        location,
		Start:           start,
		End:             end,
		IncludeChildren: includeChildren != nil && *includeChildren,
		ExcludeSource:   exclude,
	}
	bookings, err := h.locations.FindConflicts(r.Context(), q)
	if err != nil {
		h.writeError(w, "LocationAvailability", err)
		return
	}

	conflicts := make([]model.Conflict, 0, len(bookings))
	for _, b := range bookings {
		conflicts = append(conflicts, model.LocationConflict(location, b))
	}

	if err := httputil.WriteSuccess(w, LocationAvailability{
		Location:        location,
		IncludeChildren: q.IncludeChildren,
		Start:           start.UTC(),
		End:             end.UTC(),
		Free:            len(conflicts) == 0,
		Conflicts:       conflicts,
	}); err != nil {
		h.cfg.Log.Error("failed to write success response", "handler", "LocationAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LedgerHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/availability/employees/:id", h.EmployeeAvailability)
	router.GET("/api/v1/availability/locations/:id", h.LocationAvailability)
	router.POST("/api/v1/reconcile/groupings/:id", h.ReconcileGrouping)
	router.POST("/api/v1/reconcile", h.ReconcileAll)
	router.POST("/api/v1/commitments/check", h.CheckCommitment)
	router.PUT("/api/v1/commitments", h.BookCommitment)
	router.DELETE("/api/v1/sources/:kind/:id", h.ReleaseSource)
	router.GET("/api/v1/calendar/employees/:file", h.EmployeeCalendar)
	router.GET("/api/v1/calendar/locations/:file", h.LocationCalendar)
}

func (h *LedgerHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.cfg.Log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

// excludedSource reads the optional exclude_kind and exclude_id pair.
func excludedSource(r *http.Request) (*model.SourceRef, error) {
	query := r.URL.Query()
	kind, id := query.Get("exclude_kind"), query.Get("exclude_id")
	if kind == "" && id == "" {
		return nil, nil
	}
	if kind == "" || id == "" {
		return nil, apperrors.InvalidInput("exclude_kind and exclude_id must be given together")
	}
	source := model.NewSourceRef(kind, id)
	return &source, nil
}
