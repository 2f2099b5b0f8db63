package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"resledger/internal/guard"
	apperrors "resledger/pkg/errors"
	httputil "resledger/pkg/http"
	"resledger/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// CommitmentRequest is the body of the commitment check and book endpoints.
// The location is checked against its whole subtree; there is no
// include_children switch here.
type CommitmentRequest struct {
	SourceKind         string    `json:"source_kind"`
	SourceName         string    `json:"source_name"`
	Location           string    `json:"location,omitempty"`
	Employees          []string  `json:"employees,omitempty"`
	Instructors        []string  `json:"instructors,omitempty"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	AllowDoubleBooking bool      `json:"allow_double_booking,omitempty"`
	OccupancyType      string    `json:"occupancy_type,omitempty"`
	BookingType        string    `json:"booking_type,omitempty"`
	School             string    `json:"school,omitempty"`
	AcademicYear       string    `json:"academic_year,omitempty"`
}

func (req CommitmentRequest) commitment() guard.Commitment {
	return guard.Commitment{
		Source:             model.NewSourceRef(req.SourceKind, req.SourceName),
		Location:           req.Location,
		Employees:          req.Employees,
		Instructors:        req.Instructors,
		Start:              req.Start,
		End:                req.End,
		AllowDoubleBooking: req.AllowDoubleBooking,
	}
}

type CheckResponse struct {
	Free bool `json:"free"`
}

func (h *LedgerHandler) CheckCommitment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "CheckCommitment", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.guard.Check(r.Context(), req.commitment()); err != nil {
		h.writeError(w, "CheckCommitment", err)
		return
	}

	if err := httputil.WriteSuccess(w, CheckResponse{Free: true}); err != nil {
		h.cfg.Log.Error("failed to write success response", "handler", "CheckCommitment", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LedgerHandler) BookCommitment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "BookCommitment", apperrors.InvalidInput("Invalid request body"))
		return
	}

	result, err := h.guard.Book(r.Context(), req.commitment(), guard.BookOptions{
		OccupancyType: req.OccupancyType,
		BookingType:   req.BookingType,
		School:        req.School,
		AcademicYear:  req.AcademicYear,
		Actor:         r.Header.Get(ActorHeader),
	})
	if err != nil {
		h.writeError(w, "BookCommitment", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.cfg.Log.Error("failed to write success response", "handler", "BookCommitment", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LedgerHandler) ReleaseSource(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	source := model.NewSourceRef(ps.ByName("kind"), ps.ByName("id"))

	result, err := h.guard.Release(r.Context(), source, r.Header.Get(ActorHeader))
	if err != nil {
		h.writeError(w, "ReleaseSource", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.cfg.Log.Error("failed to write success response", "handler", "ReleaseSource", "operation", "WriteSuccess", "error", err)
	}
}
