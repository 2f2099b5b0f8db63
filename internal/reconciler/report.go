package reconciler

import "time"

// Window is the half-open datetime range a run cleaned up.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report counts what one grouping's reconciliation did.
type Report struct {
	GroupingID       string `json:"grouping_id"`
	Window           Window `json:"window"`
	SlotsSeen        int    `json:"slots_seen"`
	LocationInserted int    `json:"location_inserted"`
	LocationUpdated  int    `json:"location_updated"`
	EmployeeInserted int    `json:"employee_inserted"`
	EmployeeUpdated  int    `json:"employee_updated"`
	LocationDeleted  int64  `json:"location_deleted"`
	EmployeeDeleted  int64  `json:"employee_deleted"`
	Skipped          int    `json:"skipped"`
}

// Upserted is the number of materialized slots, counted on the location ledger.
func (r *Report) Upserted() int {
	return r.LocationInserted + r.LocationUpdated
}

// Deleted is the number of obsolete slots removed, counted on the location ledger.
func (r *Report) Deleted() int64 {
	return r.LocationDeleted
}

type GroupingResult struct {
	GroupingID string  `json:"grouping_id"`
	Report     *Report `json:"report,omitempty"`
	Err        error   `json:"-"`
}

// BulkReport holds one result per grouping in the order they were listed.
type BulkReport struct {
	Results   []GroupingResult `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

func (b *BulkReport) Upserted() int {
	n := 0
	for _, r := range b.Results {
		if r.Report != nil {
			n += r.Report.Upserted()
		}
	}
	return n
}

func (b *BulkReport) Deleted() int64 {
	var n int64
	for _, r := range b.Results {
		if r.Report != nil {
			n += r.Report.Deleted()
		}
	}
	return n
}

func (b *BulkReport) Skipped() int {
	n := 0
	for _, r := range b.Results {
		if r.Report != nil {
			n += r.Report.Skipped
		}
	}
	return n
}
