package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resledger/internal/availability/handler"
	catrepo "resledger/internal/catalog/repository"
	"resledger/internal/catalog/seed"
	"resledger/internal/ledger"
	"resledger/pkg/client"
	"resledger/pkg/config"
	"resledger/pkg/db/gormdb/gormtest"
	"resledger/pkg/logger"
	"resledger/pkg/middleware"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogSeed = `
locations:
  - {id: Main, name: Main building, is_group: true, bookable: true}
  - {id: R1, name: Room 1, parent_id: Main, bookable: true}
instructors:
  - {id: INS-1, name: Algebra teacher, employee: E1}
groupings:
  - id: G1
    name: Algebra 9A
    school: North
    academic_year: "2025-26"
    period_start: "2025-09-01"
    period_end: "2025-09-30"
    rows:
      - {rotation_day: 1, block_number: 1, instructor: INS-1, location: R1}
    blocks:
      - {rotation_day: 1, block_number: 1, start: "09:00", end: "10:00"}
`

func startScheduling(t *testing.T) *httptest.Server {
	t.Helper()

	db := gormtest.Open(t, ledger.Models()...)
	cfg := &config.Config{
		StoreDriver:    client.DriverSQLite,
		Log:            logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"}),
		Client:         &client.Client{SQL: db},
		Location:       time.UTC,
		StrictLocation: true,
		BulkWorkers:    2,
		MaxRequestSize: 1 << 20,
	}

	doc, err := seed.Parse(strings.NewReader(catalogSeed))
	require.NoError(t, err)
	_, err = seed.Apply(context.Background(), catrepo.NewGormCatalogRepository(db), doc, time.UTC)
	require.NoError(t, err)

	l, err := ledger.New(cfg, "test")
	require.NoError(t, err)

	router := httprouter.New()
	handler.NewHealthHandler(cfg.Client, cfg.Log).RegisterRoutes(router)
	handler.NewLedgerHandler(l.Employees, l.Locations, l.Reconciler, l.Guard, cfg).RegisterRoutes(router)

	var h http.Handler = router
	h = middleware.ContentTypeValidation(cfg.Log)(h)
	h = middleware.MaxRequestSize(int64(cfg.MaxRequestSize))(h)
	h = middleware.RequestLogging(cfg.Log)(h)
	h = middleware.Recovery(cfg.Log)(h)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestSchedulingClient_EndToEnd(t *testing.T) {
	srv := startScheduling(t)
	ctx := context.Background()

	raw := client.NewHttpClient(srv.URL)
	require.NoError(t, raw.WaitForHealthy(ctx, 5*time.Second))

	c := client.NewSchedulingClient(srv.URL, "alice")

	resp, err := c.ReconcileGrouping(ctx, "G1", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, client.GetErrorMessage(resp))
	var report struct {
		LocationInserted int `json:"location_inserted"`
		EmployeeInserted int `json:"employee_inserted"`
	}
	require.NoError(t, resp.DecodeData(&report))
	assert.Equal(t, 5, report.LocationInserted)
	assert.Equal(t, 5, report.EmployeeInserted)

	monday := time.Date(2025, 9, 15, 9, 30, 0, 0, time.UTC)
	resp, err = c.EmployeeAvailability(ctx, "E1", monday, monday.Add(time.Hour), false)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var availability handler.EmployeeAvailability
	require.NoError(t, resp.DecodeData(&availability))
	assert.False(t, availability.Free)
	require.Len(t, availability.Conflicts, 1)
	assert.Equal(t, "G1", availability.Conflicts[0].SourceName)

	meeting := handler.CommitmentRequest{
		SourceKind: "Meeting",
		SourceName: "M1",
		Location:   "Main",
		Start:      monday,
		End:        monday.Add(time.Hour),
	}
	resp, err = c.BookCommitment(ctx, meeting)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, client.GetErrorMessage(resp), "Scheduling conflict")

	meeting.Start = meeting.Start.Add(24 * time.Hour)
	meeting.End = meeting.End.Add(24 * time.Hour)
	resp, err = c.BookCommitment(ctx, meeting)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, client.GetErrorMessage(resp))

	resp, err = c.LocationAvailability(ctx, "R1", meeting.Start, meeting.End, false)
	require.NoError(t, err)
	var room handler.LocationAvailability
	require.NoError(t, resp.DecodeData(&room))
	assert.False(t, room.Free, "booking the building occupies its rooms")

	resp, err = c.ReleaseSource(ctx, "Meeting", "M1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = c.EmployeeCalendar(ctx, "E1",
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, strings.Count(string(resp.Body), "BEGIN:VEVENT"))
}

func TestSchedulingClient_UnknownGrouping(t *testing.T) {
	srv := startScheduling(t)
	c := client.NewSchedulingClient(srv.URL, "")

	resp, err := c.ReconcileGrouping(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
