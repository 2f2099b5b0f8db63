package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// SchedulingClient calls the scheduling service routes.
type SchedulingClient struct {
	httpClient *HttpClient
}

func NewSchedulingClient(baseURL, actor string) *SchedulingClient {
	c := NewHttpClient(baseURL)
	if actor != "" {
		c.Headers["X-Actor"] = actor
	}
	return &SchedulingClient{httpClient: c}
}

func (c *SchedulingClient) EmployeeAvailability(ctx context.Context, employee string, start, end time.Time, includeSoft bool) (*Response, error) {
	q := windowQuery(start, end)
	if includeSoft {
		q.Set("include_soft", "true")
	}
	return c.httpClient.GET(ctx, "/api/v1/availability/employees/"+url.PathEscape(employee)+"?"+q.Encode())
}

func (c *SchedulingClient) LocationAvailability(ctx context.Context, location string, start, end time.Time, includeChildren bool) (*Response, error) {
	q := windowQuery(start, end)
	if includeChildren {
		q.Set("include_children", "true")
	}
	return c.httpClient.GET(ctx, "/api/v1/availability/locations/"+url.PathEscape(location)+"?"+q.Encode())
}

// ReconcileGrouping triggers one grouping. A nil strict keeps the server default.
func (c *SchedulingClient) ReconcileGrouping(ctx context.Context, groupingID string, strict *bool) (*Response, error) {
	path := "/api/v1/reconcile/groupings/" + url.PathEscape(groupingID)
	if strict != nil {
		path += "?strict=" + strconv.FormatBool(*strict)
	}
	return c.httpClient.POST(ctx, path, nil)
}

func (c *SchedulingClient) ReconcileAll(ctx context.Context, school, academicYear string) (*Response, error) {
	q := url.Values{}
	if school != "" {
		q.Set("school", school)
	}
	if academicYear != "" {
		q.Set("academic_year", academicYear)
	}
	return c.httpClient.POST(ctx, "/api/v1/reconcile?"+q.Encode(), nil)
}

func (c *SchedulingClient) CheckCommitment(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/commitments/check", body)
}

func (c *SchedulingClient) BookCommitment(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.PUT(ctx, "/api/v1/commitments", body)
}

func (c *SchedulingClient) ReleaseSource(ctx context.Context, kind, name string) (*Response, error) {
	return c.httpClient.DELETE(ctx, "/api/v1/sources/"+url.PathEscape(kind)+"/"+url.PathEscape(name))
}

func (c *SchedulingClient) EmployeeCalendar(ctx context.Context, employee string, start, end time.Time) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/calendar/employees/"+url.PathEscape(employee)+".ics?"+windowQuery(start, end).Encode())
}

func windowQuery(start, end time.Time) url.Values {
	q := url.Values{}
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	return q
}
