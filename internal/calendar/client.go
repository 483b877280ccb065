package calendar

import (
	"context"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"inboxpilot/internal/assistant"
	"inboxpilot/internal/google"
	"inboxpilot/internal/schedule"
)

// Client wraps the Google Calendar service.
type Client struct {
	svc *calendar.Service
}

// NewClient creates a Calendar client authenticated with the cached
// OAuth token.
func NewClient(ctx context.Context) (*Client, error) {
	httpClient, err := google.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found: %w", err)
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc}, nil
}

// BusyIntervals returns the busy intervals of the given calendar within
// the time range, via the freebusy endpoint.
func (c *Client) BusyIntervals(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]schedule.BusyInterval, error) {
	query := &calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	}

	result, err := c.svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}

	raw, err := rawBusyRanges(result, calendarID)
	if err != nil {
		return nil, err
	}
	return schedule.ParseBusy(raw)
}

// rawBusyRanges extracts the busy ranges reported for calendarID. A
// calendar-level error from the API is surfaced instead of being
// treated as a free day.
func rawBusyRanges(result *calendar.FreeBusyResponse, calendarID string) ([][2]string, error) {
	cal, ok := result.Calendars[calendarID]
	if !ok {
		return nil, fmt.Errorf("freebusy response missing calendar %q", calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("freebusy lookup failed for %q: %s", calendarID, cal.Errors[0].Reason)
	}

	raw := make([][2]string, 0, len(cal.Busy))
	for _, busy := range cal.Busy {
		raw = append(raw, [2]string{busy.Start, busy.End})
	}
	return raw, nil
}

// CreateEvent inserts a timed event and returns its HTML link.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, spec assistant.EventSpec) (string, error) {
	created, err := c.svc.Events.Insert(calendarID, buildEvent(spec)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	return created.HtmlLink, nil
}

func buildEvent(spec assistant.EventSpec) *calendar.Event {
	tz := spec.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	return &calendar.Event{
		Summary:     spec.Summary,
		Description: spec.Description,
		Start: &calendar.EventDateTime{
			DateTime: spec.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: spec.End.Format(time.RFC3339),
			TimeZone: tz,
		},
	}
}
