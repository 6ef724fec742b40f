package caldav

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-webdav/caldav"

	"nextup/internal/clients/vevent"
	"nextup/internal/domain"
)

// Client fetches events from a CalDAV server.
type Client struct {
	baseURL      string
	username     string
	password     string
	accountEmail string
	sourceLabel  string
	client       *caldav.Client
}

// NewClient creates a CalDAV client. accountEmail identifies the
// current user among event attendees; sourceLabel is stamped onto
// events as their calendar source.
func NewClient(baseURL, username, password, accountEmail, sourceLabel string) *Client {
	if accountEmail == "" {
		accountEmail = username
	}
	if sourceLabel == "" {
		sourceLabel = "CalDAV"
	}
	return &Client{
		baseURL:      baseURL,
		username:     username,
		password:     password,
		accountEmail: accountEmail,
		sourceLabel:  sourceLabel,
	}
}

// IsConfigured returns true if the client has credentials.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != ""
}

// connect establishes the connection lazily and caches it.
func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests.
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns all calendar collections for the user.
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	result := make([]Calendar, 0, len(cals))
	for _, cal := range cals {
		result = append(result, Calendar{
			Path:        cal.Path,
			DisplayName: cal.Name,
		})
	}

	return result, nil
}

// FetchEvents queries the given calendars for event occurrences inside
// [from, to). A calendar that fails to query contributes nothing; the
// error for the last failing calendar is returned alongside whatever
// was collected so the caller can log and proceed.
func (c *Client) FetchEvents(ctx context.Context, calendars []Calendar, from, to time.Time) ([]domain.Raw, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: from,
					End:   to,
				},
			},
		},
	}

	var (
		events  []domain.Raw
		lastErr error
	)
	for _, cal := range calendars {
		objects, err := client.QueryCalendar(ctx, cal.Path, query)
		if err != nil {
			lastErr = fmt.Errorf("query calendar %s: %w", cal.Path, err)
			continue
		}

		src := vevent.Source{
			CalendarTitle:  cal.DisplayName,
			CalendarSource: c.sourceLabel,
			AccountEmail:   c.accountEmail,
		}
		for _, obj := range objects {
			if obj.Data == nil {
				continue
			}
			events = append(events, vevent.Events(obj.Data, src, from, to)...)
		}
	}

	return events, lastErr
}
