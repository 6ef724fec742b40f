// Package icsfeed fetches ICS subscription feeds over HTTP and maps
// them to raw event records, as a second calendar source next to
// CalDAV.
package icsfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"nextup/internal/clients/vevent"
	"nextup/internal/domain"
)

// Feed is one ICS subscription.
type Feed struct {
	// Name is the calendar title stamped onto events from this feed.
	Name string
	URL  string
}

// Client fetches and parses ICS feeds.
type Client struct {
	httpClient   *http.Client
	accountEmail string
}

// NewClient creates an ICS feed client. accountEmail identifies the
// current user among event attendees.
func NewClient(accountEmail string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		accountEmail: accountEmail,
	}
}

// FetchEvents downloads every feed and returns the event occurrences
// inside [from, to). Feeds that fail contribute nothing; the last
// failure is returned alongside the collected events.
func (c *Client) FetchEvents(ctx context.Context, feeds []Feed, from, to time.Time) ([]domain.Raw, error) {
	var (
		events  []domain.Raw
		lastErr error
	)
	for _, feed := range feeds {
		raws, err := c.fetchOne(ctx, feed, from, to)
		if err != nil {
			lastErr = fmt.Errorf("fetch feed %s: %w", feed.Name, err)
			continue
		}
		events = append(events, raws...)
	}
	return events, lastErr
}

func (c *Client) fetchOne(ctx context.Context, feed Feed, from, to time.Time) ([]domain.Raw, error) {
	if feed.URL == "" {
		return nil, fmt.Errorf("feed URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.TrimSpace(string(body)), "BEGIN:VCALENDAR") {
		return nil, fmt.Errorf("response is not iCalendar data")
	}

	src := vevent.Source{
		CalendarTitle:  feed.Name,
		CalendarSource: "ICS",
		AccountEmail:   c.accountEmail,
	}

	var events []domain.Raw
	dec := ical.NewDecoder(strings.NewReader(string(body)))
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}
		events = append(events, vevent.Events(cal, src, from, to)...)
	}

	return events, nil
}
