// Package script executes the user's event script with a fixed
// positional parameter contract.
package script

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"

	"nextup/internal/domain"
)

// EmptySentinel replaces blank optional parameters so the script always
// receives the full, fixed-arity argument list.
const EmptySentinel = "EMPTY"

// Result reports one finished script run.
type Result struct {
	RunID   uuid.UUID
	EventID string
	Err     error
	Output  string
}

// Runner executes a configured script once per triggering event.
type Runner struct {
	scriptPath string
	timeout    time.Duration
}

func NewRunner(scriptPath string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Runner{scriptPath: scriptPath, timeout: timeout}
}

// Configured reports whether a script path is set.
func (r *Runner) Configured() bool {
	return r.scriptPath != ""
}

// Args builds the fixed positional parameter list for an event:
// id, title, all-day flag, start, end, location, recurrence flag,
// attendee count, meeting url, meeting service, notes, calendar title,
// calendar source. Blank optional values become EmptySentinel.
func Args(e domain.Event) []string {
	meetingURL := EmptySentinel
	meetingService := EmptySentinel
	if e.MeetingLink != nil {
		meetingURL = e.MeetingLink.URL.String()
		meetingService = string(e.MeetingLink.Service)
	}

	return []string{
		e.ID,
		e.Title,
		strconv.FormatBool(e.AllDay),
		e.Start.Format(time.RFC3339),
		e.End.Format(time.RFC3339),
		orEmpty(e.Location),
		strconv.FormatBool(e.Recurrent),
		strconv.Itoa(len(e.Attendees)),
		meetingURL,
		meetingService,
		orEmpty(e.Notes),
		e.CalendarTitle,
		e.CalendarSource,
	}
}

// Run executes the script asynchronously and reports the outcome on
// the returned channel. The caller never blocks on completion; the
// channel is buffered so an ignored result cannot leak the goroutine.
func (r *Runner) Run(ctx context.Context, e domain.Event) <-chan Result {
	done := make(chan Result, 1)
	runID := uuid.New()

	go func() {
		runCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		cmd := exec.CommandContext(runCtx, r.scriptPath, Args(e)...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			err = fmt.Errorf("run script %s: %w", r.scriptPath, err)
		}
		done <- Result{RunID: runID, EventID: e.ID, Err: err, Output: string(out)}
	}()

	return done
}

func orEmpty(s string) string {
	if s == "" {
		return EmptySentinel
	}
	return s
}
