// Package calendar fetches and parses the race calendar feed.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/ykvlv/f1-schedule-bot/internal/domain"
)

const (
	DefaultURL     = "https://files-f1.motorsportcalendars.com/f1-calendar_p1_p2_p3_qualifying_sprint_gp.ics"
	DefaultTimeout = 30 * time.Second
	UserAgent      = "f1-schedule-bot/1.0"
)

// Source yields the current set of calendar events.
type Source interface {
	Fetch(ctx context.Context) ([]domain.Event, error)
}

// FetchError tells callers whether a failed fetch may simply be retried on
// the next cycle or must stop the process.
type FetchError struct {
	Retryable bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Retryable {
		return "calendar temporarily unavailable: " + e.Err.Error()
	}
	return "calendar fetch failed: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a FetchError that allows skipping the cycle.
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable
}

// ICSFetcher downloads an iCal feed over HTTP.
type ICSFetcher struct {
	client *http.Client
	url    string
}

// NewICSFetcher creates a fetcher for url. A non-positive timeout uses DefaultTimeout.
func NewICSFetcher(url string, timeout time.Duration) *ICSFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if url == "" {
		url = DefaultURL
	}
	return &ICSFetcher{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

// Fetch performs one request and parses the body. Timeouts come back as a
// retryable FetchError, anything else as a fatal one.
func (f *ICSFetcher) Fetch(ctx context.Context) ([]domain.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(fmt.Errorf("fetching feed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	events, err := Parse(resp.Body)
	if err != nil {
		return nil, classify(err)
	}
	return events, nil
}

func classify(err error) error {
	return &FetchError{Retryable: isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Parse reads an iCal document. Events without a usable start time are skipped.
func Parse(r io.Reader) ([]domain.Event, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	var events []domain.Event
	for _, ve := range cal.Events() {
		start, err := ve.GetStartAt()
		if err != nil {
			continue
		}
		name := ""
		if p := ve.GetProperty(ics.ComponentPropertySummary); p != nil {
			name = unescapeText(p.Value)
		}
		events = append(events, domain.Event{
			UID:   ve.Id(),
			Name:  name,
			Start: start.UTC(),
		})
	}
	return events, nil
}

var textUnescaper = strings.NewReplacer(`\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
