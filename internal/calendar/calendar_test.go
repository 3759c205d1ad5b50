package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveFixture(t *testing.T) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile("testdata/f1-calendar.ics")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParse_Fixture(t *testing.T) {
	f, err := os.Open("testdata/f1-calendar.ics")
	require.NoError(t, err)
	defer f.Close()

	events, err := Parse(f)
	require.NoError(t, err)
	require.Len(t, events, 4, "event without DTSTART must be skipped")

	byUID := map[string]string{}
	for _, e := range events {
		byUID[e.UID] = e.Name
	}
	assert.Equal(t, "F1: Qualifying (United States Grand Prix)", byUID["usgp-2023-q@f1"])
	assert.Equal(t, "F1: Grand Prix (United States Grand Prix)", byUID["usgp-2023-gp@f1"])

	for _, e := range events {
		if e.UID == "usgp-2023-gp@f1" {
			assert.True(t, e.Start.Equal(time.Date(2023, time.October, 22, 19, 0, 0, 0, time.UTC)))
		}
	}
}

func TestICSFetcher_Fetch(t *testing.T) {
	srv := serveFixture(t)

	events, err := NewICSFetcher(srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestICSFetcher_TimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewICSFetcher(srv.URL, 50*time.Millisecond).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryable(err), "timeout must be retryable: %v", err)
}

func TestICSFetcher_BadStatusIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewICSFetcher(srv.URL, time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.False(t, IsRetryable(err))

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "502")
}

func TestICSFetcher_RefusedIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewICSFetcher(url, time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestUnescapeText(t *testing.T) {
	assert.Equal(t, "Practice 1, Bahrain; test", unescapeText(`Practice 1\, Bahrain\; test`))
}
