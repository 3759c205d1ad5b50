package standings

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, file := range map[string]string{
		"/ergast/f1/current/driverStandings.json":      "testdata/driverStandings.json",
		"/ergast/f1/current/constructorStandings.json": "testdata/constructorStandings.json",
		"/ergast/f1/current.json":                      "testdata/current.json",
	} {
		body, err := os.ReadFile(file)
		require.NoError(t, err)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "100", r.URL.Query().Get("limit"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fetchFixture(t *testing.T) *Standings {
	t.Helper()
	srv := newAPI(t)
	s, err := NewClient(srv.URL+"/ergast/f1/", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	return s
}

func TestClient_Fetch(t *testing.T) {
	s := fetchFixture(t)

	assert.Equal(t, "2023", s.Season)
	assert.Equal(t, 18, s.DriverRound)
	assert.Equal(t, 18, s.ConstructorRound)
	require.Len(t, s.Drivers, 3)
	assert.Equal(t, DriverStanding{Position: "2", Name: "Sergio Pérez", Team: "Red Bull", Points: 240, Wins: 2}, s.Drivers[1])
	require.Len(t, s.Constructors, 2)
	assert.Equal(t, ConstructorStanding{Position: "1", Team: "Red Bull", Points: 706, Wins: 17}, s.Constructors[0])
	assert.Equal(t, "United States Grand Prix", s.RaceName(18))
	assert.Equal(t, "round 30", s.RaceName(30))
}

func TestClient_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTableWidths_IncludeHeaders(t *testing.T) {
	s := fetchFixture(t)

	assert.Equal(t, []int{8, 14, 8, 6}, driverTable(s).widths())
	assert.Equal(t, []int{8, 8, 6, 7}, constructorTable(s).widths())
}

func TestRenderDrivers(t *testing.T) {
	s := fetchFixture(t)

	b, err := RenderDrivers(s)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)

	tbl := driverTable(s)
	width, height := tbl.size()
	assert.Equal(t, image.Rect(0, 0, width, height), img.Bounds())
	assert.Equal(t, padding+5*rowHeight, height)
	assert.GreaterOrEqual(t, width, len(tbl.title)*charWidth)
}

func TestRenderConstructors(t *testing.T) {
	s := fetchFixture(t)

	b, err := RenderConstructors(s)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodePNG_Failure(t *testing.T) {
	err := encodePNG(failingWriter{}, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	require.ErrorIs(t, err, ErrEncoding)
}

func TestText(t *testing.T) {
	s := fetchFixture(t)
	out := Text(s)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "Driver standing after the United States Grand Prix", lines[0])
	assert.Equal(t, "Position  Name            Team      Points", lines[1])
	assert.Equal(t, "1         Max Verstappen  Red Bull  466", lines[2])
	assert.Contains(t, out, "Constructor standing after the United States Grand Prix")
	assert.Contains(t, out, "1         Red Bull  706     17 / 18")
}
