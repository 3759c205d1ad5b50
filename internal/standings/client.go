// Package standings fetches championship standings from an Ergast-compatible
// API and renders them as tables.
package standings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.jolpi.ca/ergast/f1"
	defaultTimeout = 15 * time.Second
	userAgent      = "f1-schedule-bot/1.0"
)

type DriverStanding struct {
	Position string
	Name     string
	Team     string
	Points   float64
	Wins     int
}

type ConstructorStanding struct {
	Position string
	Team     string
	Points   float64
	Wins     int
}

type Race struct {
	Round int
	Name  string
}

// Standings is a snapshot of both championships for the current season.
type Standings struct {
	Season           string
	DriverRound      int
	ConstructorRound int
	Drivers          []DriverStanding
	Constructors     []ConstructorStanding
	Races            []Race
}

// RaceName returns the name of the given round, or "round N" when unknown.
func (s *Standings) RaceName(round int) string {
	for _, r := range s.Races {
		if r.Round == round {
			return r.Name
		}
	}
	return fmt.Sprintf("round %d", round)
}

// Client talks to the stats API.
type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Fetch loads driver standings, constructor standings and the race list of
// the current season.
func (c *Client) Fetch(ctx context.Context) (*Standings, error) {
	var drivers driverStandingsResponse
	if err := c.getJSON(ctx, "/current/driverStandings.json", &drivers); err != nil {
		return nil, fmt.Errorf("driver standings: %w", err)
	}
	var constructors constructorStandingsResponse
	if err := c.getJSON(ctx, "/current/constructorStandings.json", &constructors); err != nil {
		return nil, fmt.Errorf("constructor standings: %w", err)
	}
	var races raceTableResponse
	if err := c.getJSON(ctx, "/current.json", &races); err != nil {
		return nil, fmt.Errorf("races: %w", err)
	}

	s := &Standings{Season: races.MRData.RaceTable.Season}

	if lists := drivers.MRData.StandingsTable.StandingsLists; len(lists) > 0 {
		s.DriverRound = atoi(lists[0].Round)
		for _, d := range lists[0].DriverStandings {
			team := ""
			if len(d.Constructors) > 0 {
				team = d.Constructors[0].Name
			}
			s.Drivers = append(s.Drivers, DriverStanding{
				Position: positionText(d.PositionText, d.Position),
				Name:     strings.TrimSpace(d.Driver.GivenName + " " + d.Driver.FamilyName),
				Team:     team,
				Points:   atof(d.Points),
				Wins:     atoi(d.Wins),
			})
		}
	}

	if lists := constructors.MRData.StandingsTable.StandingsLists; len(lists) > 0 {
		s.ConstructorRound = atoi(lists[0].Round)
		for _, cs := range lists[0].ConstructorStandings {
			s.Constructors = append(s.Constructors, ConstructorStanding{
				Position: positionText(cs.PositionText, cs.Position),
				Team:     cs.Constructor.Name,
				Points:   atof(cs.Points),
				Wins:     atoi(cs.Wins),
			})
		}
	}

	for _, r := range races.MRData.RaceTable.Races {
		s.Races = append(s.Races, Race{Round: atoi(r.Round), Name: r.RaceName})
	}
	return s, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?limit=100", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func positionText(text, position string) string {
	if text != "" {
		return text
	}
	return position
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// Wire format of the Ergast API.

type driverStandingsResponse struct {
	MRData struct {
		StandingsTable struct {
			StandingsLists []struct {
				Round           string `json:"round"`
				DriverStandings []struct {
					Position     string `json:"position"`
					PositionText string `json:"positionText"`
					Points       string `json:"points"`
					Wins         string `json:"wins"`
					Driver       struct {
						GivenName  string `json:"givenName"`
						FamilyName string `json:"familyName"`
					} `json:"Driver"`
					Constructors []struct {
						Name string `json:"name"`
					} `json:"Constructors"`
				} `json:"DriverStandings"`
			} `json:"StandingsLists"`
		} `json:"StandingsTable"`
	} `json:"MRData"`
}

type constructorStandingsResponse struct {
	MRData struct {
		StandingsTable struct {
			StandingsLists []struct {
				Round                string `json:"round"`
				ConstructorStandings []struct {
					Position     string `json:"position"`
					PositionText string `json:"positionText"`
					Points       string `json:"points"`
					Wins         string `json:"wins"`
					Constructor  struct {
						Name string `json:"name"`
					} `json:"Constructor"`
				} `json:"ConstructorStandings"`
			} `json:"StandingsLists"`
		} `json:"StandingsTable"`
	} `json:"MRData"`
}

type raceTableResponse struct {
	MRData struct {
		RaceTable struct {
			Season string `json:"season"`
			Races  []struct {
				Round    string `json:"round"`
				RaceName string `json:"raceName"`
			} `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}
