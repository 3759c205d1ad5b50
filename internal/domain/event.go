package domain

import (
	"sort"
	"strings"
	"time"
)

// Event is a single calendar session as published by the feed.
type Event struct {
	UID   string
	Name  string
	Start time.Time
}

// IsCanceled reports whether the feed marked the session as canceled.
func IsCanceled(name string) bool {
	return strings.Contains(strings.ToLower(name), "canceled")
}

// IsRace reports whether the session is a grand prix.
func IsRace(name string) bool {
	return strings.Contains(strings.ToLower(name), "f1: grand prix")
}

// IsQualifying reports whether the session is the main qualifying.
func IsQualifying(name string) bool {
	return strings.Contains(strings.ToLower(name), "f1: qualifying")
}

// ParseSession splits a feed name such as "F1: Qualifying (United States Grand Prix)"
// into its session ("Qualifying") and race ("United States Grand Prix").
func ParseSession(name string) (session, race string, ok bool) {
	open := strings.Index(name, "(")
	closing := strings.LastIndex(name, ")")
	if open < 0 || closing < open {
		return "", "", false
	}
	race = strings.TrimSpace(name[open+1 : closing])

	head := name[:open]
	if i := strings.Index(head, "F1:"); i >= 0 {
		head = head[i+len("F1:"):]
	}
	session = strings.TrimSpace(head)
	if session == "" || race == "" {
		return "", "", false
	}
	return session, race, true
}

// SortByStart returns a copy of events ordered by start time.
func SortByStart(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// InWindow reports whether start lies in [now, now+lookahead].
func InWindow(start, now time.Time, lookahead time.Duration) bool {
	return !start.Before(now) && !start.After(now.Add(lookahead))
}
