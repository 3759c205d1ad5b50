package domain

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// WeekendWindow bounds the sessions listed in the weekend calendar.
	WeekendWindow = 4 * 24 * time.Hour
	// RaceWeekWindow is how close a grand prix must be to count as this week.
	RaceWeekWindow = 7 * 24 * time.Hour

	offseasonText = "Welcome to offseason! 🤪"
)

// Until renders the distance from now to t, e.g. "1 hour from now".
// now is truncated to the minute so a timer that fires a few milliseconds
// late still reads as the scheduled offset.
func Until(t, now time.Time) string {
	return humanize.RelTime(t, now.Truncate(time.Minute), "ago", "from now")
}

// ReminderText is the broadcast sent ahead of a session.
func ReminderText(e Event, now time.Time) string {
	return fmt.Sprintf("%s will begin %s", e.Name, Until(e.Start, now))
}

// WeekendCalendar lists qualifying and grand prix sessions starting in
// (now, now+WeekendWindow] as HTML, one "Session: 15:04" line each in loc.
// The race name is printed once in bold.
// It returns "" when nothing matches.
func WeekendCalendar(events []Event, now time.Time, loc *time.Location) string {
	var b strings.Builder
	for _, e := range SortByStart(events) {
		if !e.Start.After(now) || e.Start.After(now.Add(WeekendWindow)) {
			continue
		}
		if !IsQualifying(e.Name) && !IsRace(e.Name) {
			continue
		}
		session, race, ok := ParseSession(e.Name)
		if !ok {
			continue
		}
		if b.Len() == 0 {
			fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(race))
		}
		fmt.Fprintf(&b, "%s: %s\n", html.EscapeString(session), e.Start.In(loc).Format("15:04"))
	}
	return b.String()
}

// RaceWeekText announces the next grand prix, or the offseason when the
// last session of the calendar happened during the past week.
func RaceWeekText(events []Event, now time.Time) (string, bool) {
	sorted := SortByStart(events)
	for _, e := range sorted {
		if !e.Start.After(now) || !IsRace(e.Name) || IsCanceled(e.Name) {
			continue
		}
		_, race, ok := ParseSession(e.Name)
		if !ok {
			race = e.Name
		}
		if !e.Start.After(now.Add(RaceWeekWindow)) {
			return "It's rawe ceek!\n\n" + race, true
		}
		return fmt.Sprintf("%s is %s", race, Until(e.Start, now)), true
	}

	if len(sorted) == 0 {
		return "", false
	}
	last := sorted[len(sorted)-1]
	if last.Start.After(now.Add(-RaceWeekWindow)) {
		return offseasonText, true
	}
	return "", false
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (*time.Location, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}
