package transit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/rickb777/date"
	"github.com/thoas/go-funk"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DayType selects which departure list of a route applies
type DayType string

const (
	// Weekday is Monday to Friday, except holidays
	Weekday DayType = "weekday"
	// Weekend is Saturday, Sunday and holidays
	Weekend DayType = "weekend"
)

// ParseDayType validates a day type string
func ParseDayType(s string) (DayType, error) {
	switch DayType(s) {
	case Weekday, Weekend:
		return DayType(s), nil
	}
	return "", fmt.Errorf("invalid day type %q", s)
}

// DayTypeFor returns the day type of the date of t, considering the given holidays
func DayTypeFor(t time.Time, holidays []date.Date) DayType {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return Weekend
	}
	if funk.Contains(holidays, date.NewAt(t)) {
		return Weekend
	}
	return Weekday
}

// RouteSchedule contains the departures of a route for each day type
type RouteSchedule struct {
	DurationMinutes int
	Weekday         []ClockTime
	Weekend         []ClockTime
}

// Departures returns the departure list that applies to the given day type
func (r *RouteSchedule) Departures(dayType DayType) []ClockTime {
	if dayType == Weekend {
		return r.Weekend
	}
	return r.Weekday
}

// ScheduleTable is a validated, immutable set of fixed timetables, indexed by
// line ID and route ID
type ScheduleTable struct {
	lines map[string]map[string]*RouteSchedule
	// station labels by canonical station ID, from routes written as "A to B"
	labels map[string]string
}

// ConfigError describes a malformed schedule table entry
type ConfigError struct {
	Line  string
	Route string
	Field string
	// Index is the position of the offending departure, or -1
	Index int
	Err   error
}

func (e *ConfigError) Error() string {
	where := "schedule table"
	if e.Line != "" {
		where += fmt.Sprintf(": line %q", e.Line)
	}
	if e.Route != "" {
		where += fmt.Sprintf(" route %q", e.Route)
	}
	if e.Field != "" {
		where += ": " + e.Field
		if e.Index >= 0 {
			where += fmt.Sprintf("[%d]", e.Index)
		}
	}
	return where + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

type jsonRoute struct {
	DurationMinutes   int      `json:"durationMinutes"`
	WeekdayDepartures []string `json:"weekdayDepartures"`
	WeekendDepartures []string `json:"weekendDepartures"`
}

// LoadScheduleFile reads and validates the schedule table at the given path
func LoadScheduleFile(path string) (*ScheduleTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Index: -1, Err: err}
	}
	defer f.Close()
	return LoadScheduleTable(f)
}

// LoadScheduleTable reads and validates a schedule table encoded as JSON.
// Route IDs are canonicalized with CanonicalRouteID.
func LoadScheduleTable(r io.Reader) (*ScheduleTable, error) {
	raw := make(map[string]map[string]jsonRoute)
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		return nil, &ConfigError{Index: -1, Err: err}
	}

	table := &ScheduleTable{
		lines:  make(map[string]map[string]*RouteSchedule),
		labels: make(map[string]string),
	}

	lineIDs := make([]string, 0, len(raw))
	for lineID := range raw {
		lineIDs = append(lineIDs, lineID)
	}
	sort.Strings(lineIDs)

	for _, lineID := range lineIDs {
		routes := raw[lineID]
		routeIDs := make([]string, 0, len(routes))
		for routeID := range routes {
			routeIDs = append(routeIDs, routeID)
		}
		sort.Strings(routeIDs)

		table.lines[lineID] = make(map[string]*RouteSchedule)
		for _, routeID := range routeIDs {
			route, err := parseRoute(lineID, routeID, routes[routeID])
			if err != nil {
				return nil, err
			}
			key := CanonicalRouteID(routeID)
			if _, dup := table.lines[lineID][key]; dup {
				return nil, &ConfigError{Line: lineID, Route: routeID, Index: -1,
					Err: fmt.Errorf("route ID collides with another route as %q", key)}
			}
			table.lines[lineID][key] = route
			table.learnLabels(routeID)
		}
	}
	return table, nil
}

func parseRoute(lineID, routeID string, raw jsonRoute) (*RouteSchedule, error) {
	if raw.DurationMinutes <= 0 {
		return nil, &ConfigError{Line: lineID, Route: routeID, Field: "durationMinutes", Index: -1,
			Err: fmt.Errorf("must be positive, got %d", raw.DurationMinutes)}
	}
	weekday, err := parseDepartures(lineID, routeID, "weekdayDepartures", raw.WeekdayDepartures)
	if err != nil {
		return nil, err
	}
	weekend, err := parseDepartures(lineID, routeID, "weekendDepartures", raw.WeekendDepartures)
	if err != nil {
		return nil, err
	}
	return &RouteSchedule{
		DurationMinutes: raw.DurationMinutes,
		Weekday:         weekday,
		Weekend:         weekend,
	}, nil
}

func parseDepartures(lineID, routeID, field string, raw []string) ([]ClockTime, error) {
	times := make([]ClockTime, len(raw))
	for i, s := range raw {
		t, err := ParseClockTime(s)
		if err != nil {
			return nil, &ConfigError{Line: lineID, Route: routeID, Field: field, Index: i, Err: err}
		}
		if i > 0 && t < times[i-1] {
			return nil, &ConfigError{Line: lineID, Route: routeID, Field: field, Index: i,
				Err: fmt.Errorf("%s is earlier than the previous departure %s", t, times[i-1])}
		}
		times[i] = t
	}
	return times, nil
}

// Route returns the schedule of a route. routeID need not be canonical.
func (t *ScheduleTable) Route(lineID, routeID string) (*RouteSchedule, bool) {
	routes, ok := t.lines[lineID]
	if !ok {
		return nil, false
	}
	route, ok := routes[CanonicalRouteID(routeID)]
	return route, ok
}

// learnLabels records the station labels of a route ID written as
// "From to To". The first label seen for a station is kept.
func (t *ScheduleTable) learnLabels(routeID string) {
	if strings.Count(routeID, " to ") != 1 {
		return
	}
	for _, label := range strings.Split(routeID, " to ") {
		label = strings.TrimSpace(label)
		id := CanonicalStation(label)
		if _, known := t.labels[id]; !known && label != "" {
			t.labels[id] = label
		}
	}
}

// StationLabel returns the display label of a station, which may be given by
// label or by canonical ID. Stations whose label is unknown are returned as
// given.
func (t *ScheduleTable) StationLabel(station string) string {
	if label, ok := t.labels[CanonicalStation(station)]; ok {
		return label
	}
	return station
}

// Lines returns the IDs of all lines in the table, sorted
func (t *ScheduleTable) Lines() []string {
	ids := make([]string, 0, len(t.lines))
	for id := range t.lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Routes returns the canonical IDs of all routes of a line, sorted
func (t *ScheduleTable) Routes(lineID string) []string {
	ids := []string{}
	for id := range t.lines[lineID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RouteCount returns the total number of routes in the table
func (t *ScheduleTable) RouteCount() int {
	count := 0
	for _, routes := range t.lines {
		count += len(routes)
	}
	return count
}

// CanonicalStation turns a station label into a case-folded, accent-free
// identifier with underscores instead of spaces
func CanonicalStation(label string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, label)
	if err != nil {
		stripped = label
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), "_")
}

// RouteKey returns the canonical ID of the route between two stations
func RouteKey(from, to string) string {
	return CanonicalStation(from) + "_to_" + CanonicalStation(to)
}

// CanonicalRouteID canonicalizes a route ID written by hand, so that
// "Hub to Campus" and "hub_to_campus" name the same route
func CanonicalRouteID(routeID string) string {
	return CanonicalStation(routeID)
}
