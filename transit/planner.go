package transit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickb777/date"
)

// ErrNoRoute is returned when no combination of departures satisfies a request
var ErrNoRoute = errors.New("no route found")

// FromSchoolOptions is the number of bus departures considered by FromSchool
const FromSchoolOptions = 3

// Commute describes the fixed two-hop commute between home stations and the
// school: a train between the home station and the hub, a walk between the
// hub station and the bus stop, and a bus between the bus stop and the school
type Commute struct {
	TrainLine   string
	BusLine     string
	Hub         string
	BusStop     string
	School      string
	WalkMinutes int

	// Display names for the legs; the line IDs are used when empty
	TrainName string
	BusName   string
	WalkName  string
}

// Validate checks that the commute refers to lines present in the table
func (c Commute) Validate(table *ScheduleTable) error {
	if c.WalkMinutes < 0 {
		return &ConfigError{Field: "walkMinutes", Index: -1, Err: fmt.Errorf("must not be negative, got %d", c.WalkMinutes)}
	}
	if c.Hub == "" || c.BusStop == "" || c.School == "" {
		return &ConfigError{Index: -1, Err: errors.New("hub, bus stop and school must be set")}
	}
	for _, line := range []string{c.TrainLine, c.BusLine} {
		if len(table.Routes(line)) == 0 {
			return &ConfigError{Line: line, Index: -1, Err: errors.New("line has no routes")}
		}
	}
	return nil
}

// Planner computes itineraries over the fixed commute
type Planner struct {
	Table    *ScheduleTable
	Commute  Commute
	Location *time.Location
	Holidays []date.Date
	Status   StatusSource
	// Now returns the current time; time.Now when nil
	Now func() time.Time
}

// OutboundItinerary is the answer to a to-school request
type OutboundItinerary struct {
	RecommendedDeparture ClockTime `msgpack:"recommendedDepartureTime" json:"recommendedDepartureTime"`
	FinalArrival         ClockTime `msgpack:"finalArrivalTime" json:"finalArrivalTime"`
	Steps                []Leg     `msgpack:"steps" json:"steps"`
}

// ReturnItinerary is one option of a from-school request
type ReturnItinerary struct {
	DepartureFromSchool ClockTime `msgpack:"departureFromSchoolTime" json:"departureFromSchoolTime"`
	FinalArrival        ClockTime `msgpack:"finalArrivalTime" json:"finalArrivalTime"`
	Steps               []Leg     `msgpack:"steps" json:"steps"`
}

func (p *Planner) now() time.Time {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	if p.Location != nil {
		now = now.In(p.Location)
	}
	return now
}

// CurrentTime returns the current time in the planner's location
func (p *Planner) CurrentTime() time.Time {
	return p.now()
}

// Today returns the day type of the current date
func (p *Planner) Today() DayType {
	return DayTypeFor(p.now(), p.Holidays)
}

// Stations returns the canonical IDs of the stations with train service
// towards the hub
func (p *Planner) Stations() []string {
	suffix := "_to_" + CanonicalStation(p.Commute.Hub)
	stations := []string{}
	for _, route := range p.Table.Routes(p.Commute.TrainLine) {
		if strings.HasSuffix(route, suffix) {
			stations = append(stations, strings.TrimSuffix(route, suffix))
		}
	}
	return stations
}

// ToSchool finds the latest train from origin that, followed by the walk and
// the latest suitable bus, reaches the school by the deadline
func (p *Planner) ToSchool(origin string, deadline ClockTime, dayType DayType) (*OutboundItinerary, error) {
	c := p.Commute
	busRoute, ok := p.Table.Route(c.BusLine, RouteKey(c.BusStop, c.School))
	if !ok {
		return nil, ErrNoRoute
	}
	trainRoute, ok := p.Table.Route(c.TrainLine, RouteKey(origin, c.Hub))
	if !ok {
		return nil, ErrNoRoute
	}

	bus, ok := FindLatestDeparture(busRoute.Departures(dayType), busRoute.DurationMinutes, deadline)
	if !ok {
		return nil, ErrNoRoute
	}

	trainDeadline := bus.Departure.Add(-c.WalkMinutes)
	train, ok := FindLatestDeparture(trainRoute.Departures(dayType), trainRoute.DurationMinutes, trainDeadline)
	if !ok {
		return nil, ErrNoRoute
	}

	origin, hub, busStop, school := p.label(origin), p.label(c.Hub), p.label(c.BusStop), p.label(c.School)
	steps := []Leg{
		scheduledLeg(TrainLeg, p.name(c.TrainName, c.TrainLine), origin, hub, train, trainRoute.DurationMinutes),
		walkLeg(p.name(c.WalkName, "walk"), hub, busStop, c.WalkMinutes),
		scheduledLeg(BusLeg, p.name(c.BusName, c.BusLine), busStop, school, bus, busRoute.DurationMinutes),
	}
	p.annotate(steps)

	return &OutboundItinerary{
		RecommendedDeparture: train.Departure,
		FinalArrival:         bus.Arrival,
		Steps:                steps,
	}, nil
}

// FromSchool finds up to FromSchoolOptions itineraries from the school to
// destination, starting with the next buses after now. Buses with no
// connecting train are left out.
func (p *Planner) FromSchool(destination string, now ClockTime, dayType DayType) ([]ReturnItinerary, error) {
	c := p.Commute
	busRoute, ok := p.Table.Route(c.BusLine, RouteKey(c.School, c.BusStop))
	if !ok {
		return nil, ErrNoRoute
	}
	trainRoute, ok := p.Table.Route(c.TrainLine, RouteKey(c.Hub, destination))
	if !ok {
		return nil, ErrNoRoute
	}

	destination, hub, busStop, school := p.label(destination), p.label(c.Hub), p.label(c.BusStop), p.label(c.School)
	itineraries := []ReturnItinerary{}
	buses := FindNextDepartures(busRoute.Departures(dayType), busRoute.DurationMinutes, now, FromSchoolOptions)
	for _, bus := range buses {
		trains := FindNextDepartures(trainRoute.Departures(dayType), trainRoute.DurationMinutes, bus.Arrival.Add(c.WalkMinutes), 1)
		if len(trains) == 0 {
			continue
		}
		train := trains[0]

		steps := []Leg{
			scheduledLeg(BusLeg, p.name(c.BusName, c.BusLine), school, busStop, bus, busRoute.DurationMinutes),
			walkLeg(p.name(c.WalkName, "walk"), busStop, hub, c.WalkMinutes),
			scheduledLeg(TrainLeg, p.name(c.TrainName, c.TrainLine), hub, destination, train, trainRoute.DurationMinutes),
		}
		p.annotate(steps)

		itineraries = append(itineraries, ReturnItinerary{
			DepartureFromSchool: bus.Departure,
			FinalArrival:        train.Arrival,
			Steps:               steps,
		})
	}
	if len(itineraries) == 0 {
		return nil, ErrNoRoute
	}
	return itineraries, nil
}

// FromSchoolNow is FromSchool using the current time in the planner's location
func (p *Planner) FromSchoolNow(destination string, dayType DayType) ([]ReturnItinerary, error) {
	return p.FromSchool(destination, ClockTimeOf(p.now()), dayType)
}

func (p *Planner) annotate(steps []Leg) {
	if p.Status == nil {
		return
	}
	for i := range steps {
		if steps[i].Kind == WalkLeg {
			continue
		}
		status := p.Status.Status(&steps[i])
		steps[i].Realtime = &status
	}
}

// label returns the display label of a station given by label or by ID
func (p *Planner) label(station string) string {
	return p.Table.StationLabel(station)
}

func (p *Planner) name(display, fallback string) string {
	if display != "" {
		return display
	}
	return fallback
}
