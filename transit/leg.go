package transit

// LegKind is the mode of transport of a Leg
type LegKind string

const (
	// WalkLeg is a walk between two points, with no timetable
	WalkLeg LegKind = "WALK"
	// TrainLeg is a ride on a scheduled train
	TrainLeg LegKind = "TRAIN"
	// BusLeg is a ride on a scheduled bus
	BusLeg LegKind = "BUS"
)

// StatusNormal is the status reported for legs without live information
const StatusNormal = "normal"

// RealtimeStatus describes the live state of a scheduled leg.
// Live is false when no realtime source backs the information, in which case
// the status is always StatusNormal with no delay.
type RealtimeStatus struct {
	Status       string `msgpack:"status" json:"status"`
	DelayMinutes int    `msgpack:"delayMinutes" json:"delayMinutes"`
	Live         bool   `msgpack:"live" json:"live"`
}

// Leg is one segment of an itinerary. Walk legs have no departure or arrival
// times, only a duration.
type Leg struct {
	Kind            LegKind         `msgpack:"type" json:"type"`
	Line            string          `msgpack:"line" json:"line"`
	From            string          `msgpack:"from" json:"from"`
	To              string          `msgpack:"to" json:"to"`
	Departure       *ClockTime      `msgpack:"departureTime,omitempty" json:"departureTime,omitempty"`
	Arrival         *ClockTime      `msgpack:"arrivalTime,omitempty" json:"arrivalTime,omitempty"`
	DurationMinutes int             `msgpack:"durationMinutes" json:"durationMinutes"`
	Realtime        *RealtimeStatus `msgpack:"realtime,omitempty" json:"realtime,omitempty"`
}

// StatusSource provides the realtime status of scheduled legs
type StatusSource interface {
	Status(leg *Leg) RealtimeStatus
}

// NominalStatus is a StatusSource that reports every leg as running normally.
// It carries no live information.
type NominalStatus struct{}

// Status implements StatusSource
func (NominalStatus) Status(leg *Leg) RealtimeStatus {
	return RealtimeStatus{Status: StatusNormal}
}

func scheduledLeg(kind LegKind, line, from, to string, d Departure, durationMinutes int) Leg {
	dep, arr := d.Departure, d.Arrival
	return Leg{
		Kind:            kind,
		Line:            line,
		From:            from,
		To:              to,
		Departure:       &dep,
		Arrival:         &arr,
		DurationMinutes: durationMinutes,
	}
}

func walkLeg(name, from, to string, durationMinutes int) Leg {
	return Leg{
		Kind:            WalkLeg,
		Line:            name,
		From:            from,
		To:              to,
		DurationMinutes: durationMinutes,
	}
}
