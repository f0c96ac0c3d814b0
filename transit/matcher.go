package transit

// DefaultNextCount is the number of departures returned by FindNextDepartures
// when no positive count is requested
const DefaultNextCount = 3

// Departure is a feasible trip on a single route
type Departure struct {
	Departure ClockTime `json:"departure"`
	Arrival   ClockTime `json:"arrival"`
}

// FindLatestDeparture returns the latest departure in times (sorted ascending)
// whose arrival, after durationMinutes, is not later than deadline.
// An arrival exactly at the deadline is feasible.
func FindLatestDeparture(times []ClockTime, durationMinutes int, deadline ClockTime) (Departure, bool) {
	for i := len(times) - 1; i >= 0; i-- {
		arrival := times[i].Add(durationMinutes)
		if arrival <= deadline {
			return Departure{
				Departure: times[i],
				Arrival:   arrival,
			}, true
		}
	}
	return Departure{}, false
}

// FindNextDepartures returns up to count departures in times (sorted
// ascending) that leave at or after the given time, in ascending order
func FindNextDepartures(times []ClockTime, durationMinutes int, after ClockTime, count int) []Departure {
	if count <= 0 {
		count = DefaultNextCount
	}
	departures := []Departure{}
	for _, t := range times {
		if t < after {
			continue
		}
		departures = append(departures, Departure{
			Departure: t,
			Arrival:   t.Add(durationMinutes),
		})
		if len(departures) == count {
			break
		}
	}
	return departures
}
