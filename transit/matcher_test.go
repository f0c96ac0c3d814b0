package transit

import (
	"reflect"
	"testing"
)

func clocks(ss ...string) []ClockTime {
	times := make([]ClockTime, len(ss))
	for i, s := range ss {
		times[i] = MustParseClockTime(s)
	}
	return times
}

func TestFindLatestDeparture(t *testing.T) {
	schedule := clocks("09:00", "10:40", "13:00")

	tests := []struct {
		name      string
		duration  int
		deadline  string
		wantFound bool
		wantDep   string
		wantArr   string
	}{
		{"arrival equal to deadline is accepted", 90, "12:10", true, "10:40", "12:10"},
		{"one minute short picks the earlier departure", 90, "12:09", true, "09:00", "10:30"},
		{"late deadline picks the last departure", 90, "23:00", true, "13:00", "14:30"},
		{"deadline before any arrival", 90, "10:29", false, "", ""},
		{"deadline before all departures", 10, "08:00", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := FindLatestDeparture(schedule, tt.duration, MustParseClockTime(tt.deadline))
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if !found {
				return
			}
			if got.Departure.String() != tt.wantDep || got.Arrival.String() != tt.wantArr {
				t.Errorf("got %s/%s, want %s/%s", got.Departure, got.Arrival, tt.wantDep, tt.wantArr)
			}
		})
	}
}

func TestFindLatestDepartureEmptySchedule(t *testing.T) {
	if _, found := FindLatestDeparture(nil, 10, MustParseClockTime("12:00")); found {
		t.Error("expected no departure in an empty schedule")
	}
}

func TestFindLatestDepartureIsMaximal(t *testing.T) {
	schedule := clocks("05:10", "06:00", "06:00", "07:45", "09:30", "12:00", "18:20", "23:50")
	for duration := 1; duration <= 120; duration += 17 {
		for deadline := ClockTime(0); deadline < minutesPerDay+120; deadline += 7 {
			got, found := FindLatestDeparture(schedule, duration, deadline)

			var want ClockTime
			wantFound := false
			for _, dep := range schedule {
				if dep.Add(duration) <= deadline && (!wantFound || dep > want) {
					want, wantFound = dep, true
				}
			}

			if found != wantFound || (found && got.Departure != want) {
				t.Fatalf("duration %d deadline %s: got %v/%v, want %v/%v",
					duration, deadline, got.Departure, found, want, wantFound)
			}
			if found && got.Arrival != got.Departure.Add(duration) {
				t.Fatalf("arrival %s does not match departure %s + %d", got.Arrival, got.Departure, duration)
			}
		}
	}
}

func TestFindLatestDepartureMonotonic(t *testing.T) {
	schedule := clocks("06:00", "06:20", "07:05", "08:40", "11:15", "17:30")
	var previous ClockTime = -1
	for deadline := ClockTime(0); deadline < minutesPerDay; deadline++ {
		got, found := FindLatestDeparture(schedule, 35, deadline)
		if !found {
			if previous >= 0 {
				t.Fatalf("deadline %s found nothing after finding %s earlier", deadline, previous)
			}
			continue
		}
		if got.Departure < previous {
			t.Fatalf("deadline %s chose %s, earlier than %s for a smaller deadline", deadline, got.Departure, previous)
		}
		previous = got.Departure
	}
}

func TestFindNextDepartures(t *testing.T) {
	schedule := clocks("09:00", "10:40", "13:00")

	tests := []struct {
		name     string
		duration int
		after    string
		count    int
		want     []Departure
	}{
		{
			name:     "two departures after 09:30",
			duration: 95,
			after:    "09:30",
			count:    2,
			want: []Departure{
				{MustParseClockTime("10:40"), MustParseClockTime("12:15")},
				{MustParseClockTime("13:00"), MustParseClockTime("14:35")},
			},
		},
		{
			name:     "departure equal to the reference time is included",
			duration: 10,
			after:    "10:40",
			count:    1,
			want:     []Departure{{MustParseClockTime("10:40"), MustParseClockTime("10:50")}},
		},
		{
			name:     "non-positive count uses the default",
			duration: 10,
			after:    "00:00",
			count:    0,
			want: []Departure{
				{MustParseClockTime("09:00"), MustParseClockTime("09:10")},
				{MustParseClockTime("10:40"), MustParseClockTime("10:50")},
				{MustParseClockTime("13:00"), MustParseClockTime("13:10")},
			},
		},
		{
			name:     "fewer departures than requested",
			duration: 10,
			after:    "12:00",
			count:    5,
			want:     []Departure{{MustParseClockTime("13:00"), MustParseClockTime("13:10")}},
		},
		{
			name:     "every departure already left",
			duration: 10,
			after:    "13:01",
			count:    3,
			want:     []Departure{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindNextDepartures(schedule, tt.duration, MustParseClockTime(tt.after), tt.count)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindNextDeparturesMovesForward(t *testing.T) {
	schedule := clocks("06:00", "06:00", "06:45", "09:10", "15:00", "22:30")
	after := MustParseClockTime("05:00")
	steps := 0
	for {
		next := FindNextDepartures(schedule, 20, after, 1)
		if len(next) == 0 {
			break
		}
		if next[0].Departure < after {
			t.Fatalf("departure %s is before %s", next[0].Departure, after)
		}
		again := FindNextDepartures(schedule, 20, next[0].Departure, 1)
		if len(again) != 1 || again[0].Departure < next[0].Departure {
			t.Fatalf("re-querying from %s went backwards", next[0].Departure)
		}
		after = next[0].Departure.Add(1)
		steps++
	}
	if steps != 5 {
		t.Errorf("visited %d distinct departures, want 5", steps)
	}
}
