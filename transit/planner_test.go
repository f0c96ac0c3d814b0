package transit

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	msgpack "gopkg.in/vmihailenco/msgpack.v2"
)

func testPlanner(t *testing.T) *Planner {
	t.Helper()
	table, err := LoadScheduleFile("testdata/schedule.json")
	if err != nil {
		t.Fatalf("LoadScheduleFile failed: %v", err)
	}
	commute := Commute{
		TrainLine:   "keio",
		BusLine:     "campus_bus",
		Hub:         "Kitano",
		BusStop:     "Kitano Station North",
		School:      "Campus",
		WalkMinutes: 5,
		TrainName:   "Keio Line",
		BusName:     "Campus Shuttle",
		WalkName:    "Walk",
	}
	if err := commute.Validate(table); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return &Planner{
		Table:   table,
		Commute: commute,
		Status:  NominalStatus{},
	}
}

func TestToSchool(t *testing.T) {
	p := testPlanner(t)

	tests := []struct {
		deadline   string
		dayType    DayType
		wantDepart string
		wantArrive string
		wantErr    error
	}{
		{"09:00", Weekday, "08:00", "09:00", nil},
		{"08:36", Weekday, "07:30", "08:35", nil},
		{"23:00", Weekday, "08:00", "09:25", nil},
		{"08:00", Weekday, "", "", ErrNoRoute},
		{"09:15", Weekend, "08:00", "09:15", nil},
		{"09:14", Weekend, "", "", ErrNoRoute},
	}

	for _, tt := range tests {
		it, err := p.ToSchool("Shinjuku", MustParseClockTime(tt.deadline), tt.dayType)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("deadline %s %s: error = %v, want %v", tt.deadline, tt.dayType, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("deadline %s %s: unexpected error %v", tt.deadline, tt.dayType, err)
			continue
		}
		if it.RecommendedDeparture.String() != tt.wantDepart || it.FinalArrival.String() != tt.wantArrive {
			t.Errorf("deadline %s %s: got %s -> %s, want %s -> %s", tt.deadline, tt.dayType,
				it.RecommendedDeparture, it.FinalArrival, tt.wantDepart, tt.wantArrive)
		}
	}
}

func TestToSchoolSteps(t *testing.T) {
	p := testPlanner(t)
	it, err := p.ToSchool("Shinjuku", MustParseClockTime("09:00"), Weekday)
	if err != nil {
		t.Fatalf("ToSchool failed: %v", err)
	}
	if len(it.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(it.Steps))
	}

	train, walk, bus := it.Steps[0], it.Steps[1], it.Steps[2]
	if train.Kind != TrainLeg || walk.Kind != WalkLeg || bus.Kind != BusLeg {
		t.Fatalf("unexpected leg kinds %s, %s, %s", train.Kind, walk.Kind, bus.Kind)
	}
	if train.Line != "Keio Line" || train.From != "Shinjuku" || train.To != "Kitano" {
		t.Errorf("unexpected train leg %+v", train)
	}
	if *train.Arrival > bus.Departure.Add(-walk.DurationMinutes) {
		t.Errorf("train arriving at %s leaves no time to walk to the %s bus", *train.Arrival, *bus.Departure)
	}
	if walk.Departure != nil || walk.Arrival != nil || walk.DurationMinutes != 5 || walk.Realtime != nil {
		t.Errorf("walk legs carry only a duration, got %+v", walk)
	}
	if bus.Realtime == nil || bus.Realtime.Status != StatusNormal || bus.Realtime.Live {
		t.Errorf("expected a nominal realtime status on the bus leg, got %+v", bus.Realtime)
	}
}

func TestLegsUseStationLabels(t *testing.T) {
	p := testPlanner(t)
	p.Commute.Hub = "kitano"
	p.Commute.BusStop = "kitano_station_north"
	p.Commute.School = "campus"

	it, err := p.ToSchool("shinjuku", MustParseClockTime("09:00"), Weekday)
	if err != nil {
		t.Fatalf("ToSchool failed: %v", err)
	}
	got := [][2]string{}
	for _, leg := range it.Steps {
		got = append(got, [2]string{leg.From, leg.To})
	}
	want := [][2]string{{"Shinjuku", "Kitano"}, {"Kitano", "Kitano Station North"}, {"Kitano Station North", "Campus"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("outbound stops = %v, want %v", got, want)
	}

	its, err := p.FromSchool("shinjuku", MustParseClockTime("15:30"), Weekday)
	if err != nil {
		t.Fatalf("FromSchool failed: %v", err)
	}
	if last := its[0].Steps[2]; last.From != "Kitano" || last.To != "Shinjuku" {
		t.Errorf("return train leg %s -> %s, want Kitano -> Shinjuku", last.From, last.To)
	}
}

func TestToSchoolUnknownOrigin(t *testing.T) {
	p := testPlanner(t)
	if _, err := p.ToSchool("Tokyo", MustParseClockTime("09:00"), Weekday); !errors.Is(err, ErrNoRoute) {
		t.Errorf("error = %v, want ErrNoRoute", err)
	}
}

func TestFromSchool(t *testing.T) {
	p := testPlanner(t)

	its, err := p.FromSchool("Shinjuku", MustParseClockTime("15:30"), Weekday)
	if err != nil {
		t.Fatalf("FromSchool failed: %v", err)
	}
	want := [][2]string{{"16:00", "17:10"}, {"17:00", "18:05"}, {"18:00", "21:40"}}
	if len(its) != len(want) {
		t.Fatalf("got %d itineraries, want %d", len(its), len(want))
	}
	for i, it := range its {
		if it.DepartureFromSchool.String() != want[i][0] || it.FinalArrival.String() != want[i][1] {
			t.Errorf("itinerary %d: got %s -> %s, want %s -> %s", i,
				it.DepartureFromSchool, it.FinalArrival, want[i][0], want[i][1])
		}
		if it.Steps[0].Kind != BusLeg || it.Steps[1].Kind != WalkLeg || it.Steps[2].Kind != TrainLeg {
			t.Errorf("itinerary %d: unexpected leg order", i)
		}
		if *it.Steps[2].Departure < it.Steps[0].Arrival.Add(p.Commute.WalkMinutes) {
			t.Errorf("itinerary %d: train leaves before the walk from the bus ends", i)
		}
	}
}

func TestFromSchoolDropsBusesWithoutTrain(t *testing.T) {
	p := testPlanner(t)

	its, err := p.FromSchool("Shinjuku", MustParseClockTime("17:30"), Weekday)
	if err != nil {
		t.Fatalf("FromSchool failed: %v", err)
	}
	if len(its) != 1 || its[0].DepartureFromSchool.String() != "18:00" {
		t.Errorf("expected only the 18:00 bus to have a connecting train, got %+v", its)
	}

	if _, err := p.FromSchool("Shinjuku", MustParseClockTime("22:30"), Weekday); !errors.Is(err, ErrNoRoute) {
		t.Errorf("error = %v, want ErrNoRoute", err)
	}
	if _, err := p.FromSchool("Shinjuku", MustParseClockTime("08:00"), Weekend); !errors.Is(err, ErrNoRoute) {
		t.Errorf("weekend error = %v, want ErrNoRoute", err)
	}
}

func TestFromSchoolNow(t *testing.T) {
	p := testPlanner(t)
	loc := time.FixedZone("JST", 9*60*60)
	p.Location = loc
	p.Now = func() time.Time {
		// 07:00 UTC is 16:00 in JST
		return time.Date(2026, time.April, 27, 7, 0, 0, 0, time.UTC)
	}

	its, err := p.FromSchoolNow("Shinjuku", p.Today())
	if err != nil {
		t.Fatalf("FromSchoolNow failed: %v", err)
	}
	if its[0].DepartureFromSchool.String() != "16:00" {
		t.Errorf("first bus = %s, want 16:00", its[0].DepartureFromSchool)
	}
}

func TestPlannerStations(t *testing.T) {
	p := testPlanner(t)
	if got := strings.Join(p.Stations(), ","); got != "shinjuku" {
		t.Errorf("Stations() = %q, want shinjuku", got)
	}
}

func TestItineraryMsgpack(t *testing.T) {
	p := testPlanner(t)
	it, err := p.ToSchool("Shinjuku", MustParseClockTime("09:00"), Weekday)
	if err != nil {
		t.Fatalf("ToSchool failed: %v", err)
	}
	b, err := msgpack.Marshal(it)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var fields map[string]interface{}
	if err := msgpack.Unmarshal(b, &fields); err != nil {
		t.Fatalf("Unmarshal into a map failed: %v", err)
	}
	if got := fields["recommendedDepartureTime"]; got != "08:00" {
		t.Errorf("recommendedDepartureTime = %#v, want \"08:00\"", got)
	}
	if got := fields["finalArrivalTime"]; got != "09:00" {
		t.Errorf("finalArrivalTime = %#v, want \"09:00\"", got)
	}

	var back OutboundItinerary
	if err := msgpack.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.RecommendedDeparture != it.RecommendedDeparture || back.FinalArrival != it.FinalArrival {
		t.Errorf("decoded times %s/%s, want %s/%s", back.RecommendedDeparture, back.FinalArrival,
			it.RecommendedDeparture, it.FinalArrival)
	}
	if len(back.Steps) != 3 {
		t.Fatalf("decoded %d steps, want 3", len(back.Steps))
	}
	if back.Steps[1].Departure != nil {
		t.Errorf("walk leg decoded with departure %s", back.Steps[1].Departure)
	}
	if bus := back.Steps[2]; bus.Departure == nil || *bus.Departure != MustParseClockTime("08:45") {
		t.Errorf("bus leg departure = %v, want 08:45", bus.Departure)
	}

	var bad ClockTime
	if err := msgpack.Unmarshal([]byte{0x01}, &bad); !errors.Is(err, ErrClockParse) {
		t.Errorf("decoding an integer: err = %v, want ErrClockParse", err)
	}
}

func TestItineraryJSON(t *testing.T) {
	p := testPlanner(t)
	it, err := p.ToSchool("Shinjuku", MustParseClockTime("09:00"), Weekday)
	if err != nil {
		t.Fatalf("ToSchool failed: %v", err)
	}
	b, err := json.Marshal(it)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(b)
	for _, want := range []string{
		`"recommendedDepartureTime":"08:00"`,
		`"finalArrivalTime":"09:00"`,
		`"type":"WALK"`,
		`"departureTime":"08:45"`,
		`"realtime":{"status":"normal","delayMinutes":0,"live":false}`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
}
