// Package calendar exports a student's timetable and exams as an iCalendar feed
package calendar

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/transit"
)

// DefaultWeeks is how many weeks of classes are exported when not specified
const DefaultWeeks = 8

// Options controls what goes into the exported calendar
type Options struct {
	Name     string
	Location *time.Location
	// From is the first day exported; classes before it are left out
	From  time.Time
	Weeks int
	// Planner and HomeStation, when set, add a "leave home" event before the
	// first class of every day
	Planner     *transit.Planner
	HomeStation string
}

// Export writes the weekly courses, repeated for the configured number of
// weeks, and the exams that have not ended yet, as an iCalendar document
func Export(w io.Writer, courses []*dataobjects.Course, exams []*dataobjects.Exam, opts Options) error {
	if opts.Location == nil {
		return errors.New("calendar: no time zone")
	}
	if opts.Weeks <= 0 {
		opts.Weeks = DefaultWeeks
	}
	if opts.Name == "" {
		opts.Name = "Timetable"
	}
	now := time.Now()
	from := opts.From.In(opts.Location)
	firstDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, opts.Location)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//campusplanner//timetable//EN")
	cal.SetXWRCalName(opts.Name)
	cal.SetXWRTimezone(opts.Location.String())

	byWeekday := make(map[time.Weekday][]*dataobjects.Course)
	for _, course := range courses {
		if course.Validate() != nil {
			continue
		}
		byWeekday[course.Weekday] = append(byWeekday[course.Weekday], course)
	}

	for i := 0; i < opts.Weeks*7; i++ {
		day := firstDay.AddDate(0, 0, i)
		dayCourses := byWeekday[day.Weekday()]
		if len(dayCourses) == 0 {
			continue
		}
		var earliest *dataobjects.Course
		for _, course := range dayCourses {
			span := course.Span(day)
			event := cal.AddEvent(fmt.Sprintf("%s-%s@campusplanner", course.ID, day.Format("20060102")))
			event.SetDtStampTime(now)
			event.SetStartAt(span.Start())
			event.SetEndAt(span.End())
			event.SetSummary(courseTitle(course))
			if course.Room != "" {
				event.SetLocation(course.Room)
			}
			if course.Instructor != "" {
				event.SetDescription("Instructor: " + course.Instructor)
			}
			if earliest == nil || course.Start < earliest.Start {
				earliest = course
			}
		}
		if opts.Planner != nil && opts.HomeStation != "" {
			addCommute(cal, opts, day, earliest, now)
		}
	}

	for _, exam := range exams {
		if exam.End().Before(from) {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("exam-%s@campusplanner", exam.ID))
		event.SetDtStampTime(now)
		event.SetStartAt(exam.Start)
		event.SetEndAt(exam.End())
		event.SetSummary("Exam: " + exam.Title)
		if exam.Location != "" {
			event.SetLocation(exam.Location)
		}
	}

	return cal.SerializeTo(w)
}

func addCommute(cal *ics.Calendar, opts Options, day time.Time, course *dataobjects.Course, now time.Time) {
	deadline, err := transit.ParseClockTime(course.Start)
	if err != nil {
		return
	}
	itinerary, err := opts.Planner.ToSchool(opts.HomeStation, deadline, transit.DayTypeFor(day, opts.Planner.Holidays))
	if err != nil {
		// days without a suitable connection simply have no reminder
		return
	}
	steps := make([]string, 0, len(itinerary.Steps))
	for _, step := range itinerary.Steps {
		if step.Departure != nil {
			steps = append(steps, fmt.Sprintf("%s %s %s → %s", step.Departure, step.Line, step.From, step.To))
		} else {
			steps = append(steps, fmt.Sprintf("%s %s → %s (%d min)", step.Line, step.From, step.To, step.DurationMinutes))
		}
	}

	event := cal.AddEvent(fmt.Sprintf("commute-%s@campusplanner", day.Format("20060102")))
	event.SetDtStampTime(now)
	event.SetStartAt(itinerary.RecommendedDeparture.On(day))
	event.SetEndAt(itinerary.FinalArrival.On(day))
	event.SetSummary("Leave for campus")
	event.SetDescription(strings.Join(steps, "\n"))
}

func courseTitle(course *dataobjects.Course) string {
	if course.Code != "" {
		return course.Code + " " + course.Name
	}
	return course.Name
}
