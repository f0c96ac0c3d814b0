package dataobjects

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/SaidinWoT/timespan"
	"github.com/campusplanner/campusplanner/transit"
	"github.com/gbl08ma/sqalx"
	uuid "github.com/satori/go.uuid"
)

// Course is a weekly recurring class in a user's timetable
type Course struct {
	ID         string
	UserID     string
	Name       string
	Code       string
	Instructor string
	Room       string
	Weekday    time.Weekday
	// Start and End are "HH:MM" wall-clock times
	Start string
	End   string
	Color string
}

// CourseClash is a pair of courses whose times overlap
type CourseClash struct {
	A *Course
	B *Course
}

// Validate checks the course fields that the database does not constrain
func (course *Course) Validate() error {
	if strings.TrimSpace(course.Name) == "" {
		return errors.New("course name must not be empty")
	}
	if course.Weekday < time.Sunday || course.Weekday > time.Saturday {
		return fmt.Errorf("invalid weekday %d", course.Weekday)
	}
	start, err := transit.ParseClockTime(course.Start)
	if err != nil {
		return fmt.Errorf("course start: %s", err)
	}
	end, err := transit.ParseClockTime(course.End)
	if err != nil {
		return fmt.Errorf("course end: %s", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("course must end after it starts (%s-%s)", course.Start, course.End)
	}
	return nil
}

// Span returns the time span occupied by the course on the given day.
// The course must be valid.
func (course *Course) Span(day time.Time) timespan.Span {
	start := transit.MustParseClockTime(course.Start).On(day)
	end := transit.MustParseClockTime(course.End).On(day)
	return timespan.New(start, end.Sub(start))
}

// GetCoursesForUser returns the courses of a user ordered by weekday and start time
func GetCoursesForUser(node sqalx.Node, userID string) ([]*Course, error) {
	s := sdb.Select().
		Where(sq.Eq{"user_id": userID}).
		OrderBy("weekday ASC", "start_time ASC")
	return getCoursesWithSelect(node, s)
}

// GetCoursesForUserOnWeekday returns the courses a user has on the given weekday, ordered by start time
func GetCoursesForUserOnWeekday(node sqalx.Node, userID string, weekday time.Weekday) ([]*Course, error) {
	s := sdb.Select().
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"weekday": int(weekday)}).
		OrderBy("start_time ASC")
	return getCoursesWithSelect(node, s)
}

func getCoursesWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*Course, error) {
	courses := []*Course{}

	tx, err := node.Beginx()
	if err != nil {
		return courses, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("course.id", "course.user_id", "course.name", "course.code",
		"course.instructor", "course.room", "course.weekday", "course.start_time",
		"course.end_time", "course.color").
		From("course").
		RunWith(tx).Query()
	if err != nil {
		return courses, fmt.Errorf("getCoursesWithSelect: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		var course Course
		var weekday int
		err := rows.Scan(
			&course.ID,
			&course.UserID,
			&course.Name,
			&course.Code,
			&course.Instructor,
			&course.Room,
			&weekday,
			&course.Start,
			&course.End,
			&course.Color)
		if err != nil {
			return courses, fmt.Errorf("getCoursesWithSelect: %s", err)
		}
		course.Weekday = time.Weekday(weekday)
		courses = append(courses, &course)
	}
	if err := rows.Err(); err != nil {
		return courses, fmt.Errorf("getCoursesWithSelect: %s", err)
	}
	return courses, nil
}

// GetCourse returns the course with the given ID
func GetCourse(node sqalx.Node, id string) (*Course, error) {
	if value, present := node.Load(getCacheKey("course", id)); present {
		return value.(*Course), nil
	}
	courses, err := getCoursesWithSelect(node, sdb.Select().Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, notFound("course", id)
	}
	node.Store(getCacheKey("course", id), courses[0])
	return courses[0], nil
}

// ReplaceCoursesForUser atomically replaces the whole timetable of a user.
// Courses keep their ID when it names one of the user's current courses and
// get a new one otherwise. Assignments and exams that referenced a course
// that no longer exists are detached from it.
func ReplaceCoursesForUser(node sqalx.Node, userID string, courses []*Course) error {
	for i, course := range courses {
		if err := course.Validate(); err != nil {
			return fmt.Errorf("course %d: %w", i, err)
		}
	}

	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := GetCoursesForUser(tx, userID)
	if err != nil {
		return err
	}
	owned := make(map[string]bool)
	for _, course := range existing {
		owned[course.ID] = true
		tx.Delete(getCacheKey("course", course.ID))
	}

	_, err = sdb.Delete("course").
		Where(sq.Eq{"user_id": userID}).RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("ReplaceCoursesForUser: %s", err)
	}

	kept := []string{}
	for _, course := range courses {
		if !owned[course.ID] {
			id, err := uuid.NewV4()
			if err != nil {
				return err
			}
			course.ID = id.String()
		}
		course.UserID = userID
		err = course.insert(tx)
		if err != nil {
			return fmt.Errorf("ReplaceCoursesForUser: %s", err)
		}
		kept = append(kept, course.ID)
	}

	for _, table := range []string{"assignment", "exam"} {
		b := sdb.Update(table).
			Set("course_id", nil).
			Where(sq.Eq{"user_id": userID}).
			Where(sq.NotEq{"course_id": nil})
		if len(kept) > 0 {
			b = b.Where(sq.NotEq{"course_id": kept})
		}
		if _, err := b.RunWith(tx).Exec(); err != nil {
			return fmt.Errorf("ReplaceCoursesForUser: %s", err)
		}
	}
	return tx.Commit()
}

func (course *Course) insert(node sqalx.Node) error {
	_, err := sdb.Insert("course").
		Columns("id", "user_id", "name", "code", "instructor", "room", "weekday", "start_time", "end_time", "color").
		Values(course.ID, course.UserID, course.Name, course.Code, course.Instructor, course.Room,
			int(course.Weekday), course.Start, course.End, course.Color).
		RunWith(node).Exec()
	return err
}

// CourseClashes returns the pairs of courses that overlap in time on the same weekday.
// Invalid courses are ignored.
func CourseClashes(courses []*Course) []CourseClash {
	// any fixed week works, only the weekday matters
	weekStart := time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC) // a Sunday
	byDay := make(map[time.Weekday][]*Course)
	for _, course := range courses {
		if course.Validate() != nil {
			continue
		}
		byDay[course.Weekday] = append(byDay[course.Weekday], course)
	}

	clashes := []CourseClash{}
	for weekday := time.Sunday; weekday <= time.Saturday; weekday++ {
		day := weekStart.AddDate(0, 0, int(weekday))
		dayCourses := byDay[weekday]
		sort.SliceStable(dayCourses, func(i, j int) bool {
			return dayCourses[i].Start < dayCourses[j].Start
		})
		for i := range dayCourses {
			for j := i + 1; j < len(dayCourses); j++ {
				overlap, ok := dayCourses[i].Span(day).Intersection(dayCourses[j].Span(day))
				if ok && overlap.Duration() > 0 {
					clashes = append(clashes, CourseClash{A: dayCourses[i], B: dayCourses[j]})
				}
			}
		}
	}
	return clashes
}
