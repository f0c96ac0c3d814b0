package website

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/campusplanner/campusplanner/metrics"
	"github.com/campusplanner/campusplanner/scraper"
	"github.com/campusplanner/campusplanner/transit"
	altmath "github.com/pkg/math"
	"github.com/thoas/go-funk"
)

func renderPageStatus(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := webtemplate.ExecuteTemplate(w, name, data); err != nil {
		config.Log.Println(err)
	}
}

// coursesFromForm reads the rows of a timetable form. Rows without a name
// are blank rows and are skipped.
func coursesFromForm(r *http.Request, userID string) ([]*dataobjects.Course, error) {
	names := r.PostForm["courseName"]
	field := func(name string, i int) string {
		values := r.PostForm[name]
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}

	courses := []*dataobjects.Course{}
	for i := range names {
		name := strings.TrimSpace(names[i])
		if name == "" {
			continue
		}
		weekday, err := strconv.Atoi(field("courseWeekday", i))
		if err != nil {
			return nil, fmt.Errorf("%s: pick a weekday", name)
		}
		course := &dataobjects.Course{
			ID:         field("courseID", i),
			UserID:     userID,
			Name:       name,
			Code:       field("courseCode", i),
			Instructor: field("courseInstructor", i),
			Room:       field("courseRoom", i),
			Weekday:    time.Weekday(weekday),
			Start:      field("courseStart", i),
			End:        field("courseEnd", i),
			Color:      field("courseColor", i),
		}
		if err := course.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %s", name, err)
		}
		courses = append(courses, course)
	}
	return courses, nil
}

func stations() []string {
	if config.Planner == nil {
		return []string{}
	}
	return config.Planner.Stations()
}

func onboardingPage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	p := struct {
		pageCommons
		Stations    []string
		HomeStation string
		Locale      string
	}{
		pageCommons: initPageCommons(r, "Welcome", user),
		Stations:    stations(),
		HomeStation: user.HomeStation,
		Locale:      user.Locale,
	}

	if r.Method != http.MethodPost {
		renderPage(w, "onboarding.html", p)
		return
	}

	if err := r.ParseForm(); err != nil {
		config.Log.Println(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	p.HomeStation = r.PostForm.Get("homeStation")
	p.Locale = r.PostForm.Get("locale")

	fail := func(message string) {
		p.Message = message
		p.IsError = true
		renderPageStatus(w, http.StatusBadRequest, "onboarding.html", p)
	}

	station := transit.CanonicalStation(p.HomeStation)
	if !funk.ContainsString(p.Stations, station) {
		fail("Pick the station you usually leave from.")
		return
	}
	courses, err := coursesFromForm(r, user.ID)
	if err != nil {
		fail(err.Error())
		return
	}

	err = user.ApplyOnboarding(config.Node, station, p.Locale, courses)
	if errors.Is(err, dataobjects.ErrUnsupportedLocale) {
		fail("Pick one of the available languages.")
		return
	} else if err != nil {
		internalError(w, err)
		return
	}

	if err := config.Store.SetOnboarded(r.Context(), user.ID); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, pagePaths[gate.PageDashboard], http.StatusSeeOther)
}

func dashboardPage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	now := time.Now()
	if config.Planner != nil {
		now = config.Planner.CurrentTime()
	}

	p := struct {
		pageCommons
		Now         time.Time
		Today       []*dataobjects.Course
		Clashes     int
		Assignments []*dataobjects.Assignment
		Exams       []*dataobjects.Exam
		Forecast    *scraper.Forecast
		News        []*scraper.NewsItem
		NextClass   *dataobjects.Course
		Outbound    *transit.OutboundItinerary
		Returns     []transit.ReturnItinerary
		Stations    []string
		CalendarURL string
		FeedURL     string
	}{
		pageCommons: initPageCommons(r, "Dashboard", user),
		Now:         now,
		Stations:    stations(),
		CalendarURL: BaseURL() + "/api/v1/calendar/" + user.FeedToken + ".ics",
		FeedURL:     BaseURL() + "/api/v1/feed/" + user.FeedToken,
	}

	tx, err := config.Node.Beginx()
	if err != nil {
		internalError(w, err)
		return
	}
	defer tx.Commit() // read-only tx

	courses, err := user.Courses(tx)
	if err != nil {
		internalError(w, err)
		return
	}
	p.Clashes = len(dataobjects.CourseClashes(courses))
	for _, course := range courses {
		if course.Weekday == now.Weekday() {
			p.Today = append(p.Today, course)
		}
	}

	p.Assignments, err = dataobjects.GetUpcomingAssignments(tx, user.ID, now, 5)
	if err != nil {
		internalError(w, err)
		return
	}
	p.Exams, err = dataobjects.GetUpcomingExams(tx, user.ID, now, 3)
	if err != nil {
		internalError(w, err)
		return
	}

	if config.Weather != nil {
		// a missing forecast just hides the widget
		p.Forecast, _ = config.Weather.Forecast()
	}
	if config.News != nil {
		p.News = config.News.Items()
		p.News = p.News[:altmath.Min(len(p.News), 5)]
	}

	nowClock := transit.ClockTimeOf(now)
	for _, course := range p.Today {
		start, err := transit.ParseClockTime(course.Start)
		if err == nil && nowClock.Before(start) {
			p.NextClass = course
			break
		}
	}
	if config.Planner != nil && user.HomeStation != "" {
		dayType := config.Planner.Today()
		if p.NextClass != nil {
			deadline, _ := transit.ParseClockTime(p.NextClass.Start)
			p.Outbound, err = config.Planner.ToSchool(user.HomeStation, deadline, dayType)
		} else {
			p.Returns, err = config.Planner.FromSchoolNow(user.HomeStation, dayType)
		}
		if err != nil && !errors.Is(err, transit.ErrNoRoute) {
			config.Log.Println(err)
		}
	}

	renderPage(w, "dashboard.html", p)
}

func timetablePage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	p := struct {
		pageCommons
		Courses []*dataobjects.Course
		Clashes []dataobjects.CourseClash
	}{
		pageCommons: initPageCommons(r, "Timetable", user),
	}
	status := http.StatusOK

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			config.Log.Println(err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		courses, err := coursesFromForm(r, user.ID)
		if err != nil {
			p.Message = err.Error()
			p.IsError = true
			status = http.StatusBadRequest
		} else if err := dataobjects.ReplaceCoursesForUser(config.Node, user.ID, courses); err != nil {
			internalError(w, err)
			return
		} else {
			p.Message = "Timetable saved"
		}
	}

	courses, err := user.Courses(config.Node)
	if err != nil {
		internalError(w, err)
		return
	}
	p.Courses = courses
	p.Clashes = dataobjects.CourseClashes(courses)

	renderPageStatus(w, status, "timetable.html", p)
}

func transitRoutePage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if config.Planner == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		config.Log.Println(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	p := struct {
		pageCommons
		Request  transit.RouteRequest
		Outbound *transit.OutboundItinerary
		Returns  []transit.ReturnItinerary
	}{
		pageCommons: initPageCommons(r, "Commute", user),
	}

	station := r.PostForm.Get("station")
	if station == "" {
		station = user.HomeStation
	}
	p.Request = transit.RouteRequest{
		Type:            r.PostForm.Get("type"),
		ArrivalDeadline: r.PostForm.Get("deadline"),
		DayType:         r.PostForm.Get("dayType"),
	}
	if p.Request.Type == transit.FromSchoolRequest {
		p.Request.DestinationStation = station
	} else {
		p.Request.OriginStation = station
	}

	direction := p.Request.Type
	if direction != transit.ToSchoolRequest && direction != transit.FromSchoolRequest {
		direction = "unknown"
	}

	status := http.StatusOK
	result, err := config.Planner.Plan(p.Request)
	switch {
	case err == nil:
		metrics.RouteQueries.WithLabelValues(direction, metrics.OutcomeOK).Inc()
		switch itinerary := result.(type) {
		case *transit.OutboundItinerary:
			p.Outbound = itinerary
		case []transit.ReturnItinerary:
			p.Returns = itinerary
		}
	case errors.Is(err, transit.ErrBadRequest):
		metrics.RouteQueries.WithLabelValues(direction, metrics.OutcomeBadRequest).Inc()
		status = http.StatusBadRequest
		p.Message = err.Error()
		p.IsError = true
	case errors.Is(err, transit.ErrNoRoute):
		metrics.RouteQueries.WithLabelValues(direction, metrics.OutcomeNoRoute).Inc()
		status = http.StatusNotFound
		p.Message = "No connection matches. Try a later deadline or another day."
		p.IsError = true
	default:
		metrics.RouteQueries.WithLabelValues(direction, metrics.OutcomeError).Inc()
		internalError(w, err)
		return
	}

	renderPageStatus(w, status, "route.html", p)
}
