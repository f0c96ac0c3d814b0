package resource

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusplanner/campusplanner/calendar"
	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/transit"
	"github.com/gbl08ma/sqalx"
	"github.com/gorilla/feeds"
	"github.com/yarf-framework/yarf"
)

// Calendar composites resource
type Calendar struct {
	resource
	planner  *transit.Planner
	location *time.Location
}

// WithNode associates a sqalx Node with this resource
func (r *Calendar) WithNode(node sqalx.Node) *Calendar {
	r.node = node
	return r
}

// WithPlanner associates a Planner with this resource, used to add commute events
func (r *Calendar) WithPlanner(planner *transit.Planner) *Calendar {
	r.planner = planner
	return r
}

// WithLocation sets the time zone of the exported events
func (r *Calendar) WithLocation(location *time.Location) *Calendar {
	r.location = location
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Calendar) Get(c *yarf.Context) error {
	token := strings.TrimSuffix(c.Param("token"), ".ics")
	user, err := userByFeedToken(r.node, token)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderNotFound(c, "Calendar")
	}

	tx, err := r.Beginx()
	if err != nil {
		return RenderInternalError(c, err)
	}
	defer tx.Commit() // read-only tx

	courses, err := user.Courses(tx)
	if err != nil {
		return RenderInternalError(c, err)
	}
	exams, err := user.Exams(tx)
	if err != nil {
		return RenderInternalError(c, err)
	}

	opts := calendar.Options{
		Name:     user.DisplayName + " timetable",
		Location: r.location,
		From:     time.Now(),
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if r.planner != nil && user.HomeStation != "" {
		opts.Planner = r.planner
		opts.HomeStation = user.HomeStation
	}

	c.Response.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	c.Response.Header().Set("Content-Disposition", `inline; filename="timetable.ics"`)
	if err := calendar.Export(c.Response, courses, exams, opts); err != nil {
		// headers are already out at this point
		Log.Println(err)
	}
	return nil
}

// DeadlineFeed composites resource
type DeadlineFeed struct {
	resource
	websiteURL string
}

// WithNode associates a sqalx Node with this resource
func (r *DeadlineFeed) WithNode(node sqalx.Node) *DeadlineFeed {
	r.node = node
	return r
}

// WithWebsiteURL sets the base URL of the links in the feed
func (r *DeadlineFeed) WithWebsiteURL(url string) *DeadlineFeed {
	r.websiteURL = url
	return r
}

// Get serves HTTP GET requests on this resource
func (r *DeadlineFeed) Get(c *yarf.Context) error {
	user, err := userByFeedToken(r.node, c.Param("token"))
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderNotFound(c, "Feed")
	}

	feed, err := r.buildFeed(user, time.Now())
	if err != nil {
		return RenderInternalError(c, err)
	}
	atom, err := feed.ToAtom()
	if err != nil {
		return RenderInternalError(c, err)
	}
	c.Response.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	c.Response.Write([]byte(atom))
	return nil
}

func (r *DeadlineFeed) buildFeed(user *dataobjects.User, now time.Time) (*feeds.Feed, error) {
	tx, err := r.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Commit() // read-only tx

	assignments, err := dataobjects.GetUpcomingAssignments(tx, user.ID, now, 50)
	if err != nil {
		return nil, err
	}
	exams, err := dataobjects.GetUpcomingExams(tx, user.ID, now, 50)
	if err != nil {
		return nil, err
	}

	feed := &feeds.Feed{
		Title:       "Upcoming deadlines for " + user.DisplayName,
		Link:        &feeds.Link{Href: r.websiteURL + "/dashboard"},
		Description: "Assignments and exams that are still ahead",
		Author:      &feeds.Author{Name: user.DisplayName},
		Updated:     now,
	}
	feed.Items = []*feeds.Item{}

	for _, assignment := range assignments {
		if assignment.Done {
			continue
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          "assignment-" + assignment.ID,
			Title:       "Due: " + assignment.Title,
			Link:        &feeds.Link{Href: r.websiteURL + "/dashboard#assignment-" + assignment.ID},
			Description: fmt.Sprintf("Due %s. %s", assignment.Due.Format(time.RFC1123), assignment.Notes),
			Created:     assignment.Due,
		})
	}
	for _, exam := range exams {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          "exam-" + exam.ID,
			Title:       "Exam: " + exam.Title,
			Link:        &feeds.Link{Href: r.websiteURL + "/dashboard#exam-" + exam.ID},
			Description: fmt.Sprintf("Starts %s at %s", exam.Start.Format(time.RFC1123), exam.Location),
			Created:     exam.Start,
		})
	}
	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Created.Before(b.Created)
	})
	return feed, nil
}

// userByFeedToken returns nil when no user has the token
func userByFeedToken(node sqalx.Node, token string) (*dataobjects.User, error) {
	if token == "" {
		return nil, nil
	}
	user, err := dataobjects.GetUserByFeedToken(node, token)
	if errors.Is(err, dataobjects.ErrNotFound) {
		return nil, nil
	}
	return user, err
}
