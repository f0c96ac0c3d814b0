package resource

import (
	"net/http"
	"time"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/gbl08ma/sqalx"
	"github.com/ulule/deepcopier"
	"github.com/yarf-framework/yarf"
)

// Course composites resource
type Course struct {
	resource
}

type apiCourse struct {
	ID         string `msgpack:"id" json:"id"`
	Name       string `msgpack:"name" json:"name"`
	Code       string `msgpack:"code" json:"code"`
	Instructor string `msgpack:"instructor" json:"instructor"`
	Room       string `msgpack:"room" json:"room"`
	Weekday    int    `msgpack:"weekday" json:"weekday"`
	Start      string `msgpack:"start" json:"start"`
	End        string `msgpack:"end" json:"end"`
	Color      string `msgpack:"color" json:"color"`
}

type apiCourseClash struct {
	A apiCourse `msgpack:"a" json:"a"`
	B apiCourse `msgpack:"b" json:"b"`
}

func courseToAPI(course *dataobjects.Course) apiCourse {
	ac := apiCourse{}
	deepcopier.Copy(*course).To(&ac)
	ac.Weekday = int(course.Weekday)
	return ac
}

func (a apiCourse) toCourse(userID string) *dataobjects.Course {
	return &dataobjects.Course{
		ID:         a.ID,
		UserID:     userID,
		Name:       a.Name,
		Code:       a.Code,
		Instructor: a.Instructor,
		Room:       a.Room,
		Weekday:    time.Weekday(a.Weekday),
		Start:      a.Start,
		End:        a.End,
		Color:      a.Color,
	}
}

// WithNode associates a sqalx Node with this resource
func (r *Course) WithNode(node sqalx.Node) *Course {
	r.node = node
	return r
}

// WithAuthenticator associates an Authenticator with this resource
func (r *Course) WithAuthenticator(auth gate.Authenticator) *Course {
	r.auth = auth
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Course) Get(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	courses, err := user.Courses(r.node)
	if err != nil {
		return RenderInternalError(c, err)
	}

	apicourses := make([]apiCourse, len(courses))
	for i := range courses {
		apicourses[i] = courseToAPI(courses[i])
	}
	RenderData(c, apicourses)
	return nil
}

// Put serves HTTP PUT requests on this resource, replacing the whole timetable
func (r *Course) Put(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	var request []apiCourse
	if err := r.DecodeRequest(c, &request); err != nil {
		return RenderError(c, http.StatusBadRequest, err.Error())
	}

	courses := make([]*dataobjects.Course, len(request))
	for i := range request {
		courses[i] = request[i].toCourse(user.ID)
		if err := courses[i].Validate(); err != nil {
			return RenderError(c, http.StatusBadRequest, err.Error())
		}
	}

	err = dataobjects.ReplaceCoursesForUser(r.node, user.ID, courses)
	if err != nil {
		return RenderInternalError(c, err)
	}

	apicourses := make([]apiCourse, len(courses))
	for i := range courses {
		apicourses[i] = courseToAPI(courses[i])
	}
	RenderData(c, apicourses)
	return nil
}

// CourseClashes composites resource
type CourseClashes struct {
	resource
}

// WithNode associates a sqalx Node with this resource
func (r *CourseClashes) WithNode(node sqalx.Node) *CourseClashes {
	r.node = node
	return r
}

// WithAuthenticator associates an Authenticator with this resource
func (r *CourseClashes) WithAuthenticator(auth gate.Authenticator) *CourseClashes {
	r.auth = auth
	return r
}

// Get serves HTTP GET requests on this resource
func (r *CourseClashes) Get(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	courses, err := user.Courses(r.node)
	if err != nil {
		return RenderInternalError(c, err)
	}

	clashes := dataobjects.CourseClashes(courses)
	apiclashes := make([]apiCourseClash, len(clashes))
	for i, clash := range clashes {
		apiclashes[i] = apiCourseClash{
			A: courseToAPI(clash.A),
			B: courseToAPI(clash.B),
		}
	}
	RenderData(c, apiclashes)
	return nil
}
