package resource

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/gbl08ma/sqalx"
	"github.com/yarf-framework/yarf"
)

// Assignment composites resource
type Assignment struct {
	resource
}

type apiAssignment struct {
	ID       string    `msgpack:"id" json:"id"`
	CourseID string    `msgpack:"courseID" json:"courseID"`
	Title    string    `msgpack:"title" json:"title"`
	Notes    string    `msgpack:"notes" json:"notes"`
	Due      time.Time `msgpack:"due" json:"due"`
	Done     bool      `msgpack:"done" json:"done"`
}

func assignmentToAPI(assignment *dataobjects.Assignment) apiAssignment {
	return apiAssignment{
		ID:       assignment.ID,
		CourseID: assignment.CourseID,
		Title:    assignment.Title,
		Notes:    assignment.Notes,
		Due:      assignment.Due,
		Done:     assignment.Done,
	}
}

// WithNode associates a sqalx Node with this resource
func (r *Assignment) WithNode(node sqalx.Node) *Assignment {
	r.node = node
	return r
}

// WithAuthenticator associates an Authenticator with this resource
func (r *Assignment) WithAuthenticator(auth gate.Authenticator) *Assignment {
	r.auth = auth
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Assignment) Get(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	if c.Param("id") != "" {
		assignment, err := getOwnedAssignment(r.node, user.ID, c.Param("id"))
		if errors.Is(err, dataobjects.ErrNotFound) {
			return RenderNotFound(c, "Assignment")
		} else if err != nil {
			return RenderInternalError(c, err)
		}
		RenderData(c, assignmentToAPI(assignment))
		return nil
	}

	var assignments []*dataobjects.Assignment
	if c.Request.URL.Query().Get("upcoming") != "" {
		limit, err := parseLimit(c, 20)
		if err != nil {
			return RenderError(c, http.StatusBadRequest, err.Error())
		}
		assignments, err = dataobjects.GetUpcomingAssignments(r.node, user.ID, time.Now(), limit)
		if err != nil {
			return RenderInternalError(c, err)
		}
	} else {
		assignments, err = user.Assignments(r.node)
		if err != nil {
			return RenderInternalError(c, err)
		}
	}

	apiassignments := make([]apiAssignment, len(assignments))
	for i := range assignments {
		apiassignments[i] = assignmentToAPI(assignments[i])
	}
	RenderData(c, apiassignments)
	return nil
}

// Post serves HTTP POST requests on this resource, creating an assignment
func (r *Assignment) Post(c *yarf.Context) error {
	if c.Param("id") != "" {
		return RenderError(c, http.StatusMethodNotAllowed, "Use PUT to modify an assignment")
	}
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	assignment, err := dataobjects.NewAssignment(user.ID)
	if err != nil {
		return RenderInternalError(c, err)
	}
	return r.save(c, user.ID, assignment, http.StatusCreated)
}

// Put serves HTTP PUT requests on this resource, replacing an assignment
func (r *Assignment) Put(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	assignment, err := getOwnedAssignment(r.node, user.ID, c.Param("id"))
	if errors.Is(err, dataobjects.ErrNotFound) {
		return RenderNotFound(c, "Assignment")
	} else if err != nil {
		return RenderInternalError(c, err)
	}
	return r.save(c, user.ID, assignment, http.StatusOK)
}

func (r *Assignment) save(c *yarf.Context, userID string, assignment *dataobjects.Assignment, status int) error {
	var request apiAssignment
	if err := r.DecodeRequest(c, &request); err != nil {
		return RenderError(c, http.StatusBadRequest, err.Error())
	}

	tx, err := r.Beginx()
	if err != nil {
		return RenderInternalError(c, err)
	}
	defer tx.Rollback()

	if err := checkCourseOwnership(tx, userID, request.CourseID); err != nil {
		return RenderError(c, http.StatusBadRequest, err.Error())
	}

	assignment.CourseID = request.CourseID
	assignment.Title = request.Title
	assignment.Notes = request.Notes
	assignment.Due = request.Due
	assignment.Done = request.Done
	if err := assignment.Validate(); err != nil {
		return RenderError(c, http.StatusBadRequest, err.Error())
	}

	if err := assignment.Update(tx); err != nil {
		return RenderInternalError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return RenderInternalError(c, err)
	}
	RenderDataWithStatus(c, status, assignmentToAPI(assignment))
	return nil
}

// Delete serves HTTP DELETE requests on this resource
func (r *Assignment) Delete(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	assignment, err := getOwnedAssignment(r.node, user.ID, c.Param("id"))
	if errors.Is(err, dataobjects.ErrNotFound) {
		return RenderNotFound(c, "Assignment")
	} else if err != nil {
		return RenderInternalError(c, err)
	}
	if err := assignment.Delete(r.node); err != nil {
		return RenderInternalError(c, err)
	}
	c.Response.WriteHeader(http.StatusNoContent)
	return nil
}

// getOwnedAssignment returns the assignment with the given ID if it belongs
// to the user. Assignments of other users are reported as not found.
func getOwnedAssignment(node sqalx.Node, userID, id string) (*dataobjects.Assignment, error) {
	assignment, err := dataobjects.GetAssignment(node, id)
	if err != nil {
		return nil, err
	}
	if assignment.UserID != userID {
		return nil, dataobjects.ErrNotFound
	}
	return assignment, nil
}

func checkCourseOwnership(node sqalx.Node, userID, courseID string) error {
	if courseID == "" {
		return nil
	}
	course, err := dataobjects.GetCourse(node, courseID)
	if err != nil || course.UserID != userID {
		return errors.New("unknown course " + courseID)
	}
	return nil
}

func parseLimit(c *yarf.Context, def uint64) (uint64, error) {
	s := c.Request.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	limit, err := strconv.ParseUint(s, 10, 32)
	if err != nil || limit == 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return limit, nil
}
