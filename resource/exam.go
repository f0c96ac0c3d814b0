package resource

import (
	"errors"
	"net/http"
	"time"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/gbl08ma/sqalx"
	"github.com/yarf-framework/yarf"
)

// Exam composites resource
type Exam struct {
	resource
}

type apiExam struct {
	ID              string    `msgpack:"id" json:"id"`
	CourseID        string    `msgpack:"courseID" json:"courseID"`
	Title           string    `msgpack:"title" json:"title"`
	Location        string    `msgpack:"location" json:"location"`
	Start           time.Time `msgpack:"start" json:"start"`
	DurationMinutes int       `msgpack:"durationMinutes" json:"durationMinutes"`
}

func examToAPI(exam *dataobjects.Exam) apiExam {
	return apiExam{
		ID:              exam.ID,
		CourseID:        exam.CourseID,
		Title:           exam.Title,
		Location:        exam.Location,
		Start:           exam.Start,
		DurationMinutes: int(exam.Duration / time.Minute),
	}
}

// WithNode associates a sqalx Node with this resource
func (r *Exam) WithNode(node sqalx.Node) *Exam {
	r.node = node
	return r
}

// WithAuthenticator associates an Authenticator with this resource
func (r *Exam) WithAuthenticator(auth gate.Authenticator) *Exam {
	r.auth = auth
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Exam) Get(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	if c.Param("id") != "" {
		exam, err := getOwnedExam(r.node, user.ID, c.Param("id"))
		if errors.Is(err, dataobjects.ErrNotFound) {
			return RenderNotFound(c, "Exam")
		} else if err != nil {
			return RenderInternalError(c, err)
		}
		RenderData(c, examToAPI(exam))
		return nil
	}

	var exams []*dataobjects.Exam
	if c.Request.URL.Query().Get("upcoming") != "" {
		limit, err := parseLimit(c, 20)
		if err != nil {
			return RenderError(c, http.StatusBadRequest, err.Error())
		}
		exams, err = dataobjects.GetUpcomingExams(r.node, user.ID, time.Now(), limit)
		if err != nil {
			return RenderInternalError(c, err)
		}
	} else {
		exams, err = user.Exams(r.node)
		if err != nil {
			return RenderInternalError(c, err)
		}
	}

	apiexams := make([]apiExam, len(exams))
	for i := range exams {
		apiexams[i] = examToAPI(exams[i])
	}
	RenderData(c, apiexams)
	return nil
}

// Post serves HTTP POST requests on this resource, creating an exam
func (r *Exam) Post(c *yarf.Context) error {
	if c.Param("id") != "" {
		return RenderError(c, http.StatusMethodNotAllowed, "Use PUT to modify an exam")
	}
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	exam, err := dataobjects.NewExam(user.ID)
	if err != nil {
		return RenderInternalError(c, err)
	}
	return r.save(c, user.ID, exam, http.StatusCreated)
}

// Put serves HTTP PUT requests on this resource, replacing an exam
func (r *Exam) Put(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	exam, err := getOwnedExam(r.node, user.ID, c.Param("id"))
	if errors.Is(err, dataobjects.ErrNotFound) {
		return RenderNotFound(c, "Exam")
	} else if err != nil {
		return RenderInternalError(c, err)
	}
	return r.save(c, user.ID, exam, http.StatusOK)
}

func (r *Exam) save(c *yarf.Context, userID string, exam *dataobjects.Exam, status int) error {
	var request apiExam
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

	exam.CourseID = request.CourseID
	exam.Title = request.Title
	exam.Location = request.Location
	exam.Start = request.Start
	exam.Duration = time.Duration(request.DurationMinutes) * time.Minute
	if err := exam.Validate(); err != nil {
		return RenderError(c, http.StatusBadRequest, err.Error())
	}

	if err := exam.Update(tx); err != nil {
		return RenderInternalError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return RenderInternalError(c, err)
	}
	RenderDataWithStatus(c, status, examToAPI(exam))
	return nil
}

// Delete serves HTTP DELETE requests on this resource
func (r *Exam) Delete(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	exam, err := getOwnedExam(r.node, user.ID, c.Param("id"))
	if errors.Is(err, dataobjects.ErrNotFound) {
		return RenderNotFound(c, "Exam")
	} else if err != nil {
		return RenderInternalError(c, err)
	}
	if err := exam.Delete(r.node); err != nil {
		return RenderInternalError(c, err)
	}
	c.Response.WriteHeader(http.StatusNoContent)
	return nil
}

// getOwnedExam returns the exam with the given ID if it belongs to the user
func getOwnedExam(node sqalx.Node, userID, id string) (*dataobjects.Exam, error) {
	exam, err := dataobjects.GetExam(node, id)
	if err != nil {
		return nil, err
	}
	if exam.UserID != userID {
		return nil, dataobjects.ErrNotFound
	}
	return exam, nil
}
