package dataobjects

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
	uuid "github.com/satori/go.uuid"
)

// Assignment is a piece of homework with a due date
type Assignment struct {
	ID     string
	UserID string
	// CourseID is empty when the assignment is not tied to a course
	CourseID string
	Title    string
	Notes    string
	Due      time.Time
	Done     bool
}

// NewAssignment returns a new assignment with a fresh ID
func NewAssignment(userID string) (*Assignment, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &Assignment{
		ID:     id.String(),
		UserID: userID,
	}, nil
}

// Validate checks the assignment fields that the database does not constrain
func (assignment *Assignment) Validate() error {
	if strings.TrimSpace(assignment.Title) == "" {
		return errors.New("assignment title must not be empty")
	}
	if assignment.Due.IsZero() {
		return errors.New("assignment due date must be set")
	}
	return nil
}

// GetAssignmentsForUser returns all assignments of a user ordered by due date
func GetAssignmentsForUser(node sqalx.Node, userID string) ([]*Assignment, error) {
	s := sdb.Select().
		Where(sq.Eq{"user_id": userID}).
		OrderBy("due ASC")
	return getAssignmentsWithSelect(node, s)
}

// GetUpcomingAssignments returns up to limit assignments of a user that are
// not done and are due after the given time, ordered by due date
func GetUpcomingAssignments(node sqalx.Node, userID string, after time.Time, limit uint64) ([]*Assignment, error) {
	s := sdb.Select().
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"done": false}).
		Where(sq.GtOrEq{"due": after.UTC()}).
		OrderBy("due ASC").
		Limit(limit)
	return getAssignmentsWithSelect(node, s)
}

// GetAssignmentsForCourse returns the assignments associated with a course
func GetAssignmentsForCourse(node sqalx.Node, courseID string) ([]*Assignment, error) {
	s := sdb.Select().
		Where(sq.Eq{"course_id": courseID}).
		OrderBy("due ASC")
	return getAssignmentsWithSelect(node, s)
}

func getAssignmentsWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*Assignment, error) {
	assignments := []*Assignment{}

	tx, err := node.Beginx()
	if err != nil {
		return assignments, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("assignment.id", "assignment.user_id", "assignment.course_id",
		"assignment.title", "assignment.notes", "assignment.due", "assignment.done").
		From("assignment").
		RunWith(tx).Query()
	if err != nil {
		return assignments, fmt.Errorf("getAssignmentsWithSelect: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		var assignment Assignment
		var courseID sql.NullString
		err := rows.Scan(
			&assignment.ID,
			&assignment.UserID,
			&courseID,
			&assignment.Title,
			&assignment.Notes,
			&assignment.Due,
			&assignment.Done)
		if err != nil {
			return assignments, fmt.Errorf("getAssignmentsWithSelect: %s", err)
		}
		assignment.CourseID = courseID.String
		assignments = append(assignments, &assignment)
	}
	if err := rows.Err(); err != nil {
		return assignments, fmt.Errorf("getAssignmentsWithSelect: %s", err)
	}
	return assignments, nil
}

// GetAssignment returns the assignment with the given ID
func GetAssignment(node sqalx.Node, id string) (*Assignment, error) {
	if value, present := node.Load(getCacheKey("assignment", id)); present {
		return value.(*Assignment), nil
	}
	assignments, err := getAssignmentsWithSelect(node, sdb.Select().Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, notFound("assignment", id)
	}
	node.Store(getCacheKey("assignment", id), assignments[0])
	return assignments[0], nil
}

// Update adds or updates the assignment
func (assignment *Assignment) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	courseID := nullableID(assignment.CourseID)
	_, err = sdb.Insert("assignment").
		Columns("id", "user_id", "course_id", "title", "notes", "due", "done").
		Values(assignment.ID, assignment.UserID, courseID, assignment.Title, assignment.Notes,
			assignment.Due.UTC(), assignment.Done).
		Suffix("ON CONFLICT (id) DO UPDATE SET course_id = ?, title = ?, notes = ?, due = ?, done = ?",
			courseID, assignment.Title, assignment.Notes, assignment.Due.UTC(), assignment.Done).
		RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("AddAssignment: %s", err)
	}
	tx.Delete(getCacheKey("assignment", assignment.ID))
	return tx.Commit()
}

// Delete deletes the assignment
func (assignment *Assignment) Delete(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = sdb.Delete("assignment").
		Where(sq.Eq{"id": assignment.ID}).RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("RemoveAssignment: %s", err)
	}
	tx.Delete(getCacheKey("assignment", assignment.ID))
	return tx.Commit()
}

func nullableID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}
