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

// Exam is a scheduled exam
type Exam struct {
	ID       string
	UserID   string
	CourseID string
	Title    string
	Location string
	Start    time.Time
	Duration time.Duration
}

// NewExam returns a new exam with a fresh ID
func NewExam(userID string) (*Exam, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &Exam{
		ID:     id.String(),
		UserID: userID,
	}, nil
}

// End returns the time the exam finishes
func (exam *Exam) End() time.Time {
	return exam.Start.Add(exam.Duration)
}

// Validate checks the exam fields that the database does not constrain
func (exam *Exam) Validate() error {
	if strings.TrimSpace(exam.Title) == "" {
		return errors.New("exam title must not be empty")
	}
	if exam.Start.IsZero() {
		return errors.New("exam start must be set")
	}
	if exam.Duration <= 0 || exam.Duration%time.Minute != 0 {
		return fmt.Errorf("exam duration must be a positive number of minutes, got %s", exam.Duration)
	}
	return nil
}

// GetExamsForUser returns all exams of a user ordered by start time
func GetExamsForUser(node sqalx.Node, userID string) ([]*Exam, error) {
	s := sdb.Select().
		Where(sq.Eq{"user_id": userID}).
		OrderBy("start_time ASC")
	return getExamsWithSelect(node, s)
}

// GetUpcomingExams returns up to limit exams of a user that end after the
// given time, ordered by start time
func GetUpcomingExams(node sqalx.Node, userID string, after time.Time, limit uint64) ([]*Exam, error) {
	exams, err := GetExamsForUser(node, userID)
	if err != nil {
		return nil, err
	}
	upcoming := []*Exam{}
	for _, exam := range exams {
		if exam.End().After(after) {
			upcoming = append(upcoming, exam)
		}
		if uint64(len(upcoming)) == limit {
			break
		}
	}
	return upcoming, nil
}

func getExamsWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*Exam, error) {
	exams := []*Exam{}

	tx, err := node.Beginx()
	if err != nil {
		return exams, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("exam.id", "exam.user_id", "exam.course_id", "exam.title",
		"exam.location", "exam.start_time", "exam.duration_minutes").
		From("exam").
		RunWith(tx).Query()
	if err != nil {
		return exams, fmt.Errorf("getExamsWithSelect: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		var exam Exam
		var courseID sql.NullString
		var minutes int
		err := rows.Scan(
			&exam.ID,
			&exam.UserID,
			&courseID,
			&exam.Title,
			&exam.Location,
			&exam.Start,
			&minutes)
		if err != nil {
			return exams, fmt.Errorf("getExamsWithSelect: %s", err)
		}
		exam.CourseID = courseID.String
		exam.Duration = time.Duration(minutes) * time.Minute
		exams = append(exams, &exam)
	}
	if err := rows.Err(); err != nil {
		return exams, fmt.Errorf("getExamsWithSelect: %s", err)
	}
	return exams, nil
}

// GetExam returns the exam with the given ID
func GetExam(node sqalx.Node, id string) (*Exam, error) {
	if value, present := node.Load(getCacheKey("exam", id)); present {
		return value.(*Exam), nil
	}
	exams, err := getExamsWithSelect(node, sdb.Select().Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(exams) == 0 {
		return nil, notFound("exam", id)
	}
	node.Store(getCacheKey("exam", id), exams[0])
	return exams[0], nil
}

// Update adds or updates the exam
func (exam *Exam) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	courseID := nullableID(exam.CourseID)
	minutes := int(exam.Duration / time.Minute)
	_, err = sdb.Insert("exam").
		Columns("id", "user_id", "course_id", "title", "location", "start_time", "duration_minutes").
		Values(exam.ID, exam.UserID, courseID, exam.Title, exam.Location, exam.Start.UTC(), minutes).
		Suffix("ON CONFLICT (id) DO UPDATE SET course_id = ?, title = ?, location = ?, start_time = ?, duration_minutes = ?",
			courseID, exam.Title, exam.Location, exam.Start.UTC(), minutes).
		RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("AddExam: %s", err)
	}
	tx.Delete(getCacheKey("exam", exam.ID))
	return tx.Commit()
}

// Delete deletes the exam
func (exam *Exam) Delete(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = sdb.Delete("exam").
		Where(sq.Eq{"id": exam.ID}).RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("RemoveExam: %s", err)
	}
	tx.Delete(getCacheKey("exam", exam.ID))
	return tx.Commit()
}
