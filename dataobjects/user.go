package dataobjects

import (
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dchest/uniuri"
	"github.com/gbl08ma/sqalx"
	uuid "github.com/satori/go.uuid"
	"github.com/thoas/go-funk"
)

// User is a student with an account
type User struct {
	ID            string
	GoogleSub     string
	Email         string
	DisplayName   string
	Picture       string
	SetupComplete bool
	HomeStation   string
	Locale        string
	FeedToken     string
	Joined        time.Time
}

// SupportedLocales are the locales dates can be displayed in
var SupportedLocales = []string{"en_US", "en_GB", "pt_PT", "pt_BR", "ja_JP", "de_DE", "fr_FR", "es_ES"}

// ErrUnsupportedLocale is returned when a user picks a locale not in SupportedLocales
var ErrUnsupportedLocale = errors.New("unsupported locale")

// GenerateFeedToken returns a securely randomly generated token for the
// calendar and deadline feeds, which are accessed without a session
func GenerateFeedToken() string {
	return uniuri.NewLenChars(32, []byte("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"))
}

// NewUser returns a new, not yet onboarded, user for the given Google account
func NewUser(googleSub, email, displayName string) (*User, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &User{
		ID:          id.String(),
		GoogleSub:   googleSub,
		Email:       email,
		DisplayName: displayName,
		Locale:      "en_US",
		FeedToken:   GenerateFeedToken(),
		Joined:      time.Now().UTC(),
	}, nil
}

// GetUsers returns a slice with all registered users
func GetUsers(node sqalx.Node) ([]*User, error) {
	return getUsersWithSelect(node, sdb.Select().OrderBy("joined ASC"))
}

// CountUsers returns the number of registered users and how many of them completed onboarding
func CountUsers(node sqalx.Node) (total int, onboarded int, err error) {
	users, err := GetUsers(node)
	if err != nil {
		return 0, 0, err
	}
	for _, user := range users {
		if user.SetupComplete {
			onboarded++
		}
	}
	return len(users), onboarded, nil
}

func getUsersWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*User, error) {
	users := []*User{}

	tx, err := node.Beginx()
	if err != nil {
		return users, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("app_user.id", "app_user.google_sub", "app_user.email",
		"app_user.display_name", "app_user.picture", "app_user.setup_complete",
		"app_user.home_station", "app_user.locale", "app_user.feed_token", "app_user.joined").
		From("app_user").
		RunWith(tx).Query()
	if err != nil {
		return users, fmt.Errorf("getUsersWithSelect: %s", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user User
		err := rows.Scan(
			&user.ID,
			&user.GoogleSub,
			&user.Email,
			&user.DisplayName,
			&user.Picture,
			&user.SetupComplete,
			&user.HomeStation,
			&user.Locale,
			&user.FeedToken,
			&user.Joined)
		if err != nil {
			return users, fmt.Errorf("getUsersWithSelect: %s", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return users, fmt.Errorf("getUsersWithSelect: %s", err)
	}
	return users, nil
}

// GetUser returns the user with the given ID
func GetUser(node sqalx.Node, id string) (*User, error) {
	if value, present := node.Load(getCacheKey("user", id)); present {
		return value.(*User), nil
	}
	users, err := getUsersWithSelect(node, sdb.Select().Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, notFound("user", id)
	}
	node.Store(getCacheKey("user", id), users[0])
	return users[0], nil
}

// GetUserByGoogleSub returns the user associated with a Google account subject identifier
func GetUserByGoogleSub(node sqalx.Node, sub string) (*User, error) {
	users, err := getUsersWithSelect(node, sdb.Select().Where(sq.Eq{"google_sub": sub}))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, notFound("user with Google subject", sub)
	}
	return users[0], nil
}

// GetUserByFeedToken returns the user owning the given feed token
func GetUserByFeedToken(node sqalx.Node, token string) (*User, error) {
	if token == "" {
		return nil, notFound("user with feed token", token)
	}
	users, err := getUsersWithSelect(node, sdb.Select().Where(sq.Eq{"feed_token": token}))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, notFound("user with feed token", token)
	}
	return users[0], nil
}

// Courses returns the courses of this user, ordered by weekday and start time
func (user *User) Courses(node sqalx.Node) ([]*Course, error) {
	return GetCoursesForUser(node, user.ID)
}

// Assignments returns all assignments of this user, ordered by due date
func (user *User) Assignments(node sqalx.Node) ([]*Assignment, error) {
	return GetAssignmentsForUser(node, user.ID)
}

// Exams returns all exams of this user, ordered by start time
func (user *User) Exams(node sqalx.Node) ([]*Exam, error) {
	return GetExamsForUser(node, user.ID)
}

// RegenerateFeedToken invalidates the current feed token and stores a new one
func (user *User) RegenerateFeedToken(node sqalx.Node) error {
	user.FeedToken = GenerateFeedToken()
	return user.Update(node)
}

// Update adds or updates the user
func (user *User) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = sdb.Insert("app_user").
		Columns("id", "google_sub", "email", "display_name", "picture", "setup_complete",
			"home_station", "locale", "feed_token", "joined").
		Values(user.ID, user.GoogleSub, user.Email, user.DisplayName, user.Picture, user.SetupComplete,
			user.HomeStation, user.Locale, user.FeedToken, user.Joined.UTC()).
		Suffix("ON CONFLICT (id) DO UPDATE SET google_sub = ?, email = ?, display_name = ?, picture = ?, "+
			"setup_complete = ?, home_station = ?, locale = ?, feed_token = ?",
			user.GoogleSub, user.Email, user.DisplayName, user.Picture,
			user.SetupComplete, user.HomeStation, user.Locale, user.FeedToken).
		RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("AddUser: %s", err)
	}
	tx.Delete(getCacheKey("user", user.ID))
	return tx.Commit()
}

// ApplyOnboarding saves the first-run preferences and the initial timetable
// of the user in one transaction. It does not mark onboarding as complete.
func (user *User) ApplyOnboarding(node sqalx.Node, homeStation, locale string, courses []*Course) error {
	if !funk.ContainsString(SupportedLocales, locale) {
		return fmt.Errorf("%w: %s", ErrUnsupportedLocale, locale)
	}

	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	user.HomeStation = homeStation
	user.Locale = locale
	if err := user.Update(tx); err != nil {
		return err
	}
	if err := ReplaceCoursesForUser(tx, user.ID, courses); err != nil {
		return err
	}
	return tx.Commit()
}

// SetSetupComplete changes only the onboarding completion flag of the user
func (user *User) SetSetupComplete(node sqalx.Node, complete bool) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := sdb.Update("app_user").
		Set("setup_complete", complete).
		Where(sq.Eq{"id": user.ID}).
		RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("SetSetupComplete: %s", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return notFound("user", user.ID)
	}
	user.SetupComplete = complete
	tx.Delete(getCacheKey("user", user.ID))
	return tx.Commit()
}

// Delete deletes the user together with all of their courses, assignments and exams
func (user *User) Delete(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"assignment", "exam", "course"} {
		_, err = sdb.Delete(table).
			Where(sq.Eq{"user_id": user.ID}).RunWith(tx).Exec()
		if err != nil {
			return fmt.Errorf("RemoveUser: %s", err)
		}
	}

	_, err = sdb.Delete("app_user").
		Where(sq.Eq{"id": user.ID}).RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("RemoveUser: %s", err)
	}
	tx.Delete(getCacheKey("user", user.ID))
	return tx.Commit()
}
