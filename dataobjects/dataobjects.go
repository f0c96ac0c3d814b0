package dataobjects

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var sdb sq.StatementBuilderType

//go:embed schema
var schemaFS embed.FS

// ErrNotFound is returned (wrapped) when a requested object does not exist
var ErrNotFound = errors.New("not found")

func init() {
	sdb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// UsePlaceholderFormat changes the placeholder format of generated queries.
// PostgreSQL uses sq.Dollar, SQLite uses sq.Question.
func UsePlaceholderFormat(format sq.PlaceholderFormat) {
	sdb = sq.StatementBuilder.PlaceholderFormat(format)
}

// PlaceholderFormatForDriver returns the placeholder format suited to a database/sql driver name
func PlaceholderFormatForDriver(driverName string) sq.PlaceholderFormat {
	if driverName == "sqlite" || driverName == "sqlite3" {
		return sq.Question
	}
	return sq.Dollar
}

// EnsureSchema creates the tables and indexes that do not exist yet
func EnsureSchema(db *sqlx.DB) error {
	name := "postgres"
	if PlaceholderFormatForDriver(db.DriverName()) == sq.Question {
		name = "sqlite"
	}
	schema, err := schemaFS.ReadFile("schema/" + name + ".sql")
	if err != nil {
		return fmt.Errorf("EnsureSchema: %s", err)
	}
	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("EnsureSchema: %s", err)
		}
	}
	return nil
}

func getCacheKey(objtype string, other ...interface{}) string {
	elem := make([]string, len(other))
	for i, e := range other {
		elem[i] = fmt.Sprint(e)
	}
	return strings.Join(append([]string{"do", objtype}, elem...), "-")
}

func notFound(objtype, id string) error {
	return fmt.Errorf("%s %s %w", objtype, id, ErrNotFound)
}
