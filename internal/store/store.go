package store

import (
	"database/sql"
	"time"
)

// Store is the data access layer for job records and the domain slices the
// queue manager touches. It is the single source of truth shared by every
// orchestrator process; the claim UPDATE is the only synchronization point
// the global concurrency budget relies on.
type Store struct {
	db *DB
}

// NewStore creates a Store over an open DB.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// ReadDB exposes the read pool for ad-hoc queries (CLI inspection).
func (s *Store) ReadDB() *sql.DB {
	return s.db.Read
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func setNullableString(target **string, src sql.NullString) {
	if src.Valid {
		*target = &src.String
	}
}
