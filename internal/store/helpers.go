package store

import (
	"database/sql"
	"errors"
	"time"
)

type scanner interface {
	Scan(dest ...any) error
}

// timeLayout keeps a fixed-width fraction so stored timestamps sort
// chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nowString() string {
	return formatTime(time.Now())
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func noRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
