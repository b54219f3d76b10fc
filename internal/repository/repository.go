// Package repository holds the SQL repositories. Each repository accepts a
// database.DBTX so it can run against the pool or inside a transaction.
package repository

import (
	"database/sql"
	"errors"
	"time"

	"ieltsprep/internal/database"
)

// ErrDuplicate is returned when an insert hits a unique constraint
var ErrDuplicate = errors.New("duplicate record")

// utc normalizes a timestamp before it is written, so text-stored times compare correctly
func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := utc(*t)
	return &v
}

// getOne runs a single-row query, reporting no rows as found == false
func getOne(err error) (found bool, _ error) {
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// duplicateOr converts a unique violation into ErrDuplicate
func duplicateOr(db database.DBTX, err error) error {
	if err != nil && db.GetDialect().IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}
