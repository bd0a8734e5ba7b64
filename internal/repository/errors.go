// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation engine to distinguish between different failure scenarios
// without depending on a particular storage driver.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a screening, reservation or user does
// not exist (or, for screenings, has been deleted).
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete a screening that still has active reservations.
var ErrConflict = errors.New("conflict")

// ErrDuplicateActiveSeat is returned when inserting a second active
// reservation for the same (screening, seat).  It is the storage-level
// backstop behind the in-memory seat ledger.
var ErrDuplicateActiveSeat = errors.New("seat already has an active reservation")

// ErrAlreadyCancelled is returned by MarkCancelled when the reservation
// was cancelled before.
var ErrAlreadyCancelled = errors.New("reservation already cancelled")

// ErrEmailExists is returned when registering an email twice.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is the MySQL error number for unique key violations.
const mysqlDuplicateEntry = 1062

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
