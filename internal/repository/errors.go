package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntity is returned by Count for entity names that have no table.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
)

// DataAccessError reports that the data store could not be reached or a query failed.
type DataAccessError struct {
	Op     string
	Entity string
	Err    error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// IsDataAccess reports whether err carries a *DataAccessError.
func IsDataAccess(err error) bool {
	var dae *DataAccessError
	return errors.As(err, &dae)
}
