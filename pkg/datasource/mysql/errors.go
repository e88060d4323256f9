package mysql

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the engine branches on.
const (
	errSyntax           = 1064 // ER_PARSE_ERROR
	errQueryInterrupted = 1317 // ER_QUERY_INTERRUPTED
	errExecTimeExceeded = 3024 // ER_QUERY_TIMEOUT
)

// IsSyntaxError reports whether err is a MySQL parse error.
func (a *Adapter) IsSyntaxError(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errSyntax
}

// IsTimeoutError reports whether err is a timeout or interruption.
func (a *Adapter) IsTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == errQueryInterrupted || myErr.Number == errExecTimeExceeded
}

// TimeoutBehavior describes what the server does when the timeout fires.
func (a *Adapter) TimeoutBehavior() string {
	return "the driver interrupts the query when the timeout expires"
}
