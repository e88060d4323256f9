package mssql

import (
	"context"
	"errors"

	mssqldb "github.com/microsoft/go-mssqldb"
)

// SQL Server error numbers the engine branches on.
const (
	errSyntax        = 102 // Incorrect syntax near '%.*ls'
	errSyntaxKeyword = 156 // Incorrect syntax near the keyword '%.*ls'
)

// IsSyntaxError reports whether err is a T-SQL syntax error.
func (a *Adapter) IsSyntaxError(err error) bool {
	var sqlErr mssqldb.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.Number == errSyntax || sqlErr.Number == errSyntaxKeyword
}

// IsTimeoutError reports whether err is a timeout or cancellation.
func (a *Adapter) IsTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// TimeoutBehavior describes what happens when the timeout fires.
func (a *Adapter) TimeoutBehavior() string {
	return "the driver abandons the query when the timeout expires; the server may keep running it briefly"
}
