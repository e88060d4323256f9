package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the engine branches on.
const (
	codeSyntaxError   = "42601"
	codeQueryCanceled = "57014"
)

// IsSyntaxError reports whether err is a PostgreSQL syntax error.
func (a *Adapter) IsSyntaxError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeSyntaxError
}

// IsTimeoutError reports whether err is a timeout or server-side
// cancellation.
func (a *Adapter) IsTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeQueryCanceled
}

// TimeoutBehavior describes what the server does when the timeout fires.
func (a *Adapter) TimeoutBehavior() string {
	return "the query is cancelled on the server when the timeout expires"
}
