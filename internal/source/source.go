// Package source defines the client contract for the external data sources
// Cleargate screens against, plus the shared error taxonomy.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

// DefaultTimeout bounds a single source call when no timeout is configured.
const DefaultTimeout = 5 // seconds

// ErrKind classifies why a source call failed.
type ErrKind string

const (
	ErrTimeout      ErrKind = "timeout"
	ErrUnauthorized ErrKind = "unauthorized"
	ErrRateLimited  ErrKind = "rate_limited"
	ErrUpstream     ErrKind = "upstream"
	ErrParse        ErrKind = "parse"
)

// Error is a failure scoped to a single source call. The aggregator captures
// it into that source's outcome; it never aborts sibling calls.
type Error struct {
	Source models.SourceID
	Kind   ErrKind
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, e.Msg)
}

// Errorf builds a source-scoped error.
func Errorf(src models.SourceID, kind ErrKind, format string, args ...any) *Error {
	return &Error{Source: src, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// AsError extracts a *Error from err, wrapping unclassified errors as
// upstream failures so the outcome always carries a kind.
func AsError(src models.SourceID, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Errorf(src, ErrTimeout, "request timed out")
	}
	return Errorf(src, ErrUpstream, "%v", err)
}

// statusKind maps an HTTP status code to an error kind.
func statusKind(status int) ErrKind {
	switch status {
	case 401, 403:
		return ErrUnauthorized
	case 429:
		return ErrRateLimited
	default:
		return ErrUpstream
	}
}

// Client fetches candidate records from one external data source.
// Implementations are stateless between invocations and safe for concurrent
// use; zero results is a success with an empty slice.
type Client interface {
	// ID returns the source identifier stamped on every record.
	ID() models.SourceID

	// FetchCandidates queries the source, bounded by the client's own
	// timeout. limit is a hint the source may cap further.
	FetchCandidates(ctx context.Context, query string, mode models.SearchMode, limit int) ([]models.EntityRecord, error)
}
