package meridian

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned by the client and readers. Wrapped causes are
// preserved; test with errors.Is.
var (
	// ErrInvalidFilter indicates a malformed filter or query argument.
	ErrInvalidFilter = errors.New("meridian: invalid filter")

	// ErrUnknownFacility indicates a requested facility short name the
	// platform does not report for the authenticated user.
	ErrUnknownFacility = errors.New("meridian: unknown facility")

	// ErrAllFacilitiesFailed indicates that every facility in a query
	// failed. Per-facility details are logged by the reader.
	ErrAllFacilitiesFailed = errors.New("meridian: all facilities failed")

	// ErrQueryCancelled indicates the caller cancelled the query context.
	ErrQueryCancelled = errors.New("meridian: query cancelled")

	// ErrQueryTimeout indicates the query context deadline expired.
	ErrQueryTimeout = errors.New("meridian: query timed out")

	// ErrNoCredentials indicates no refresh token could be located.
	ErrNoCredentials = errors.New("meridian: no refresh token")

	// ErrAuth indicates the platform rejected the token exchange or
	// returned an unusable login response.
	ErrAuth = errors.New("meridian: authentication failed")
)

// FacilityError records a failure scoped to a single facility during a
// multi-facility query.
type FacilityError struct {
	Facility string // facility short name
	Op       string // operation that failed
	Err      error
}

func (e *FacilityError) Error() string {
	return fmt.Sprintf("meridian: facility %s: %s: %v", e.Facility, e.Op, e.Err)
}

func (e *FacilityError) Unwrap() error { return e.Err }

// APIError reports a non-success platform response.
type APIError struct {
	StatusCode int
	Status     string
	Body       string // response body, truncated
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("meridian: platform returned %s (request %s)", e.Status, e.RequestID)
	}
	return fmt.Sprintf("meridian: platform returned %s (request %s): %s", e.Status, e.RequestID, e.Body)
}

// queryErr maps a done context to the matching sentinel.
func queryErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrQueryTimeout, ctx.Err())
	}
	return fmt.Errorf("%w: %w", ErrQueryCancelled, ctx.Err())
}
