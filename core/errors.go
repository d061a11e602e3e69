package core

import "errors"

// The closed error taxonomy for the search core. Callers match with
// errors.Is; every error a public operation returns wraps exactly one of
// these.
var (
	// ErrQueryTooLong indicates a query string over the 1000-character limit.
	ErrQueryTooLong = errors.New("query too long")

	// ErrMalformedFilter indicates an unrecognized date range or an invalid
	// custom date in a filter spec.
	ErrMalformedFilter = errors.New("malformed filter")

	// ErrMalformedID indicates a vector document ID that parses as neither
	// an article ID nor a chunk ID.
	ErrMalformedID = errors.New("malformed document id")

	// ErrIndexUnavailable indicates the vector index could not serve the
	// request.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrStoreUnavailable indicates the article store could not serve the
	// request.
	ErrStoreUnavailable = errors.New("article store unavailable")

	// ErrIndexStoreMismatch indicates a candidate returned by the vector
	// index with no corresponding article row. Mismatched candidates are
	// logged and dropped; the error never reaches callers.
	ErrIndexStoreMismatch = errors.New("index/store mismatch")

	// ErrTimeout indicates a query exceeded its hard deadline.
	ErrTimeout = errors.New("query timed out")

	// ErrOverloaded indicates the query worker pool's queue is full.
	ErrOverloaded = errors.New("search engine overloaded")
)
