package taxi

import "errors"

var (
	// ErrSourceUnavailable means raw trip or zone data could not be read.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSchemaMismatch means a required column is absent or has the wrong type.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrEmptyResult means the filter matched no trips.
	ErrEmptyResult = errors.New("empty result")
	// ErrInvalidFilter means the filter itself is malformed.
	ErrInvalidFilter = errors.New("invalid filter")
)
