package loaders

import "errors"

// Sentinel errors for the two defect classes a batch can produce. Both are
// attributed to every key of the offending batch and are never cached.
var (
	// ErrBatchContract is returned when a batch function violates its
	// contract: the result slice length does not match the key slice.
	ErrBatchContract = errors.New("batch function violated result contract")

	// ErrMalformedRow is returned when a graph row cannot be mapped to an
	// entity because a required column is missing or has the wrong type.
	ErrMalformedRow = errors.New("malformed graph row")
)
