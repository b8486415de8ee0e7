package domain

import "errors"

// Error classes shared across packages. Concrete errors wrap one of these so
// the transport layer can map them without knowing every producer.
var (
	ErrNetworkFailure    = errors.New("network failure")
	ErrDataShapeMismatch = errors.New("unexpected data shape")
	ErrBusinessRule      = errors.New("business rule violation")
	ErrTimeout           = errors.New("timeout")
)
