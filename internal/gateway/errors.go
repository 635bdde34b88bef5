package gateway

import "errors"

var (
	// ErrServerURLRequired is returned by Start when no task runtime URL
	// was configured.
	ErrServerURLRequired = errors.New("gateway: server url must be set before starting channels")

	// ErrInvalidSelector is returned for selector strings that cannot be
	// interpreted: empty, or "all" mixed with other tokens.
	ErrInvalidSelector = errors.New("gateway: invalid channel selector")
)
