package registry

import "errors"

var (
	ErrNotFound         = errors.New("registry: identity is not registered")
	ErrInvalidChannel   = errors.New("registry: unknown channel")
	ErrInvalidIdentity  = errors.New("registry: identity is required")
	ErrInvalidHandle    = errors.New("registry: connection handle is required")
	ErrStoreUnavailable = errors.New("registry: store unavailable")
	ErrNilStore         = errors.New("registry: store is required")
)
