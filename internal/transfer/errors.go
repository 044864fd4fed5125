package transfer

import "errors"

var (
	// ErrInvalidSession is returned by Issue for an empty session id.
	ErrInvalidSession = errors.New("transfer: session id is required")
	// ErrInvalidToken is returned by Validate when token id or signature is empty.
	ErrInvalidToken = errors.New("transfer: token id and signature are required")
	// ErrNotFound covers every rejected token: unknown, expired, already used,
	// or carrying a bad signature. Callers cannot tell these apart.
	ErrNotFound = errors.New("transfer: invalid or expired token")
	// ErrMissingSecret means no signing secret is configured.
	ErrMissingSecret = errors.New("transfer: signing secret is not configured")
	// ErrStoreUnavailable wraps shared store failures.
	ErrStoreUnavailable = errors.New("transfer: token store unavailable")
	ErrNilStore         = errors.New("transfer: store is required")
)
