package session

import "errors"

var (
	ErrNotFound          = errors.New("session: not found")
	ErrInvalidID         = errors.New("session: id is required")
	ErrInvalidTransition = errors.New("session: invalid status transition")
	ErrEmptyMessage      = errors.New("session: message text is required")
	ErrInvalidSender     = errors.New("session: unknown message sender")
	ErrNilStore          = errors.New("session: store is required")
	ErrStoreFailure      = errors.New("session: store operation failed")
)
