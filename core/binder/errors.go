package binder

import "errors"

var (
	// ErrUnsupportedMediaType indicates a Content-Type other than JSON.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrFailedToParseJSON indicates the request body contains invalid JSON
	// or doesn't match the target struct schema.
	ErrFailedToParseJSON = errors.New("failed to parse JSON request body")

	// ErrBodyTooLarge indicates the body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("request body too large")
)
