package handoff

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/handoff/core/binder"
	"github.com/dmitrymomot/handoff/core/response"
	"github.com/dmitrymomot/handoff/internal/catalog"
	"github.com/dmitrymomot/handoff/internal/kv"
	"github.com/dmitrymomot/handoff/internal/realtime"
	"github.com/dmitrymomot/handoff/internal/registry"
	"github.com/dmitrymomot/handoff/internal/session"
	"github.com/dmitrymomot/handoff/internal/transfer"
)

var (
	ErrSessionNotFound = errors.New("handoff: session not found")
	ErrProductNotFound = errors.New("handoff: product not found")
	ErrSessionInactive = errors.New("handoff: session is no longer active")
	ErrInvalidInput    = errors.New("handoff: required field is missing")
	ErrMissingDeps     = errors.New("handoff: sessions, tokens, registry, parser, recommender and catalog are required")
)

// Messages shown to clients. Token failures share one message whatever the
// cause.
const (
	msgInvalidToken  = "invalid or expired token"
	msgNotConfigured = "session transfer is not available"
	msgUnavailable   = "service temporarily unavailable"
	msgInternal      = "something went wrong, please try again"
)

// Event names.
const (
	EventMessage            = "message"
	EventRequestTransfer    = "request-transfer"
	EventIdentify           = "identify"
	EventAIResponse         = "ai-response"
	EventTokenIssued        = "token-issued"
	EventIdentified         = "identified"
	EventSessionTransferred = "session-transferred"
	EventScan               = "scan"
	EventAssociateRequest   = "associate-request"
	EventSessionData        = "session-data"
	EventInvalidToken       = "invalid-token"
	EventAssociateRequested = "associate-requested"
	EventError              = realtime.EventError
)

// PublicError converts err to the error returned to clients over HTTP and
// the realtime channels.
func PublicError(err error) response.HTTPError {
	var httpErr response.HTTPError
	switch {
	case err == nil:
		return response.ErrInternalServerError
	case errors.As(err, &httpErr):
		return httpErr

	case errors.Is(err, transfer.ErrNotFound):
		return response.ErrNotFound.WithCode("invalid_token").WithMessage(msgInvalidToken)
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, session.ErrNotFound):
		return response.ErrNotFound.WithCode("session_not_found").WithMessage("session not found")
	case errors.Is(err, ErrProductNotFound), errors.Is(err, catalog.ErrNotFound):
		return response.ErrNotFound.WithCode("product_not_found").WithMessage("product not found")
	case errors.Is(err, registry.ErrNotFound):
		return response.ErrNotFound.WithMessage("not connected")

	case errors.Is(err, ErrSessionInactive), errors.Is(err, session.ErrInvalidTransition):
		return response.ErrConflict.WithCode("session_inactive").WithMessage("session is no longer active")

	case errors.Is(err, transfer.ErrInvalidToken):
		return response.ErrBadRequest.WithCode("invalid_token").WithMessage(msgInvalidToken)
	case errors.Is(err, session.ErrEmptyMessage):
		return response.ErrBadRequest.WithMessage("message text is required")
	case errors.Is(err, session.ErrInvalidSender):
		return response.ErrBadRequest.WithMessage("unknown message sender")
	case errors.Is(err, session.ErrInvalidID), errors.Is(err, transfer.ErrInvalidSession):
		return response.ErrBadRequest.WithMessage("session id is required")
	case errors.Is(err, registry.ErrInvalidChannel),
		errors.Is(err, registry.ErrInvalidIdentity),
		errors.Is(err, registry.ErrInvalidHandle):
		return response.ErrBadRequest.WithMessage("identity is required")
	case errors.Is(err, ErrInvalidInput):
		return response.ErrBadRequest.WithMessage("required field is missing")
	case errors.Is(err, realtime.ErrUnknownEvent):
		return response.ErrBadRequest.WithCode("unknown_event").WithMessage("unknown event")
	case errors.Is(err, realtime.ErrBadPayload), errors.Is(err, binder.ErrFailedToParseJSON):
		return response.ErrBadRequest.WithMessage("malformed message")
	case errors.Is(err, binder.ErrUnsupportedMediaType):
		return response.ErrUnsupportedMediaType
	case errors.Is(err, binder.ErrBodyTooLarge):
		return response.HTTPError{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    "request_too_large",
			Message: "request body too large",
		}

	case errors.Is(err, transfer.ErrMissingSecret):
		return response.ErrServiceUnavailable.WithCode("transfer_not_configured").WithMessage(msgNotConfigured)
	case errors.Is(err, transfer.ErrStoreUnavailable),
		errors.Is(err, registry.ErrStoreUnavailable),
		errors.Is(err, kv.ErrUnavailable),
		errors.Is(err, session.ErrStoreFailure),
		errors.Is(err, catalog.ErrStoreFailure):
		return response.ErrServiceUnavailable.WithMessage(msgUnavailable)
	}
	return response.ErrInternalServerError.WithMessage(msgInternal)
}

// encodeMobileError renders handler failures on the mobile channel.
func encodeMobileError(err error) (string, any) {
	return EventError, PublicError(err)
}

// encodeKioskError sends token failures as invalid-token and everything
// else as error.
func encodeKioskError(err error) (string, any) {
	if errors.Is(err, transfer.ErrNotFound) || errors.Is(err, transfer.ErrInvalidToken) {
		return EventInvalidToken, PublicError(err)
	}
	return EventError, PublicError(err)
}

// ErrorEncoder returns the realtime error encoder for channel.
func ErrorEncoder(ch registry.Channel) func(error) (string, any) {
	if ch == registry.Kiosk {
		return encodeKioskError
	}
	return encodeMobileError
}
