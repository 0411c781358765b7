package bridge

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/brojonat/ledgerbridge/service/api"
	"github.com/brojonat/ledgerbridge/service/contract"
	"github.com/brojonat/ledgerbridge/service/keys"
	"github.com/brojonat/ledgerbridge/service/transport"
)

// Response is the single message delivered to the host for an operation.
// On success Error is nil; on failure Data is null.
type Response struct {
	CorrelationID string        `json:"correlationId"`
	Data          any           `json:"data"`
	Error         *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload is the normalized error shape sent to the host.
type ErrorPayload struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Emitter delivers responses to the host.
type Emitter interface {
	Emit(ctx context.Context, resp Response) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, resp Response) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, resp Response) error { return f(ctx, resp) }

// Error names reported to the host.
const (
	ErrorNameUpstream        = "UpstreamError"
	ErrorNameMalformed       = "MalformedResponseError"
	ErrorNameUnsupportedType = "UnsupportedTypeError"
	ErrorNameContractCall    = "ContractCallError"
	ErrorNameInvalidRequest  = "InvalidRequestError"
	ErrorNameConfiguration   = "ConfigurationError"
	ErrorNameInvalidKey      = "InvalidKeyError"
	ErrorNameGeneric         = "Error"
)

var (
	// ErrInvalidRequest marks malformed host input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnknownMethod is returned by Dispatch for unrecognized methods.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrNoLedger is returned for contract calls when no ledger SDK is wired.
	ErrNoLedger = errors.New("no ledger SDK configured")
)

// NormalizeError maps err to {name, reason}. The reason prefers an explicit
// message from an upstream JSON body, then the raw body, then err's text.
func NormalizeError(err error) ErrorPayload {
	if err == nil {
		return ErrorPayload{}
	}
	return ErrorPayload{Name: errorName(err), Reason: errorReason(err)}
}

func errorName(err error) string {
	var (
		callErr        *contract.CallError
		unsupportedErr *contract.UnsupportedTypeError
		statusErr      *transport.StatusError
		malformedErr   *transport.MalformedBodyError
	)
	switch {
	case errors.As(err, &callErr):
		return ErrorNameContractCall
	case errors.As(err, &unsupportedErr):
		return ErrorNameUnsupportedType
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownMethod), errors.Is(err, contract.ErrEmptyValue):
		return ErrorNameInvalidRequest
	case errors.Is(err, keys.ErrInvalidKey):
		return ErrorNameInvalidKey
	case errors.Is(err, api.ErrMissingCredentials), errors.Is(err, contract.ErrNoFeePayer), errors.Is(err, ErrNoLedger):
		return ErrorNameConfiguration
	case errors.As(err, &malformedErr):
		return ErrorNameMalformed
	case errors.As(err, &statusErr):
		return ErrorNameUpstream
	default:
		return ErrorNameGeneric
	}
}

func errorReason(err error) string {
	var statusErr *transport.StatusError
	if errors.As(err, &statusErr) {
		if msg := statusErr.Message(); msg != "" {
			return msg
		}
		if len(statusErr.Body) > 0 {
			return string(statusErr.Body)
		}
	}
	return err.Error()
}

// RawResponse is a Response as read back by a client, with Data left encoded.
type RawResponse struct {
	CorrelationID string          `json:"correlationId"`
	Data          json.RawMessage `json:"data"`
	Error         *ErrorPayload   `json:"error,omitempty"`
}
