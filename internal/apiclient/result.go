package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
)

// Kind classifies a Result. Every failure kind maps to exactly one status class.
type Kind string

const (
	KindSuccess       Kind = "success"
	KindUnauthorized  Kind = "unauthorized"   // 401
	KindHTTPError     Kind = "http_error"     // other 4xx/5xx
	KindBusinessError Kind = "business_error" // 2xx with a failing business code
	KindTimeout       Kind = "timeout"        // 408, client deadline
	KindNetworkError  Kind = "network_error"  // 0, transport never completed
)

// StatusNetworkError is the status used when no HTTP response was received.
const StatusNetworkError = 0

// Meta carries the envelope metadata of a backend response.
type Meta struct {
	RequestID    string `json:"request_id,omitempty"`
	BusinessCode *int   `json:"business_code,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
}

// Result is the single success/failure contract every caller handles.
// Exactly one of Data or Error is meaningful, decided by OK.
type Result struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Status int             `json:"status"`
	Meta   Meta            `json:"meta"`

	ok bool
}

// Success builds a successful Result.
func Success(data json.RawMessage, status int, meta Meta) Result {
	return Result{Data: data, Status: status, Meta: meta, ok: true}
}

// Failure builds a failed Result.
func Failure(err string, status int, meta Meta) Result {
	return Result{Error: err, Status: status, Meta: meta}
}

// OK reports whether the call succeeded at both transport and business level.
func (r Result) OK() bool { return r.ok }

// Kind returns the taxonomy bucket of r.
func (r Result) Kind() Kind {
	switch {
	case r.ok:
		return KindSuccess
	case r.Status == StatusNetworkError:
		return KindNetworkError
	case r.Status == http.StatusRequestTimeout:
		return KindTimeout
	case r.Status == http.StatusUnauthorized:
		return KindUnauthorized
	case r.Status >= 200 && r.Status < 300:
		return KindBusinessError
	default:
		return KindHTTPError
	}
}

// Decode unmarshals the payload of a successful result into v.
func (r Result) Decode(v any) error {
	if !r.ok {
		return r.Err()
	}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return apperrors.NewInternalError("decode response payload", err).WithTraceID(r.Meta.RequestID)
	}
	return nil
}

// Err converts a failed result into an *AppError, nil on success.
func (r Result) Err() error {
	if r.ok {
		return nil
	}
	var err *apperrors.AppError
	switch r.Kind() {
	case KindNetworkError:
		err = apperrors.NewNetworkError(r.Error, nil)
	case KindTimeout:
		err = apperrors.NewTimeoutError(r.Error, nil)
	case KindUnauthorized:
		err = apperrors.NewUnauthorizedError(r.Error, nil)
	case KindBusinessError:
		code := 0
		if r.Meta.BusinessCode != nil {
			code = *r.Meta.BusinessCode
		}
		err = apperrors.NewBusinessError(code, r.Error)
	default:
		err = apperrors.NewHTTPError(r.Status, r.Error)
	}
	return err.WithTraceID(r.Meta.RequestID)
}

func (r Result) String() string {
	if r.ok {
		return fmt.Sprintf("success(status=%d, request_id=%s)", r.Status, r.Meta.RequestID)
	}
	return fmt.Sprintf("%s(status=%d, error=%q, request_id=%s)", r.Kind(), r.Status, r.Error, r.Meta.RequestID)
}
