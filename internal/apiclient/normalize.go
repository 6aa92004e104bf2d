package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/anime-shed/kyc-console-go/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RawResponse is what the transport layer hands to Normalize.
type RawResponse struct {
	StatusCode int
	StatusText string
	Header     http.Header
	Body       []byte
}

// envelope is the canonical backend shape:
// {code, message, timestamp, request_id, data?} plus {error?, errors?} on failure.
type envelope struct {
	Code      json.RawMessage   `json:"code"`
	Message   string            `json:"message"`
	Timestamp json.RawMessage   `json:"timestamp"`
	RequestID string            `json:"request_id"`
	Data      json.RawMessage   `json:"data"`
	Error     json.RawMessage   `json:"error"`
	Detail    json.RawMessage   `json:"detail"`
	Errors    []json.RawMessage `json:"errors"`
}

// Normalize converts a transport response into a Result.
// onUnauthorized runs exactly once when the status is 401; the call is never retried.
func Normalize(raw RawResponse, onUnauthorized func()) Result {
	env, fields, parsed := parseEnvelope(raw.Body)
	meta := Meta{RequestID: raw.Header.Get(headerRequestID)}
	if parsed {
		if env.RequestID != "" {
			meta.RequestID = env.RequestID
		}
		meta.BusinessCode = parseCode(env.Code)
		meta.Timestamp = parseTimestamp(env.Timestamp)
	}

	if raw.StatusCode == http.StatusUnauthorized {
		if onUnauthorized != nil {
			onUnauthorized()
		}
		return Failure("Unauthorized", http.StatusUnauthorized, meta)
	}

	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		return Failure(httpErrorMessage(raw, env, parsed), raw.StatusCode, meta)
	}

	if parsed && meta.BusinessCode != nil && !businessSuccess(*meta.BusinessCode) {
		msg := firstNonEmpty(errorText(env.Error), errorText(env.Detail), env.Message)
		if msg == "" {
			msg = fmt.Sprintf("Business Error: %d", *meta.BusinessCode)
		}
		return Failure(msg, raw.StatusCode, meta)
	}

	if !parsed {
		if len(bytes.TrimSpace(raw.Body)) > 0 {
			logger.WithField("status", raw.StatusCode).Debug("non-JSON success body ignored")
		}
		return Success(nil, raw.StatusCode, meta)
	}

	if _, hasData := fields["data"]; hasData {
		return Success(env.Data, raw.StatusCode, meta)
	}
	return Success(legacyPayload(raw.Body, meta), raw.StatusCode, meta)
}

// legacyPayload is the compatibility shim for the older flat backend shape,
// where the envelope itself is the payload.
func legacyPayload(body []byte, meta Meta) json.RawMessage {
	logger.WithField("request_id", meta.RequestID).Debug("legacy flat response shape")
	return json.RawMessage(bytes.TrimSpace(body))
}

func businessSuccess(code int) bool {
	return code == 0 || code == http.StatusOK
}

func httpErrorMessage(raw RawResponse, env envelope, parsed bool) string {
	if parsed {
		if msg := firstNonEmpty(errorText(env.Error), errorText(env.Detail), env.Message); msg != "" {
			return msg
		}
	}
	if raw.StatusText != "" {
		return raw.StatusText
	}
	return fmt.Sprintf("HTTP Error: %d", raw.StatusCode)
}

// parseEnvelope decodes body when it is a JSON object. fields records which keys were present.
func parseEnvelope(body []byte) (envelope, map[string]json.RawMessage, bool) {
	var env envelope
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return env, nil, false
	}
	if trimmed[0] == '[' {
		// a bare array can only be a legacy payload
		return env, map[string]json.RawMessage{}, json.Valid(trimmed)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return env, nil, false
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		// a field has an unexpected type; keep what the raw map offers
		env = envelope{Data: fields["data"], Error: fields["error"], Detail: fields["detail"], Code: fields["code"]}
		_ = json.Unmarshal(fields["message"], &env.Message)
		_ = json.Unmarshal(fields["request_id"], &env.RequestID)
	}
	return env, fields, true
}

// errorText accepts string or structured error values.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if m := firstNonEmpty(obj.Detail, obj.Message); m != "" {
			return m
		}
	}
	return string(raw)
}

// parseCode accepts numeric or numeric-string codes.
func parseCode(raw json.RawMessage) *int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.Atoi(n.String()); err == nil {
			return &i
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return &i
		}
	}
	return nil
}

func parseTimestamp(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
