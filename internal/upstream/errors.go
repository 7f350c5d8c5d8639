package upstream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"grab-relay/internal/core"
)

// UpstreamError describes a failed grab call. Payload holds the upstream's
// error body when one was returned.
type UpstreamError struct {
	Status  int
	Payload json.RawMessage
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return "upstream error status " + strconv.Itoa(e.Status) + ": " + e.Err.Error()
	}
	return "upstream error: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() []error {
	return []error{core.ErrUpstream, e.Err}
}

// Detail is the value reported to the caller: the upstream payload if
// present, otherwise the error description as a JSON string.
func (e *UpstreamError) Detail() json.RawMessage {
	if len(e.Payload) > 0 {
		return e.Payload
	}
	msg, _ := json.Marshal(e.Err.Error())
	return msg
}

func parseStatusError(status int, body []byte) *UpstreamError {
	err := fmt.Errorf("Request failed with status code %d", status)
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return &UpstreamError{Status: status, Err: err}
	}
	if json.Valid([]byte(trimmed)) {
		return &UpstreamError{Status: status, Payload: json.RawMessage(trimmed), Err: err}
	}
	payload, _ := json.Marshal(trimmed)
	return &UpstreamError{Status: status, Payload: payload, Err: err}
}
