package transport

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StatusError is returned when the final response was not 2xx. Body holds the
// upstream's JSON error document.
type StatusError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *StatusError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("upstream status %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Message extracts an explicit message from the error body, or "" when none
// of the known shapes match.
func (e *StatusError) Message() string {
	return messageFromBody(e.Body)
}

// MalformedBodyError is returned when an upstream body is not valid JSON.
type MalformedBodyError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *MalformedBodyError) Error() string {
	return fmt.Sprintf("malformed upstream body (status %d): %v", e.StatusCode, e.Err)
}

func (e *MalformedBodyError) Unwrap() error { return e.Err }

// messageFromBody understands the error shapes returned by the mirror node
// (_status.messages[].message) and the primary API (message, error.message,
// error as string).
func messageFromBody(body json.RawMessage) string {
	var doc struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
		Status  struct {
			Messages []struct {
				Message string `json:"message"`
			} `json:"messages"`
		} `json:"_status"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	if doc.Message != "" {
		return doc.Message
	}
	if len(doc.Error) > 0 {
		var s string
		if err := json.Unmarshal(doc.Error, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(doc.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if len(doc.Status.Messages) > 0 {
		return doc.Status.Messages[0].Message
	}
	return ""
}
