package nats

import (
	"fmt"
	"strings"
	"time"
)

const (
	// RequestSubject carries bridge.Request messages from hosts.
	RequestSubject = "bridge.requests"

	// RequestQueue load-balances requests across bridge workers.
	RequestQueue = "ledgerbridge"

	// ResponseSubjectPrefix prefixes per-correlation response subjects.
	ResponseSubjectPrefix = "bridge.responses"

	// StreamName is the name of the JetStream stream for responses.
	StreamName = "BRIDGE_RESPONSES"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = ResponseSubjectPrefix + ".*"

	// StreamRetention is how long responses are retained for late readers.
	StreamRetention = 24 * time.Hour
)

// ResponseSubject returns "bridge.responses.{correlationID}". The correlation
// id must be a single subject token.
func ResponseSubject(correlationID string) (string, error) {
	if correlationID == "" {
		return "", fmt.Errorf("correlation id is required")
	}
	if strings.ContainsAny(correlationID, ".*> \t\r\n") {
		return "", fmt.Errorf("invalid correlation id %q: must be a single subject token", correlationID)
	}
	return ResponseSubjectPrefix + "." + correlationID, nil
}
