package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brojonat/ledgerbridge/service/bridge"
	"github.com/nats-io/nats.go"
)

// requestConn is the request/reply surface of *nats.Conn.
type requestConn interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// Requester sends bridge requests over NATS request/reply.
type Requester struct {
	nc requestConn
}

// NewRequester creates a requester on nc. The caller owns nc.
func NewRequester(nc *nats.Conn) *Requester {
	return &Requester{nc: nc}
}

// Call sends req to RequestSubject and waits for the worker's reply. Bound
// the wait with ctx.
func (r *Requester) Call(ctx context.Context, req bridge.Request) (*bridge.RawResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	msg, err := r.nc.RequestWithContext(ctx, RequestSubject, data)
	if err != nil {
		return nil, fmt.Errorf("bridge request failed: %w", err)
	}

	var resp bridge.RawResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}
