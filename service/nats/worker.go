package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/brojonat/ledgerbridge/service/bridge"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

// Dispatcher runs one bridge request and returns its emitted response.
type Dispatcher interface {
	Dispatch(ctx context.Context, req bridge.Request) bridge.Response
}

// Worker consumes bridge requests from NATS. Each request is dispatched on
// its own goroutine, bounded by the worker's concurrency. Requests sent with
// a reply subject also get the response as a direct reply.
type Worker struct {
	nc          *nats.Conn
	dispatcher  Dispatcher
	concurrency int
	logger      *slog.Logger

	sub    *nats.Subscription
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorker creates a worker. concurrency <= 0 means 10.
func NewWorker(nc *nats.Conn, dispatcher Dispatcher, concurrency int, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Worker{
		nc:          nc,
		dispatcher:  dispatcher,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start subscribes to RequestSubject in the RequestQueue group.
func (w *Worker) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.group = &errgroup.Group{}
	w.group.SetLimit(w.concurrency)

	sub, err := w.nc.QueueSubscribe(RequestSubject, RequestQueue, w.handleMessage)
	if err != nil {
		w.cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", RequestSubject, err)
	}
	w.sub = sub

	w.logger.Info("bridge worker started",
		"subject", RequestSubject,
		"queue", RequestQueue,
		"concurrency", w.concurrency,
	)
	return nil
}

// Stop drains the subscription and waits for in-flight requests.
func (w *Worker) Stop() error {
	var err error
	if w.sub != nil {
		err = w.sub.Drain()
	}
	if w.group != nil {
		w.group.Wait()
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.logger.Info("bridge worker stopped")
	return err
}

func (w *Worker) handleMessage(msg *nats.Msg) {
	w.group.Go(func() error {
		resp := w.process(w.ctx, msg.Data)
		if msg.Reply == "" {
			return nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			w.logger.Error("failed to marshal reply", "error", err)
			return nil
		}
		if err := msg.Respond(data); err != nil {
			w.logger.Warn("failed to send reply",
				"correlation_id", resp.CorrelationID,
				"error", err,
			)
		}
		return nil
	})
}

// process decodes and dispatches one request. Undecodable requests cannot be
// correlated, so their error response is only returned, never emitted.
func (w *Worker) process(ctx context.Context, data []byte) bridge.Response {
	var req bridge.Request
	if err := json.Unmarshal(data, &req); err != nil {
		w.logger.WarnContext(ctx, "discarding undecodable bridge request", "error", err)
		payload := bridge.NormalizeError(fmt.Errorf("%w: %v", bridge.ErrInvalidRequest, err))
		return bridge.Response{Error: &payload}
	}

	w.logger.DebugContext(ctx, "dispatching bridge request",
		"method", req.Method,
		"correlation_id", req.CorrelationID,
	)
	return w.dispatcher.Dispatch(ctx, req)
}
