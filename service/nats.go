package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// DefaultAskSubject is the request subject the responder listens on.
	DefaultAskSubject = "cinegraph.ask"

	// DefaultQueueGroup load-balances requests across responder instances.
	DefaultQueueGroup = "cinegraph"

	// DefaultMaxInflight bounds concurrently answered requests per instance.
	DefaultMaxInflight = 8

	drainTimeout = 10 * time.Second
)

// Responder answers ask requests received over NATS request/reply.
type Responder struct {
	nc          *nats.Conn
	asker       Asker
	subject     string
	queue       string
	logger      *slog.Logger
	maxInflight int
	timeout     time.Duration

	mu     sync.Mutex
	sub    *nats.Subscription
	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithAskSubject overrides the request subject.
func WithAskSubject(subject string) ResponderOption {
	return func(r *Responder) {
		if subject != "" {
			r.subject = subject
		}
	}
}

// WithQueueGroup overrides the queue group.
func WithQueueGroup(queue string) ResponderOption {
	return func(r *Responder) {
		if queue != "" {
			r.queue = queue
		}
	}
}

// WithResponderLogger sets the logger.
func WithResponderLogger(l *slog.Logger) ResponderOption {
	return func(r *Responder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMaxInflight bounds concurrently answered requests.
func WithMaxInflight(n int) ResponderOption {
	return func(r *Responder) {
		if n > 0 {
			r.maxInflight = n
		}
	}
}

// WithRequestTimeout bounds each answered request. Zero leaves it to the
// pipeline.
func WithRequestTimeout(d time.Duration) ResponderOption {
	return func(r *Responder) { r.timeout = d }
}

// NewResponder creates a Responder on nc.
func NewResponder(nc *nats.Conn, asker Asker, opts ...ResponderOption) (*Responder, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS connection required")
	}
	if asker == nil {
		return nil, fmt.Errorf("asker required")
	}
	r := &Responder{
		nc:          nc,
		asker:       asker,
		subject:     DefaultAskSubject,
		queue:       DefaultQueueGroup,
		logger:      slog.Default(),
		maxInflight: DefaultMaxInflight,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start subscribes to the request subject. Requests are answered until Stop
// is called or ctx is cancelled.
func (r *Responder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return fmt.Errorf("responder already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.sem = make(chan struct{}, r.maxInflight)
	sub, err := r.nc.QueueSubscribe(r.subject, r.queue, r.handle)
	if err != nil {
		r.cancel()
		return fmt.Errorf("subscribe %s: %w", r.subject, err)
	}
	r.sub = sub
	r.logger.Info("NATS responder started",
		"subject", r.subject,
		"queue", r.queue,
		"max_inflight", r.maxInflight)
	return nil
}

// Stop drains the subscription and waits for in-flight requests.
func (r *Responder) Stop() error {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()
	if sub == nil {
		return nil
	}

	err := sub.Drain()
	if err == nil {
		// Drain is asynchronous; the subscription turns invalid once every
		// pending message has been dispatched.
		deadline := time.Now().Add(drainTimeout)
		for sub.IsValid() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
	}
	r.wg.Wait()
	r.cancel()
	r.logger.Info("NATS responder stopped", "subject", r.subject)
	if err != nil {
		return fmt.Errorf("drain %s: %w", r.subject, err)
	}
	return nil
}

// handle runs on the subscription's dispatch goroutine. Acquiring the
// semaphore here applies backpressure to the subscription.
func (r *Responder) handle(msg *nats.Msg) {
	if msg.Reply == "" {
		r.logger.Warn("Ignoring ask without reply subject", "subject", msg.Subject)
		return
	}
	select {
	case r.sem <- struct{}{}:
	case <-r.ctx.Done():
		return
	}
	r.wg.Add(1)
	go func() {
		defer func() {
			<-r.sem
			r.wg.Done()
		}()
		r.respond(msg)
	}()
}

func (r *Responder) respond(msg *nats.Msg) {
	req, err := decodeAskRequest(msg.Data)
	if err == nil {
		err = ValidateRequest(req)
	}
	if err != nil {
		r.reply(msg, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	answer, err := r.asker.Ask(ctx, req.Query)
	if err != nil {
		_, text := errorStatus(err)
		r.logger.Error("Ask failed", "subject", msg.Subject, "error", err)
		r.reply(msg, ErrorResponse{Error: text})
		return
	}
	r.reply(msg, newAskResponse(answer))
}

func (r *Responder) reply(msg *nats.Msg, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("Failed to marshal reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		r.logger.Warn("Failed to send reply", "reply", msg.Reply, "error", err)
	}
}

// decodeAskRequest accepts a JSON AskRequest or a bare question.
func decodeAskRequest(data []byte) (AskRequest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return AskRequest{Query: string(trimmed)}, nil
	}
	var req AskRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return AskRequest{}, fmt.Errorf("invalid JSON request: %w", err)
	}
	return req, nil
}
