// Package redishub fans hub traffic out over Redis pub/sub so authenticators
// running in separate processes observe each other's auth events.
package redishub

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-authflow"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the Redis channels used by the hub.
const DefaultPrefix = "authflow:hub"

var (
	ErrAlreadyStarted = goerrors.New("redishub: already started", goerrors.CategoryOperation).
		WithTextCode("REDISHUB_ALREADY_STARTED").
		WithCode(goerrors.CodeBadRequest)
	ErrClosed = goerrors.New("redishub: closed", goerrors.CategoryOperation).
		WithTextCode("REDISHUB_CLOSED").
		WithCode(goerrors.CodeBadRequest)
)

// Hub implements authflow.Hub. Dispatch delivers to local listeners right
// away and publishes to Redis; messages received from other origins are
// re-dispatched locally.
type Hub struct {
	client redis.UniversalClient
	local  *authflow.EventHub
	prefix string
	origin string
	logger authflow.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// Option customizes a Hub.
type Option func(*Hub)

// WithChannelPrefix overrides DefaultPrefix.
func WithChannelPrefix(prefix string) Option {
	return func(h *Hub) {
		if prefix = strings.TrimSuffix(prefix, ":"); prefix != "" {
			h.prefix = prefix
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(logger authflow.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithLocal shares an existing in-process hub.
func WithLocal(local *authflow.EventHub) Option {
	return func(h *Hub) {
		if local != nil {
			h.local = local
		}
	}
}

// WithOrigin fixes the origin id stamped on published messages.
func WithOrigin(origin string) Option {
	return func(h *Hub) {
		if origin != "" {
			h.origin = origin
		}
	}
}

// New creates a hub on client. Call Start before expecting remote traffic.
func New(client redis.UniversalClient, opts ...Option) *Hub {
	h := &Hub{
		client: client,
		prefix: DefaultPrefix,
		origin: uuid.NewString(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.logger == nil {
		h.logger = authflow.NopLogger()
	}
	if h.local == nil {
		h.local = authflow.NewEventHub(authflow.WithHubLogger(h.logger))
	}
	return h
}

// Origin reports the id this hub stamps on published messages.
func (h *Hub) Origin() string { return h.origin }

// Local returns the in-process hub remote messages are delivered to.
func (h *Hub) Local() *authflow.EventHub { return h.local }

// Start subscribes to every channel under the prefix and returns once Redis
// confirmed the subscription.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.pubsub != nil {
		return ErrAlreadyStarted
	}

	ps := h.client.PSubscribe(ctx, h.prefix+":*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h.pubsub = ps
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.consume(runCtx, ps.Channel(), h.done)

	h.logger.Info("redis hub started", "prefix", h.prefix, "origin", h.origin)
	return nil
}

// Close stops the subscription. Local delivery keeps working.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	ps, cancel, done := h.pubsub, h.cancel, h.done
	h.mu.Unlock()

	if ps == nil {
		return nil
	}
	cancel()
	err := ps.Close()
	<-done
	return err
}

// Listen implements authflow.Hub.
func (h *Hub) Listen(channel, name string, cb authflow.HubCallback) func() {
	return h.local.Listen(channel, name, cb)
}

// Dispatch implements authflow.Hub.
func (h *Hub) Dispatch(channel string, payload authflow.HubPayload) {
	h.local.Dispatch(channel, payload)

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return
	}

	msg, err := encode(h.origin, channel, payload)
	if err != nil {
		h.logger.Error("redis hub encode failed", "channel", channel, "event", payload.Event, "error", err)
		return
	}
	if err := h.client.Publish(context.Background(), h.redisChannel(channel), msg).Err(); err != nil {
		h.logger.Error("redis hub publish failed", "channel", channel, "event", payload.Event, "error", err)
	}
}

func (h *Hub) redisChannel(channel string) string {
	return h.prefix + ":" + channel
}

func (h *Hub) consume(ctx context.Context, msgs <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			h.deliver(m)
		}
	}
}

func (h *Hub) deliver(m *redis.Message) {
	env, err := decode([]byte(m.Payload))
	if err != nil {
		h.logger.Warn("redis hub dropped message", "channel", m.Channel, "error", err)
		return
	}
	if env.Origin == h.origin {
		return
	}
	if want := h.redisChannel(env.Channel); want != m.Channel {
		h.logger.Warn("redis hub channel mismatch", "channel", m.Channel, "capsule", env.Channel)
		return
	}
	h.local.Dispatch(env.Channel, env.payload())
}

var _ authflow.Hub = (*Hub)(nil)
