package authflow

import "sync"

// AuthChannel is the hub channel identity lifecycle events travel on.
const AuthChannel = "auth"

// Hub event names.
const (
	HubEventSignedIn                  = "signedIn"
	HubEventSignedOut                 = "signedOut"
	HubEventSignInWithRedirect        = "signInWithRedirect"
	HubEventSignInWithRedirectFailure = "signInWithRedirect_failure"
	HubEventTokenRefresh              = "tokenRefresh"
	HubEventTokenRefreshFailure       = "tokenRefresh_failure"
	HubEventSignUp                    = "signUp"
	HubEventAutoSignIn                = "autoSignIn"
	HubEventAutoSignInFailure         = "autoSignIn_failure"
	HubEventSignInFailure             = "signIn_failure"
)

// HubPayload is the body of a hub message.
type HubPayload struct {
	Event   string `json:"event"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// HubCapsule wraps a payload with its channel.
type HubCapsule struct {
	Channel string     `json:"channel"`
	Payload HubPayload `json:"payload"`
}

// HubCallback receives capsules for a channel.
type HubCallback func(HubCapsule)

// Hub is a named pub/sub channel registry. Listen returns the function that
// removes that registration and no other.
type Hub interface {
	Listen(channel, name string, cb HubCallback) (stop func())
	Dispatch(channel string, payload HubPayload)
}

// HubOption customizes an EventHub.
type HubOption func(*EventHub)

// WithHubLogger overrides the hub logger.
func WithHubLogger(logger Logger) HubOption {
	return func(h *EventHub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

type hubListener struct {
	id   uint64
	name string
	cb   HubCallback
}

// EventHub is an in-process Hub. Dispatch is synchronous and delivers in
// registration order.
type EventHub struct {
	mu        sync.RWMutex
	listeners map[string][]hubListener
	nextID    uint64
	logger    Logger
}

// NewEventHub returns an empty in-process hub.
func NewEventHub(opts ...HubOption) *EventHub {
	h := &EventHub{listeners: map[string][]hubListener{}}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.logger == nil {
		h.logger = defaultLogger("hub")
	}
	return h
}

// Listen implements Hub.
func (h *EventHub) Listen(channel, name string, cb HubCallback) func() {
	if cb == nil {
		return func() {}
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if name != "" {
		for _, l := range h.listeners[channel] {
			if l.name == name {
				h.logger.Warn("hub listener name already registered", "channel", channel, "name", name)
				break
			}
		}
	}
	h.nextID++
	l := hubListener{id: h.nextID, name: name, cb: cb}
	h.listeners[channel] = append(h.listeners[channel], l)
	return h.remover(channel, l.id)
}

func (h *EventHub) remover(channel string, id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			ls := h.listeners[channel]
			for i, l := range ls {
				if l.id == id {
					h.listeners[channel] = append(ls[:i:i], ls[i+1:]...)
					break
				}
			}
			if len(h.listeners[channel]) == 0 {
				delete(h.listeners, channel)
			}
		})
	}
}

// Dispatch implements Hub.
func (h *EventHub) Dispatch(channel string, payload HubPayload) {
	h.mu.RLock()
	ls := append([]hubListener(nil), h.listeners[channel]...)
	h.mu.RUnlock()

	capsule := HubCapsule{Channel: channel, Payload: payload}
	for _, l := range ls {
		l.cb(capsule)
	}
}

// Listeners reports how many listeners are registered on channel.
func (h *EventHub) Listeners(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[channel])
}
