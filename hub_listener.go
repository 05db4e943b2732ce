package authflow

import "sync"

// HubListenerName identifies the authenticator's hub subscription.
const HubListenerName = "authenticator-hub-handler"

// ListenToHub bridges auth channel events into a. The returned function
// removes the subscription. A second call for the same hub and
// authenticator subscribes nothing and returns a no-op.
func ListenToHub(hub Hub, a *Authenticator) (stop func()) {
	if hub == nil || a == nil {
		return func() {}
	}

	a.hubMu.Lock()
	if _, ok := a.hubs[hub]; ok {
		a.hubMu.Unlock()
		a.logger.Warn("authenticator already listening", "channel", AuthChannel, "name", HubListenerName)
		return func() {}
	}
	if a.hubs == nil {
		a.hubs = map[Hub]struct{}{}
	}
	a.hubs[hub] = struct{}{}
	a.hubMu.Unlock()

	unlisten := hub.Listen(AuthChannel, HubListenerName, a.handleHub)
	var once sync.Once
	return func() {
		once.Do(func() {
			unlisten()
			a.hubMu.Lock()
			delete(a.hubs, hub)
			a.hubMu.Unlock()
		})
	}
}

func (a *Authenticator) handleHub(c HubCapsule) {
	p := c.Payload
	switch p.Event {
	case HubEventSignedIn:
		if a.onSignIn != nil {
			a.onSignIn(p)
		}
	case HubEventSignInWithRedirect:
		a.sendFromHub(EventSignInWithRedirect, p.Event)
	case HubEventSignedOut:
		if a.onSignOut != nil {
			a.onSignOut()
		}
		a.sendFromHub(EventSignOut, p.Event)
	case HubEventTokenRefreshFailure:
		if HubErrorName(p.Data) == ErrorNameNetwork {
			a.logger.Debug("ignoring token refresh network failure")
			return
		}
		a.sendFromHub(EventSignOut, p.Event)
	}
}

func (a *Authenticator) sendFromHub(t EventType, hubEvent string) {
	if err := a.Send(Event{Type: t}); err != nil {
		a.logger.Warn("hub event not delivered", "hub_event", hubEvent, "error", err)
	}
}

// HubErrorName extracts an error name from hub payload data. It accepts an
// error, a {"error": ...} map, or a {"name": ...} map as produced by JSON
// transports.
func HubErrorName(data any) string {
	switch d := data.(type) {
	case nil:
		return ""
	case error:
		return ErrorName(d)
	case map[string]any:
		if e, ok := d["error"]; ok {
			return HubErrorName(e)
		}
		if n, ok := d["name"].(string); ok {
			return n
		}
	case map[string]string:
		if n, ok := d["name"]; ok {
			return n
		}
	}
	return ""
}

// HubErrorMessage extracts an error message from hub payload data.
func HubErrorMessage(data any) string {
	switch d := data.(type) {
	case error:
		return ErrorMessage(d)
	case map[string]any:
		if e, ok := d["error"]; ok {
			return HubErrorMessage(e)
		}
		if m, ok := d["message"].(string); ok {
			return m
		}
	case map[string]string:
		return d["message"]
	}
	return ""
}
