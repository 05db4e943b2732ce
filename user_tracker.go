package authflow

import (
	"context"
	"errors"
	"sync"
)

// UserTrackerListenerName identifies the tracker's hub subscription.
const UserTrackerListenerName = "useAuth"

// UserState is the tracker's view of the signed in user.
type UserState struct {
	User      *AuthUser
	Err       error
	IsLoading bool
}

// CurrentUserTracker follows the signed in user from hub events without
// running the authenticator flows.
type CurrentUserTracker struct {
	hub      Hub
	handlers Handlers
	logger   Logger

	mu    sync.RWMutex
	state UserState
	ctx   context.Context
	stop  func()
	wg    sync.WaitGroup
}

// NewCurrentUserTracker builds a tracker. Call Start to fetch and listen.
func NewCurrentUserTracker(hub Hub, handlers Handlers, logger Logger) *CurrentUserTracker {
	if handlers == nil {
		handlers = UnconfiguredHandlers()
	}
	if logger == nil {
		logger = defaultLogger("user-tracker")
	}
	return &CurrentUserTracker{hub: hub, handlers: handlers, logger: logger}
}

// Start loads the current user and subscribes to the auth channel. The
// returned stop function unsubscribes and waits for pending refreshes.
func (t *CurrentUserTracker) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.ctx = ctx
	t.mu.Unlock()

	_ = t.Refresh(ctx)

	unlisten := func() {}
	if t.hub != nil {
		unlisten = t.hub.Listen(AuthChannel, UserTrackerListenerName, t.handle)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			unlisten()
			cancel()
			t.wg.Wait()
		})
	}
}

// State returns the tracked user state.
func (t *CurrentUserTracker) State() UserState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Refresh re-reads the current user from the handlers.
func (t *CurrentUserTracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	t.state.IsLoading = true
	t.mu.Unlock()

	user, err := t.handlers.GetCurrentUser(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.IsLoading = false
	if err != nil {
		t.state.User = nil
		t.state.Err = err
		return err
	}
	t.state.User = user
	t.state.Err = nil
	return nil
}

func (t *CurrentUserTracker) handle(c HubCapsule) {
	p := c.Payload
	switch p.Event {
	case HubEventSignedIn, HubEventSignUp, HubEventAutoSignIn:
		t.set(func(s *UserState) {
			s.User = userFromHub(p.Data)
			s.Err = nil
		})
	case HubEventSignedOut:
		t.set(func(s *UserState) { s.User = nil })
	case HubEventTokenRefresh:
		t.mu.RLock()
		ctx := t.ctx
		t.mu.RUnlock()
		if ctx == nil {
			return
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if err := t.Refresh(ctx); err != nil {
				t.logger.Debug("user refresh failed", "error", err)
			}
		}()
	case HubEventTokenRefreshFailure, HubEventSignInFailure:
		t.set(func(s *UserState) { s.Err = hubError(p) })
	case HubEventAutoSignInFailure:
		t.set(func(s *UserState) { s.Err = errors.New(p.Message) })
	}
}

func (t *CurrentUserTracker) set(fn func(*UserState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.state)
}

func userFromHub(data any) *AuthUser {
	switch u := data.(type) {
	case *AuthUser:
		if u == nil {
			return nil
		}
		cp := *u
		return &cp
	case AuthUser:
		return &u
	case map[string]any:
		user := &AuthUser{}
		user.Username, _ = u["username"].(string)
		user.UserID, _ = u["userId"].(string)
		user.LoginID, _ = u["loginId"].(string)
		return user
	}
	return nil
}

func hubError(p HubPayload) error {
	if err, ok := p.Data.(error); ok {
		return err
	}
	name := HubErrorName(p.Data)
	msg := HubErrorMessage(p.Data)
	if msg == "" {
		msg = p.Message
	}
	return &ProviderError{Name: name, Message: msg}
}
