package authflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

var alice = &authflow.AuthUser{Username: "alice", UserID: "sub-alice"}

func unauthenticated() error {
	return authflow.NewProviderError(authflow.ErrorNameUserUnauthorized, "User needs to be authenticated to call this API.")
}

func waitFor(t *testing.T, a *authflow.Authenticator, desc string, pred func(authflow.Snapshot) bool) authflow.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	snap, err := a.WaitFor(ctx, pred)
	require.NoError(t, err, "waiting for %s, last state %q child %+v", desc, snap.State, snap.Child)
	return snap
}

// settledOn waits until route is shown and nothing is pending.
func settledOn(route authflow.Route) func(authflow.Snapshot) bool {
	return func(s authflow.Snapshot) bool {
		return authflow.RouteOf(s) == route && !s.HasTag(authflow.TagPending)
	}
}

func hasError(s authflow.Snapshot) bool {
	return authflow.NewFacade(s).ErrorMessage != ""
}

func startAuthenticator(t *testing.T, h authflow.Handlers, opts ...authflow.Option) *authflow.Authenticator {
	t.Helper()
	opts = append([]authflow.Option{authflow.WithLogger(authflow.NopLogger())}, opts...)
	a := authflow.New(h, opts...)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(a.Stop)
	return a
}

func TestAuthenticatorSignIn(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(nil, unauthenticated()).Once()
	h.On("SignIn", mock.Anything, authflow.SignInInput{Username: "alice", Password: "pw"}).
		Return(&authflow.SignInOutput{IsSignedIn: true, NextStep: authflow.SignInNextStep{SignInStep: authflow.StepDone}}, nil).Once()
	h.On("FetchUserAttributes", mock.Anything).Return(authflow.UserAttributes{}, nil).Once()
	h.On("GetCurrentUser", mock.Anything).Return(alice, nil).Once()

	sink := &MockActivitySink{}
	a := startAuthenticator(t, h, authflow.WithActivitySink(sink))

	waitFor(t, a, "sign in form", settledOn(authflow.RouteSignIn))
	require.NoError(t, a.HandleSubmit(authflow.EventData{"username": "alice", "password": "pw"}))

	snap := waitFor(t, a, "authenticated", settledOn(authflow.RouteAuthenticated))
	require.NotNil(t, snap.User)
	assert.Equal(t, "alice", snap.User.Username)

	f := a.Facade()
	assert.Equal(t, authflow.RouteAuthenticated, f.Route)
	assert.False(t, f.IsPending)
	assert.Equal(t, "alice", f.User.Username)

	assert.Contains(t, sink.Types(), authflow.ActivityEventFlowCompleted)
	assert.Contains(t, sink.Types(), authflow.ActivityEventAuthenticated)
	h.AssertExpectations(t)
}

func TestAuthenticatorStartsAuthenticated(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(alice, nil).Once()

	a := startAuthenticator(t, h)
	snap := waitFor(t, a, "authenticated", settledOn(authflow.RouteAuthenticated))
	assert.Equal(t, authflow.StateAuthenticatedIdle, snap.State)
	assert.True(t, snap.Matches(authflow.StateAuthenticated))
	h.AssertExpectations(t)
}

func TestAuthenticatorSurfacesErrors(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(nil, unauthenticated()).Once()
	h.On("SignIn", mock.Anything, mock.Anything).
		Return(nil, authflow.NewProviderError(authflow.ErrorNameNotAuthorized, "Incorrect username or password.")).Once()

	sink := &MockActivitySink{}
	a := startAuthenticator(t, h, authflow.WithActivitySink(sink))
	waitFor(t, a, "sign in form", settledOn(authflow.RouteSignIn))
	require.NoError(t, a.HandleSubmit(authflow.EventData{"username": "alice", "password": "bad"}))

	snap := waitFor(t, a, "error", hasError)
	f := authflow.NewFacade(snap)
	assert.Equal(t, authflow.RouteSignIn, f.Route)
	assert.Equal(t, "Incorrect username or password.", f.ErrorMessage)
	assert.Equal(t, "alice", f.Username)
	assert.False(t, f.IsPending)

	var failed []authflow.ActivityEvent
	for _, ev := range sink.Events() {
		if ev.EventType == authflow.ActivityEventOperationFailed {
			failed = append(failed, ev)
		}
	}
	require.Len(t, failed, 2)
	assert.Equal(t, "getCurrentUser", failed[0].Operation)
	assert.Equal(t, "signIn", failed[1].Operation)
	assert.Equal(t, authflow.ErrorNameNotAuthorized, failed[1].ErrorName)
	assert.Equal(t, authflow.FlowSignIn, failed[1].Flow)
}

func TestAuthenticatorWithoutHandlers(t *testing.T) {
	a := startAuthenticator(t, nil)
	waitFor(t, a, "sign in form", settledOn(authflow.RouteSignIn))

	require.NoError(t, a.HandleSubmit(authflow.EventData{"username": "alice"}))
	snap := waitFor(t, a, "error", hasError)
	assert.Equal(t, authflow.NoUserPoolMessage, authflow.NewFacade(snap).ErrorMessage)
}

func TestAuthenticatorInitialRoute(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(nil, unauthenticated())

	a := startAuthenticator(t, h, authflow.WithInitialRoute(authflow.RouteForgotPassword))
	snap := waitFor(t, a, "forgot password", settledOn(authflow.RouteForgotPassword))
	assert.Equal(t, authflow.RouteForgotPassword, snap.InitialRoute)

	b := startAuthenticator(t, h, authflow.WithInitialRoute(authflow.RouteConfirmSignUp))
	waitFor(t, b, "sign in fallback", settledOn(authflow.RouteSignIn))
}

func TestAuthenticatorHandlerOverrides(t *testing.T) {
	h := &MockHandlers{}
	a := startAuthenticator(t, h, authflow.WithHandlerOverrides(authflow.HandlerOverrides{
		GetCurrentUser: func(context.Context) (*authflow.AuthUser, error) {
			return alice, nil
		},
	}))

	waitFor(t, a, "authenticated", settledOn(authflow.RouteAuthenticated))
	h.AssertNotCalled(t, "GetCurrentUser", mock.Anything)
}

func TestAuthenticatorSetRoute(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(nil, unauthenticated())

	a := startAuthenticator(t, h)
	waitFor(t, a, "sign in form", settledOn(authflow.RouteSignIn))

	require.NoError(t, a.SetRoute(authflow.RouteSignUp))
	waitFor(t, a, "sign up form", settledOn(authflow.RouteSignUp))

	require.NoError(t, a.SetRoute(authflow.RouteSignIn))
	require.NoError(t, a.SetRoute(authflow.RouteForgotPassword))
	waitFor(t, a, "forgot password form", settledOn(authflow.RouteForgotPassword))

	err := a.SetRoute(authflow.RouteConfirmSignUp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, authflow.ErrInvalidRoute))
}

func TestAuthenticatorCancelsAbandonedCalls(t *testing.T) {
	cancelled := make(chan struct{})
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(nil, unauthenticated())
	h.On("SignIn", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
			close(cancelled)
		}).
		Return(nil, context.Canceled).Once()

	a := startAuthenticator(t, h)
	waitFor(t, a, "sign in form", settledOn(authflow.RouteSignIn))
	require.NoError(t, a.HandleSubmit(authflow.EventData{"username": "alice"}))
	waitFor(t, a, "pending", func(s authflow.Snapshot) bool { return s.HasTag(authflow.TagPending) })

	require.NoError(t, a.SetRoute(authflow.RouteSignUp))
	select {
	case <-cancelled:
	case <-time.After(waitTimeout):
		t.Fatal("abandoned sign in was not cancelled")
	}

	snap := waitFor(t, a, "sign up form", settledOn(authflow.RouteSignUp))
	assert.Empty(t, authflow.NewFacade(snap).ErrorMessage, "late results of a torn down flow are dropped")
}

func TestAuthenticatorLifecycleErrors(t *testing.T) {
	a := authflow.New(nil, authflow.WithLogger(authflow.NopLogger()))
	assert.ErrorIs(t, a.Send(authflow.Event{Type: authflow.EventSignIn}), authflow.ErrNotStarted)

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Start(context.Background()), "second start is a no-op")
	a.Stop()

	select {
	case <-a.Done():
	default:
		t.Fatal("done should be closed after Stop")
	}
	assert.ErrorIs(t, a.Send(authflow.Event{Type: authflow.EventSignIn}), authflow.ErrStopped)
	assert.ErrorIs(t, a.Start(context.Background()), authflow.ErrStopped)
	a.Stop()
}

func TestAuthenticatorStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := authflow.New(nil, authflow.WithLogger(authflow.NopLogger()))
	require.NoError(t, a.Start(ctx))
	cancel()

	select {
	case <-a.Done():
	case <-time.After(waitTimeout):
		t.Fatal("loop did not exit")
	}

	_, err := a.WaitFor(context.Background(), func(authflow.Snapshot) bool { return false })
	assert.ErrorIs(t, err, authflow.ErrStopped)
}

func TestAuthenticatorSubscribe(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(nil, unauthenticated())

	versions := make(chan uint64, 64)
	a := authflow.New(h, authflow.WithLogger(authflow.NopLogger()))
	unsubscribe := a.Subscribe(func(s authflow.Snapshot) { versions <- s.Version })
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(a.Stop)

	waitFor(t, a, "sign in form", settledOn(authflow.RouteSignIn))
	unsubscribe()

	var seen []uint64
	for len(versions) > 0 {
		seen = append(seen, <-versions)
	}
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
}

func TestAuthenticatorSignOutFailureStillSignsOut(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(alice, nil).Once()
	h.On("SignOut", mock.Anything, authflow.SignOutInput{}).
		Return(authflow.NewProviderError(authflow.ErrorNameNetwork, "offline")).Once()

	sink := &MockActivitySink{}
	a := startAuthenticator(t, h, authflow.WithActivitySink(sink))
	waitFor(t, a, "authenticated", settledOn(authflow.RouteAuthenticated))

	require.NoError(t, a.SetRoute(authflow.RouteSignOut))
	snap := waitFor(t, a, "sign in form", settledOn(authflow.RouteSignIn))
	assert.Nil(t, snap.User)
	assert.Contains(t, sink.Types(), authflow.ActivityEventSignedOut)
	h.AssertExpectations(t)
}

func TestAuthenticatorRefreshUser(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(alice, nil).Once()
	h.On("GetCurrentUser", mock.Anything).Return(nil, unauthenticated()).Once()
	h.On("SignOut", mock.Anything, mock.Anything).Return(nil).Once()

	a := startAuthenticator(t, h)
	waitFor(t, a, "authenticated", settledOn(authflow.RouteAuthenticated))

	require.NoError(t, a.RefreshUser())
	snap := waitFor(t, a, "sign in form", settledOn(authflow.RouteSignIn))
	assert.Nil(t, snap.User)
	h.AssertCalled(t, "SignOut", mock.Anything, mock.Anything)
}

func TestAuthenticatorFederatedSignIn(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(nil, unauthenticated())
	h.On("SignInWithRedirect", mock.Anything, authflow.SignInWithRedirectInput{Provider: "Google"}).
		Return(authflow.NewProviderError(authflow.ErrorNameSignInWithRedirect, "provider unavailable")).Once()

	a := startAuthenticator(t, h)
	waitFor(t, a, "sign in form", settledOn(authflow.RouteSignIn))

	require.NoError(t, a.ToFederatedSignIn(authflow.EventData{"provider": "Google"}))
	snap := waitFor(t, a, "error", hasError)
	assert.Equal(t, authflow.RouteSignIn, authflow.RouteOf(snap))
	assert.Equal(t, "provider unavailable", authflow.NewFacade(snap).ErrorMessage)
	h.AssertExpectations(t)
}
