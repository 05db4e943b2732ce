package authflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCurrentUserTrackerFollowsHub(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(nil, unauthenticated()).Once()

	hub := authflow.NewEventHub(authflow.WithHubLogger(authflow.NopLogger()))
	tracker := authflow.NewCurrentUserTracker(hub, h, authflow.NopLogger())
	stop := tracker.Start(context.Background())
	defer stop()

	st := tracker.State()
	assert.Nil(t, st.User)
	assert.Error(t, st.Err)
	assert.False(t, st.IsLoading)

	hub.Dispatch(authflow.AuthChannel, authflow.HubPayload{Event: authflow.HubEventSignedIn, Data: alice})
	st = tracker.State()
	require.NotNil(t, st.User)
	assert.Equal(t, "alice", st.User.Username)
	assert.NoError(t, st.Err)

	hub.Dispatch(authflow.AuthChannel, authflow.HubPayload{
		Event: authflow.HubEventTokenRefreshFailure,
		Data:  map[string]any{"error": map[string]any{"name": "NotAuthorizedException", "message": "Refresh Token has expired"}},
	})
	st = tracker.State()
	require.Error(t, st.Err)
	assert.Equal(t, authflow.ErrorNameNotAuthorized, authflow.ErrorName(st.Err))
	assert.Equal(t, "Refresh Token has expired", st.Err.Error())

	hub.Dispatch(authflow.AuthChannel, authflow.HubPayload{Event: authflow.HubEventSignedOut})
	assert.Nil(t, tracker.State().User)

	hub.Dispatch(authflow.AuthChannel, authflow.HubPayload{Event: authflow.HubEventAutoSignInFailure, Message: "auto sign in failed"})
	assert.EqualError(t, tracker.State().Err, "auto sign in failed")
}

func TestCurrentUserTrackerRefreshesOnTokenRefresh(t *testing.T) {
	h := &MockHandlers{}
	h.On("GetCurrentUser", mock.Anything).Return(nil, unauthenticated()).Once()
	h.On("GetCurrentUser", mock.Anything).Return(alice, nil).Once()

	hub := authflow.NewEventHub(authflow.WithHubLogger(authflow.NopLogger()))
	tracker := authflow.NewCurrentUserTracker(hub, h, authflow.NopLogger())
	stop := tracker.Start(context.Background())

	hub.Dispatch(authflow.AuthChannel, authflow.HubPayload{Event: authflow.HubEventTokenRefresh})
	assert.Eventually(t, func() bool {
		u := tracker.State().User
		return u != nil && u.Username == "alice"
	}, time.Second, 5*time.Millisecond)

	stop()
	assert.Equal(t, 0, hub.Listeners(authflow.AuthChannel))
	h.AssertExpectations(t)
}

func TestCurrentUserTrackerMapsHubUsers(t *testing.T) {
	hub := authflow.NewEventHub(authflow.WithHubLogger(authflow.NopLogger()))
	tracker := authflow.NewCurrentUserTracker(hub, nil, authflow.NopLogger())
	stop := tracker.Start(context.Background())
	defer stop()

	assert.ErrorIs(t, tracker.State().Err, authflow.ErrNoUserPool)

	hub.Dispatch(authflow.AuthChannel, authflow.HubPayload{
		Event: authflow.HubEventSignUp,
		Data:  map[string]any{"username": "bob", "userId": "sub-bob"},
	})
	require.NotNil(t, tracker.State().User)
	assert.Equal(t, authflow.AuthUser{Username: "bob", UserID: "sub-bob"}, *tracker.State().User)
}
