package redishub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-authflow"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	capsules []authflow.HubCapsule
}

func (r *recorder) record(c authflow.HubCapsule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capsules = append(r.capsules, c)
}

func (r *recorder) all() []authflow.HubCapsule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]authflow.HubCapsule(nil), r.capsules...)
}

func newPair(t *testing.T) (*Hub, *Hub) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	newHub := func() *Hub {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		h := New(rdb, WithChannelPrefix("test:hub:"))
		require.NoError(t, h.Start(context.Background()))
		t.Cleanup(func() {
			_ = h.Close()
			_ = rdb.Close()
		})
		return h
	}

	a, b := newHub(), newHub()
	t.Cleanup(mr.Close)
	return a, b
}

func TestDispatchReachesRemoteHub(t *testing.T) {
	a, b := newPair(t)
	require.NotEqual(t, a.Origin(), b.Origin())

	local, remote := &recorder{}, &recorder{}
	a.Listen(authflow.AuthChannel, "local", local.record)
	b.Listen(authflow.AuthChannel, "remote", remote.record)

	a.Dispatch(authflow.AuthChannel, authflow.HubPayload{
		Event: authflow.HubEventSignedIn,
		Data:  &authflow.AuthUser{Username: "alice", UserID: "u-1"},
	})

	require.Len(t, local.all(), 1)
	assert.Equal(t, authflow.HubEventSignedIn, local.all()[0].Payload.Event)

	require.Eventually(t, func() bool { return len(remote.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := remote.all()[0]
	assert.Equal(t, authflow.AuthChannel, got.Channel)
	assert.Equal(t, authflow.HubEventSignedIn, got.Payload.Event)

	data, ok := got.Payload.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, "u-1", data["userId"])

	// own messages are not delivered twice
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, local.all(), 1)
}

func TestErrorsSurviveTransport(t *testing.T) {
	a, b := newPair(t)
	remote := &recorder{}
	b.Listen(authflow.AuthChannel, "remote", remote.record)

	a.Dispatch(authflow.AuthChannel, authflow.HubPayload{
		Event:   authflow.HubEventTokenRefreshFailure,
		Data:    authflow.NewProviderError(authflow.ErrorNameNetwork, "offline"),
		Message: "refresh failed",
	})
	a.Dispatch(authflow.AuthChannel, authflow.HubPayload{
		Event: authflow.HubEventSignInWithRedirectFailure,
		Data:  map[string]any{"error": authflow.NewProviderError("OAuthError", "denied")},
	})

	require.Eventually(t, func() bool { return len(remote.all()) == 2 }, 2*time.Second, 10*time.Millisecond)
	got := remote.all()

	err, ok := got[0].Payload.Data.(error)
	require.True(t, ok)
	assert.Equal(t, authflow.ErrorNameNetwork, authflow.ErrorName(err))
	assert.Equal(t, "offline", authflow.ErrorMessage(err))
	assert.Equal(t, "refresh failed", got[0].Payload.Message)

	assert.Equal(t, "OAuthError", authflow.HubErrorName(got[1].Payload.Data))
	assert.Equal(t, "denied", authflow.HubErrorMessage(got[1].Payload.Data))
}

func TestOtherChannelsAndClose(t *testing.T) {
	a, b := newPair(t)
	custom := &recorder{}
	b.Listen("custom", "custom", custom.record)

	a.Dispatch("custom", authflow.HubPayload{Event: "ping"})
	require.Eventually(t, func() bool { return len(custom.all()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Start(context.Background()), ErrClosed)

	a.Dispatch("custom", authflow.HubPayload{Event: "ping"})
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, custom.all(), 1)
}

func TestStartTwice(t *testing.T) {
	a, _ := newPair(t)
	assert.ErrorIs(t, a.Start(context.Background()), ErrAlreadyStarted)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decode([]byte("nope"))
	assert.Error(t, err)

	_, err = decode([]byte(`{"channel":"auth"}`))
	assert.Error(t, err)

	raw, err := encode("o-1", authflow.AuthChannel, authflow.HubPayload{Event: authflow.HubEventSignedOut})
	require.NoError(t, err)
	env, err := decode(raw)
	require.NoError(t, err)
	p := env.payload()
	assert.Equal(t, authflow.HubEventSignedOut, p.Event)
	assert.Nil(t, p.Data)
}
