package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-authflow"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signInSnap(state string, pending bool) authflow.Snapshot {
	child := &authflow.ChildSnapshot{Flow: authflow.FlowSignIn, State: state}
	if pending {
		child.Tags = []string{authflow.TagPending}
	}
	return authflow.Snapshot{State: authflow.StateSignInActor, Child: child}
}

func TestObserveCountsRouteTransitions(t *testing.T) {
	c := NewCollector("authflow")

	c.Observe(authflow.Snapshot{State: authflow.StateSetup})
	c.Observe(signInSnap("signIn.edit", false))
	c.Observe(signInSnap("signIn.submit", true))
	c.Observe(authflow.Snapshot{State: authflow.StateAuthenticated})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("none", "setup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("setup", "signIn")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("signIn", "authenticated")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.transitions))
}

func TestObserveTracksPendingWaits(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewCollector("authflow", WithClock(func() time.Time { return now }))

	c.Observe(signInSnap("signIn.submit", true))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pending))

	now = now.Add(300 * time.Millisecond)
	c.Observe(signInSnap("signIn.submit", true))
	assert.Equal(t, 0, testutil.CollectAndCount(c.waits))

	now = now.Add(200 * time.Millisecond)
	c.Observe(signInSnap("signIn.edit", false))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.pending))
	assert.Equal(t, 1, testutil.CollectAndCount(c.waits))
}

func TestRecordCountsFailures(t *testing.T) {
	c := NewCollector("authflow")
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, authflow.ActivityEvent{EventType: authflow.ActivityEventAuthenticated}))
	require.NoError(t, c.Record(ctx, authflow.ActivityEvent{
		EventType: authflow.ActivityEventOperationFailed,
		Flow:      authflow.FlowSignIn,
		Operation: "signIn",
		ErrorName: "NotAuthorizedException",
	}))
	require.NoError(t, c.Record(ctx, authflow.ActivityEvent{
		EventType: authflow.ActivityEventOperationFailed,
		Flow:      authflow.FlowSignIn,
		Operation: "signIn",
		ErrorName: "NotAuthorizedException",
	}))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.failures.WithLabelValues("signIn", "signIn", "NotAuthorizedException")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.activity.WithLabelValues(string(authflow.ActivityEventOperationFailed))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activity.WithLabelValues(string(authflow.ActivityEventAuthenticated))))
}

func TestHandlerServesMetrics(t *testing.T) {
	c := NewCollector("authflow")
	c.Observe(authflow.Snapshot{State: authflow.StateSetup})

	h, err := Handler(c)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `authflow_route_transitions_total{from="none",to="setup"} 1`)
	assert.Contains(t, string(body), "authflow_pending 0")
}
