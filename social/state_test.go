package social

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")
	testHMACKey       = []byte("fedcba9876543210fedcba9876543210")
)

func TestStateManager_EncryptDecrypt(t *testing.T) {
	sm := NewEncryptedStateManager(testEncryptionKey, testHMACKey, 10*time.Minute)

	state := &OAuthState{
		Provider:     "google",
		CustomState:  "/dashboard",
		CodeVerifier: "test-verifier",
	}

	encoded, err := sm.Encode(state)
	require.NoError(t, err)
	assert.NotEmpty(t, state.Nonce)

	decoded, err := sm.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
}

func TestStateManager_ExpiredState(t *testing.T) {
	sm := NewEncryptedStateManager(testEncryptionKey, testHMACKey, time.Minute)
	now := time.Now()
	sm.now = func() time.Time { return now }

	encoded, err := sm.Encode(&OAuthState{Provider: "google"})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = sm.Decode(encoded)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestStateManager_TamperedState(t *testing.T) {
	sm := NewEncryptedStateManager(testEncryptionKey, testHMACKey, time.Minute)
	encoded, err := sm.Encode(&OAuthState{Provider: "google"})
	require.NoError(t, err)

	tampered := []byte(encoded)
	tampered[10] = flip(tampered[10])
	_, err = sm.Decode(string(tampered))
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = sm.Decode("not-base64!")
	assert.ErrorIs(t, err, ErrInvalidState)

	other := NewEncryptedStateManager(testEncryptionKey, []byte("another-hmac-key-another-hmac-ke"), time.Minute)
	_, err = other.Decode(encoded)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func flip(c byte) byte {
	if c == 'A' {
		return 'B'
	}
	return 'A'
}
