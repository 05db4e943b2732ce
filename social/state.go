package social

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// StateManager seals the redirect state so it survives the round trip
// through the identity provider.
type StateManager interface {
	Encode(state *OAuthState) (string, error)
	Decode(token string) (*OAuthState, error)
}

// OAuthState is carried in the OAuth state parameter.
type OAuthState struct {
	Nonce        string `json:"n"`
	Provider     string `json:"p"`
	CodeVerifier string `json:"cv,omitempty"`
	CustomState  string `json:"cs,omitempty"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

// EncryptedStateManager uses AES-GCM encryption and HMAC signing.
type EncryptedStateManager struct {
	encryptionKey []byte
	hmacKey       []byte
	ttl           time.Duration
	now           func() time.Time
}

// NewEncryptedStateManager creates a new encrypted state manager. The
// encryption key must be 16, 24 or 32 bytes.
func NewEncryptedStateManager(encryptionKey, hmacKey []byte, ttl time.Duration) *EncryptedStateManager {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &EncryptedStateManager{
		encryptionKey: encryptionKey,
		hmacKey:       hmacKey,
		ttl:           ttl,
		now:           time.Now,
	}
}

func (sm *EncryptedStateManager) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(sm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func (sm *EncryptedStateManager) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, sm.hmacKey)
	mac.Write(data)
	return mac.Sum(nil)
}

// Encode encrypts and signs the state, filling in the nonce and lifetime.
func (sm *EncryptedStateManager) Encode(state *OAuthState) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}

	now := sm.now()
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sm.ttl).Unix()
	}
	if state.Nonce == "" {
		state.Nonce = generateNonce()
	}

	plaintext, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	gcm, err := sm.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.URLEncoding.EncodeToString(append(sm.sign(ciphertext), ciphertext...)), nil
}

// Decode verifies and decrypts the state.
func (sm *EncryptedStateManager) Decode(token string) (*OAuthState, error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil || len(data) < sha256.Size {
		return nil, ErrInvalidState
	}

	signature, ciphertext := data[:sha256.Size], data[sha256.Size:]
	if !hmac.Equal(signature, sm.sign(ciphertext)) {
		return nil, ErrInvalidState
	}

	gcm, err := sm.aead()
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidState
	}
	plaintext, err := gcm.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, ErrInvalidState
	}

	var state OAuthState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if sm.now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}
	return &state, nil
}

func generateNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
