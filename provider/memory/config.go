package memory

import (
	"time"

	"github.com/goliatone/go-authflow"
)

// Config holds the provider settings.
type Config struct {
	// Issuer is set on, and required from, every session token.
	Issuer string

	// KeyID names the initial signing key.
	// Default: "default".
	KeyID string

	// SigningKey is the initial HS256 key. Required.
	SigningKey []byte

	// SessionTTL bounds the lifetime of issued session tokens.
	// Default: 1 hour.
	SessionTTL time.Duration

	// CodeTTL bounds the lifetime of confirmation and MFA codes.
	// Default: 10 minutes.
	CodeTTL time.Duration

	// AutoVerify confirms new accounts at sign up, skipping CONFIRM_SIGN_UP.
	AutoVerify bool

	// DefaultRegion is used to parse phone numbers without a country prefix.
	// Default: "US".
	DefaultRegion string

	// BcryptCost overrides the password hashing cost.
	BcryptCost int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(signingKey []byte) Config {
	return Config{
		Issuer:        "authflow-memory",
		KeyID:         "default",
		SigningKey:    signingKey,
		SessionTTL:    time.Hour,
		CodeTTL:       10 * time.Minute,
		DefaultRegion: "US",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.SigningKey)
	if c.Issuer == "" {
		c.Issuer = d.Issuer
	}
	if c.KeyID == "" {
		c.KeyID = d.KeyID
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.CodeTTL <= 0 {
		c.CodeTTL = d.CodeTTL
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = d.DefaultRegion
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = passwordHashCost()
	}
	return c
}

// Option customizes a Provider.
type Option func(*Provider)

// WithHub sets the hub lifecycle events are dispatched on.
func WithHub(hub authflow.Hub) Option {
	return func(p *Provider) {
		p.hub = hub
	}
}

// WithLogger overrides the provider logger.
func WithLogger(logger authflow.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the time source used for tokens.
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithCodeGenerator overrides how one time codes are produced.
func WithCodeGenerator(gen func() string) Option {
	return func(p *Provider) {
		if gen != nil {
			p.newCode = gen
		}
	}
}
