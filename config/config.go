// Package config loads process configuration from the environment.
//
// Every variable is prefixed with AUTHFLOW_. An optional .env file is read
// first; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/provider/memory"
	"github.com/goliatone/go-authflow/social"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Prefix is prepended to every environment variable name.
const Prefix = "AUTHFLOW_"

type Config struct {
	Log      LogConfig      `envPrefix:"LOG_"`
	Flow     FlowConfig     `envPrefix:"FLOW_"`
	Hub      HubConfig      `envPrefix:"HUB_"`
	Metrics  MetricsConfig  `envPrefix:"METRICS_"`
	Memory   MemoryConfig   `envPrefix:"MEMORY_"`
	OIDC     OIDCConfig     `envPrefix:"OIDC_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
}

type LogConfig struct {
	// Env is "dev" for console output or "prod" for JSON.
	Env     string `env:"ENV" envDefault:"dev"`
	Level   string `env:"LEVEL" envDefault:"info"`
	Service string `env:"SERVICE" envDefault:"authflow"`
}

type FlowConfig struct {
	// InitialRoute is one of signIn, signUp or forgotPassword.
	InitialRoute string `env:"INITIAL_ROUTE"`
}

type HubConfig struct {
	// RedisURL enables the redis hub when set, e.g. redis://localhost:6379/0.
	RedisURL string `env:"REDIS_URL"`
	Prefix   string `env:"PREFIX" envDefault:"authflow:hub"`
}

type MetricsConfig struct {
	Namespace string `env:"NAMESPACE" envDefault:"authflow"`
	Addr      string `env:"ADDR" envDefault:":9090"`
}

type MemoryConfig struct {
	Issuer        string        `env:"ISSUER" envDefault:"authflow-memory"`
	SigningKey    string        `env:"SIGNING_KEY"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	CodeTTL       time.Duration `env:"CODE_TTL" envDefault:"10m"`
	AutoVerify    bool          `env:"AUTO_VERIFY"`
	DefaultRegion string        `env:"DEFAULT_REGION" envDefault:"US"`
}

type OIDCConfig struct {
	// Provider is the name used with SignInWithRedirect, e.g. Google.
	Provider     string        `env:"PROVIDER" envDefault:"Google"`
	Issuer       string        `env:"ISSUER"`
	ClientID     string        `env:"CLIENT_ID"`
	ClientSecret string        `env:"CLIENT_SECRET"`
	RedirectURL  string        `env:"REDIRECT_URL"`
	Scopes       []string      `env:"SCOPES" envSeparator:","`
	StateKey     string        `env:"STATE_KEY"`
	StateHMACKey string        `env:"STATE_HMAC_KEY"`
	StateTTL     time.Duration `env:"STATE_TTL" envDefault:"10m"`
	// AllowSignUp creates accounts for unknown federated identities.
	AllowSignUp bool `env:"ALLOW_SIGN_UP" envDefault:"true"`
}

type DatabaseConfig struct {
	// DSN is a sqlite data source name. Empty disables persistence.
	DSN string `env:"DSN"`
}

type HTTPConfig struct {
	Addr            string `env:"ADDR" envDefault:":8080"`
	CookieSecure    bool   `env:"COOKIE_SECURE"`
	SuccessRedirect string `env:"SUCCESS_REDIRECT" envDefault:"/"`
	ErrorRedirect   string `env:"ERROR_REDIRECT" envDefault:"/login?error=auth_failed"`
}

// Load reads the given .env files (default ".env"), then parses the
// environment. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return Config{}, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Log.Env = strings.ToLower(strings.TrimSpace(cfg.Log.Env))
	return cfg, nil
}

// Validate implements validation.Validatable.
func (c Config) Validate() error {
	errs := validation.Errors{
		"log":    c.Log.Validate(),
		"flow":   c.Flow.Validate(),
		"memory": c.Memory.Validate(),
		"hub":    c.Hub.Validate(),
	}
	if c.OIDCEnabled() {
		errs["oidc"] = c.OIDC.Validate()
	}
	return errs.Filter()
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Env, validation.In("dev", "prod")),
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
	)
}

func (c FlowConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.InitialRoute, validation.By(initialRoute)),
	)
}

func initialRoute(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	switch r, ok := authflow.ParseRoute(s); {
	case !ok:
		return fmt.Errorf("unknown route %q", s)
	case r != authflow.RouteSignIn && r != authflow.RouteSignUp && r != authflow.RouteForgotPassword:
		return fmt.Errorf("route %q cannot start a flow", s)
	}
	return nil
}

func (c HubConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RedisURL, validation.By(redisURL)),
		validation.Field(&c.Prefix, validation.Required),
	)
}

func redisURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := redis.ParseURL(s); err != nil {
		return errors.New("must be a redis:// or rediss:// URL")
	}
	return nil
}

func (c MemoryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.DefaultRegion, validation.Length(2, 2)),
	)
}

func (c OIDCConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required),
		validation.Field(&c.Issuer, validation.Required, is.URL),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.RedirectURL, validation.Required, is.URL),
		validation.Field(&c.StateKey, validation.Required, validation.By(aesKey)),
		validation.Field(&c.StateHMACKey, validation.Required, validation.Length(32, 0)),
	)
}

func aesKey(value any) error {
	s, _ := value.(string)
	switch len(s) {
	case 0, 16, 24, 32:
		return nil
	}
	return errors.New("must be 16, 24 or 32 bytes")
}

// OIDCEnabled reports whether a federated provider is configured.
func (c Config) OIDCEnabled() bool {
	return c.OIDC.Issuer != ""
}

// InitialRoute returns the configured starting flow, RouteNone when unset.
func (c Config) InitialRoute() authflow.Route {
	r, _ := authflow.ParseRoute(c.Flow.InitialRoute)
	return r
}

// LoggerConfig maps the log section.
func (c Config) LoggerConfig() authflow.LogConfig {
	return authflow.LogConfig{Env: c.Log.Env, Level: c.Log.Level, Service: c.Log.Service}
}

// MemoryProviderConfig maps the memory section.
func (c Config) MemoryProviderConfig() memory.Config {
	cfg := memory.DefaultConfig([]byte(c.Memory.SigningKey))
	if c.Memory.Issuer != "" {
		cfg.Issuer = c.Memory.Issuer
	}
	if c.Memory.SessionTTL > 0 {
		cfg.SessionTTL = c.Memory.SessionTTL
	}
	if c.Memory.CodeTTL > 0 {
		cfg.CodeTTL = c.Memory.CodeTTL
	}
	if c.Memory.DefaultRegion != "" {
		cfg.DefaultRegion = c.Memory.DefaultRegion
	}
	cfg.AutoVerify = c.Memory.AutoVerify
	return cfg
}

// ProviderConfig maps the OIDC section.
func (c Config) ProviderConfig() social.ProviderConfig {
	return social.ProviderConfig{
		Name:         c.OIDC.Provider,
		Issuer:       c.OIDC.Issuer,
		ClientID:     c.OIDC.ClientID,
		ClientSecret: c.OIDC.ClientSecret,
		RedirectURL:  c.OIDC.RedirectURL,
		Scopes:       c.OIDC.Scopes,
	}
}

// StateManager builds the encrypted OAuth state manager from the OIDC section.
func (c Config) StateManager() *social.EncryptedStateManager {
	return social.NewEncryptedStateManager([]byte(c.OIDC.StateKey), []byte(c.OIDC.StateHMACKey), c.OIDC.StateTTL)
}

// LinkPolicy maps the OIDC sign-up switch.
func (c Config) LinkPolicy() social.LinkPolicy {
	if c.OIDC.AllowSignUp {
		return social.PolicyAutoCreate()
	}
	return social.PolicyRejectUnknown()
}

// SocialHTTPConfig maps the HTTP section.
func (c Config) SocialHTTPConfig() social.HTTPConfig {
	return social.HTTPConfig{
		CookieSecure:    c.HTTP.CookieSecure,
		CookieHTTPOnly:  true,
		SuccessRedirect: c.HTTP.SuccessRedirect,
		ErrorRedirect:   c.HTTP.ErrorRedirect,
	}
}
