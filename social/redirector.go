package social

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/goliatone/go-authflow"
	"golang.org/x/oauth2"
)

// HubEventCustomOAuthState carries the custom state passed to SignInWithRedirect.
const HubEventCustomOAuthState = "customOAuthState"

// Identity is the verified subject of an ID token.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityHandler turns a verified identity into a local session.
type IdentityHandler interface {
	SignInFederated(ctx context.Context, id Identity) (*authflow.AuthUser, error)
}

// IdentityHandlerFunc adapts a function to IdentityHandler.
type IdentityHandlerFunc func(ctx context.Context, id Identity) (*authflow.AuthUser, error)

// SignInFederated implements IdentityHandler.
func (f IdentityHandlerFunc) SignInFederated(ctx context.Context, id Identity) (*authflow.AuthUser, error) {
	return f(ctx, id)
}

// ProviderConfig describes an OpenID Connect provider.
type ProviderConfig struct {
	// Name is the provider identifier used by SignInWithRedirect, e.g. "Google".
	Name         string
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Scopes default to openid, email and profile.
	Scopes []string

	// KeySet overrides the discovered JWKS endpoint.
	KeySet oidc.KeySet

	HTTPClient *http.Client
}

type oidcProvider struct {
	name     string
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	client   *http.Client
}

// RedirectorOption customizes a Redirector.
type RedirectorOption func(*Redirector)

// WithHub sets the hub completion events are dispatched on.
func WithHub(hub authflow.Hub) RedirectorOption {
	return func(r *Redirector) {
		r.hub = hub
	}
}

// WithLogger overrides the redirector logger.
func WithLogger(logger authflow.Logger) RedirectorOption {
	return func(r *Redirector) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOpener sets where authorization URLs are sent, typically a browser
// launcher or an HTTP redirect writer.
func WithOpener(open func(ctx context.Context, url string) error) RedirectorOption {
	return func(r *Redirector) {
		r.open = open
	}
}

// Redirector runs the authorization code flow with PKCE against registered
// OpenID Connect providers.
type Redirector struct {
	states     StateManager
	identities IdentityHandler
	hub        authflow.Hub
	logger     authflow.Logger
	open       func(ctx context.Context, url string) error

	mu        sync.RWMutex
	providers map[string]*oidcProvider
	order     []string
}

// NewRedirector builds a redirector. Providers are added with Register.
func NewRedirector(states StateManager, identities IdentityHandler, opts ...RedirectorOption) *Redirector {
	r := &Redirector{
		states:     states,
		identities: identities,
		providers:  map[string]*oidcProvider{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = authflow.NopLogger()
	}
	return r
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register discovers cfg.Issuer and makes the provider available.
func (r *Redirector) Register(ctx context.Context, cfg ProviderConfig) error {
	if cfg.Name == "" || cfg.Issuer == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return fmt.Errorf("social: provider name, issuer, client id and redirect url are required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	op, err := oidc.NewProvider(oidc.ClientContext(ctx, client), cfg.Issuer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
	verifierCfg := &oidc.Config{ClientID: cfg.ClientID}
	verifier := op.Verifier(verifierCfg)
	if cfg.KeySet != nil {
		verifier = oidc.NewVerifier(cfg.Issuer, cfg.KeySet, verifierCfg)
	}

	p := &oidcProvider{
		name: cfg.Name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     op.Endpoint(),
		},
		verifier: verifier,
		client:   client,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := providerKey(cfg.Name)
	if _, ok := r.providers[key]; !ok {
		r.order = append(r.order, key)
	}
	r.providers[key] = p
	r.logger.Info("federated provider registered", "provider", cfg.Name, "issuer", cfg.Issuer)
	return nil
}

// Providers lists registered provider names in registration order.
func (r *Redirector) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, key := range r.order {
		names = append(names, r.providers[key].name)
	}
	return names
}

// provider resolves name; an empty name picks the only registered provider.
func (r *Redirector) provider(name string) (*oidcProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" && len(r.order) == 1 {
		return r.providers[r.order[0]], nil
	}
	p, ok := r.providers[providerKey(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return p, nil
}

// AuthURL builds the provider authorization URL for in.
func (r *Redirector) AuthURL(in authflow.SignInWithRedirectInput) (string, error) {
	p, err := r.provider(in.Provider)
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()
	st := &OAuthState{
		Provider:     providerKey(p.name),
		CodeVerifier: verifier,
		CustomState:  in.CustomState,
	}
	token, err := r.states.Encode(st)
	if err != nil {
		return "", err
	}
	return p.oauth.AuthCodeURL(token,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(st.Nonce),
	), nil
}

// SignInWithRedirect matches authflow.Handlers and hands the authorization
// URL to the configured opener.
func (r *Redirector) SignInWithRedirect(ctx context.Context, in authflow.SignInWithRedirectInput) error {
	url, err := r.AuthURL(in)
	if err != nil {
		return err
	}
	if r.open == nil {
		return fmt.Errorf("social: no opener configured")
	}
	return r.open(ctx, url)
}

// Complete finishes a redirect sign in: it exchanges code, verifies the ID
// token and opens a local session. The outcome is dispatched on the hub as
// signInWithRedirect or signInWithRedirect_failure.
func (r *Redirector) Complete(ctx context.Context, code, state string) (*authflow.AuthUser, error) {
	user, customState, err := r.complete(ctx, code, state)
	if err != nil {
		r.logger.Warn("federated sign in failed", "error", err)
		r.dispatch(authflow.HubPayload{
			Event: authflow.HubEventSignInWithRedirectFailure,
			Data:  map[string]any{"error": err},
		})
		return nil, err
	}
	r.dispatch(authflow.HubPayload{Event: authflow.HubEventSignInWithRedirect, Data: user})
	if customState != "" {
		r.dispatch(authflow.HubPayload{Event: HubEventCustomOAuthState, Data: customState})
	}
	return user, nil
}

func (r *Redirector) complete(ctx context.Context, code, state string) (*authflow.AuthUser, string, error) {
	st, err := r.states.Decode(state)
	if err != nil {
		return nil, "", err
	}
	p, err := r.provider(st.Provider)
	if err != nil {
		return nil, "", err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(st.CodeVerifier))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
	}

	id, err := p.identity(ctx, tok, st.Nonce)
	if err != nil {
		return nil, "", err
	}
	if r.identities == nil {
		return nil, "", fmt.Errorf("social: no identity handler configured")
	}
	user, err := r.identities.SignInFederated(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return user, st.CustomState, nil
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (p *oidcProvider) identity(ctx context.Context, tok *oauth2.Token, nonce string) (Identity, error) {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return Identity{}, fmt.Errorf("%w: missing id_token in token response", ErrIDTokenInvalid)
	}
	idTok, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrIDTokenInvalid, err)
	}
	if idTok.Nonce != nonce {
		return Identity{}, fmt.Errorf("%w: nonce mismatch", ErrIDTokenInvalid)
	}
	var claims idTokenClaims
	if err := idTok.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrIDTokenInvalid, err)
	}
	return Identity{
		Provider:      p.name,
		Subject:       idTok.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}

func (r *Redirector) dispatch(payload authflow.HubPayload) {
	if r.hub != nil {
		r.hub.Dispatch(authflow.AuthChannel, payload)
	}
}

// HasProvider reports whether name is registered.
func (r *Redirector) HasProvider(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.order, providerKey(name))
}
