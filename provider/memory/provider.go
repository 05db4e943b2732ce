package memory

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// MFAType selects the second factor an account signs in with.
type MFAType string

const (
	MFANone  MFAType = ""
	MFASMS   MFAType = "SMS"
	MFATOTP  MFAType = "TOTP"
	MFAEmail MFAType = "EMAIL"
)

// UserSpec seeds an account with CreateUser.
type UserSpec struct {
	Username          string
	Password          string
	Attributes        authflow.UserAttributes
	Confirmed         bool
	MFA               MFAType
	ForceNewPassword  bool
	MissingAttributes []string
}

// FederatedIdentity is an identity asserted by an external provider.
type FederatedIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
}

type account struct {
	id               string
	username         string
	hash             string
	attrs            authflow.UserAttributes
	confirmed        bool
	mfa              MFAType
	totpSecret       string
	totpReady        bool
	forceNewPassword bool
	missing          []string
}

func (a *account) user() *authflow.AuthUser {
	return &authflow.AuthUser{Username: a.username, UserID: a.id, LoginID: a.username}
}

type challenge struct {
	username string
	step     authflow.Step
}

// Provider is an in-memory authflow.Handlers implementation.
type Provider struct {
	cfg      Config
	hub      authflow.Hub
	logger   authflow.Logger
	now      func() time.Time
	newCode  func() string
	redirect func(ctx context.Context, in authflow.SignInWithRedirectInput) error
	keys     *keyRing
	codes    *codeStore
	lookups  singleflight.Group

	mu         sync.Mutex
	accounts   map[string]*account
	token      string
	pending    *challenge
	autoSignIn string
}

var _ authflow.Handlers = (*Provider)(nil)

// New builds a provider from cfg.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrSigningKeyRequired
	}
	cfg = cfg.withDefaults()

	p := &Provider{
		cfg:      cfg,
		now:      time.Now,
		newCode:  randomCode,
		keys:     newKeyRing(cfg.KeyID, cfg.SigningKey),
		codes:    newCodeStore(cfg.CodeTTL),
		accounts: map[string]*account{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.logger == nil {
		p.logger = authflow.NopLogger()
	}
	return p, nil
}

// WithRedirect routes SignInWithRedirect to fn, typically a social.Redirector.
func WithRedirect(fn func(ctx context.Context, in authflow.SignInWithRedirectInput) error) Option {
	return func(p *Provider) {
		p.redirect = fn
	}
}

// CreateUser seeds an account.
func (p *Provider) CreateUser(spec UserSpec) (*authflow.AuthUser, error) {
	attrs, err := normalizeAttributes(spec.Attributes, p.cfg.DefaultRegion)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(spec.Password, p.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[spec.Username]; ok {
		return nil, usernameExists()
	}
	acc := &account{
		id:               uuid.NewString(),
		username:         spec.Username,
		hash:             hash,
		attrs:            attrs,
		confirmed:        spec.Confirmed,
		mfa:              spec.MFA,
		forceNewPassword: spec.ForceNewPassword,
		missing:          slices.Clone(spec.MissingAttributes),
	}
	p.accounts[acc.username] = acc
	return acc.user(), nil
}

// LastCode returns the most recent one time code sent to username.
func (p *Provider) LastCode(username string) (string, bool) {
	return p.codes.last(username)
}

// Token returns the current session token, empty when signed out.
func (p *Provider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *Provider) emit(payload *authflow.HubPayload) {
	if payload == nil || p.hub == nil {
		return
	}
	p.hub.Dispatch(authflow.AuthChannel, *payload)
}

// GetCurrentUser implements authflow.Handlers. Concurrent lookups of the
// same token share one verification.
func (p *Provider) GetCurrentUser(ctx context.Context) (*authflow.AuthUser, error) {
	token := p.Token()
	if token == "" {
		return nil, unauthenticated()
	}
	v, err, _ := p.lookups.Do(token, func() (any, error) {
		claims, err := p.verify(token)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		acc, ok := p.accounts[claims.Username]
		p.mu.Unlock()
		if !ok || acc.id != claims.Subject {
			return nil, unauthenticated()
		}
		return acc.user(), nil
	})
	if err != nil {
		return nil, err
	}
	u := *v.(*authflow.AuthUser)
	return &u, nil
}

func (p *Provider) sessionAccount(ctx context.Context) (*account, error) {
	u, err := p.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accounts[u.Username]
	if !ok {
		return nil, unauthenticated()
	}
	return acc, nil
}

// FetchUserAttributes implements authflow.Handlers.
func (p *Provider) FetchUserAttributes(ctx context.Context) (authflow.UserAttributes, error) {
	acc, err := p.sessionAccount(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	attrs := maps.Clone(acc.attrs)
	if attrs == nil {
		attrs = authflow.UserAttributes{}
	}
	attrs["sub"] = acc.id
	return attrs, nil
}

// SignIn implements authflow.Handlers.
func (p *Provider) SignIn(ctx context.Context, in authflow.SignInInput) (*authflow.SignInOutput, error) {
	if err := (signInRequest{Username: in.Username, Password: in.Password}).Validate(); err != nil {
		return nil, invalidParameter(validationMessage(err), err)
	}
	out, ev, err := p.signIn(in)
	if err != nil {
		p.logger.Debug("sign in rejected", "username", in.Username, "error", authflow.ErrorName(err))
		return nil, err
	}
	p.emit(ev)
	return out, nil
}

func (p *Provider) signIn(in authflow.SignInInput) (*authflow.SignInOutput, *authflow.HubPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[in.Username]
	if !ok {
		return nil, nil, userNotFound()
	}
	match, err := comparePassword(in.Password, acc.hash)
	if err != nil {
		return nil, nil, err
	}
	if !match {
		return nil, nil, notAuthorized("Incorrect username or password.", nil)
	}
	if !acc.confirmed {
		return nil, nil, providerError(authflow.ErrorNameUserNotConfirmed, "User is not confirmed.", nil)
	}
	return p.challengeFor(acc)
}

// challengeFor picks the next sign in step for acc. Callers hold p.mu.
func (p *Provider) challengeFor(acc *account) (*authflow.SignInOutput, *authflow.HubPayload, error) {
	next := authflow.SignInNextStep{}
	switch {
	case acc.forceNewPassword:
		next.SignInStep = authflow.StepConfirmSignInWithNewPasswordRequired
		next.MissingAttributes = slices.Clone(acc.missing)
	case acc.mfa == MFATOTP && !acc.totpReady:
		secret, err := totpSecret()
		if err != nil {
			return nil, nil, err
		}
		acc.totpSecret = secret
		p.codes.issue(purposeSignIn, acc.username, p.newCode())
		next.SignInStep = authflow.StepContinueSignInWithTOTPSetup
		next.TOTPSetupDetails = &authflow.TOTPSetupDetails{SharedSecret: secret}
	case acc.mfa == MFATOTP:
		p.codes.issue(purposeSignIn, acc.username, p.newCode())
		next.SignInStep = authflow.StepConfirmSignInWithTOTPCode
	case acc.mfa == MFASMS:
		p.codes.issue(purposeSignIn, acc.username, p.newCode())
		next.SignInStep = authflow.StepConfirmSignInWithSMSCode
		next.CodeDeliveryDetails = deliveryTo(authflow.AttributePhoneNumber, acc.attrs[authflow.AttributePhoneNumber])
	case acc.mfa == MFAEmail:
		p.codes.issue(purposeSignIn, acc.username, p.newCode())
		next.SignInStep = authflow.StepConfirmSignInWithEmailCode
		next.CodeDeliveryDetails = deliveryTo(authflow.AttributeEmail, acc.attrs[authflow.AttributeEmail])
	default:
		return p.complete(acc, authflow.HubEventSignedIn)
	}
	p.pending = &challenge{username: acc.username, step: next.SignInStep}
	return &authflow.SignInOutput{NextStep: next}, nil, nil
}

// complete opens a session for acc. Callers hold p.mu.
func (p *Provider) complete(acc *account, hubEvent string) (*authflow.SignInOutput, *authflow.HubPayload, error) {
	token, err := p.issue(acc)
	if err != nil {
		return nil, nil, err
	}
	p.token = token
	p.pending = nil
	out := &authflow.SignInOutput{
		IsSignedIn: true,
		NextStep:   authflow.SignInNextStep{SignInStep: authflow.StepDone},
	}
	return out, &authflow.HubPayload{Event: hubEvent, Data: acc.user()}, nil
}

// ConfirmSignIn implements authflow.Handlers. For TOTP steps the expected
// response is the code exposed through LastCode.
func (p *Provider) ConfirmSignIn(ctx context.Context, in authflow.ConfirmSignInInput) (*authflow.SignInOutput, error) {
	out, ev, err := p.confirmSignIn(in)
	if err != nil {
		return nil, err
	}
	p.emit(ev)
	return out, nil
}

func (p *Provider) confirmSignIn(in authflow.ConfirmSignInInput) (*authflow.SignInOutput, *authflow.HubPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		return nil, nil, invalidParameter("No sign in is in progress.", nil)
	}
	acc, ok := p.accounts[p.pending.username]
	if !ok {
		return nil, nil, userNotFound()
	}

	switch p.pending.step {
	case authflow.StepConfirmSignInWithNewPasswordRequired:
		if err := validatePassword(in.ChallengeResponse); err != nil {
			return nil, nil, err
		}
		hash, err := hashPassword(in.ChallengeResponse, p.cfg.BcryptCost)
		if err != nil {
			return nil, nil, err
		}
		acc.hash = hash
		acc.forceNewPassword = false
		acc.missing = nil
		p.pending = nil
		return p.challengeFor(acc)
	case authflow.StepContinueSignInWithTOTPSetup:
		if err := p.codes.check(purposeSignIn, acc.username, in.ChallengeResponse); err != nil {
			return nil, nil, err
		}
		acc.totpReady = true
	default:
		if err := p.codes.check(purposeSignIn, acc.username, in.ChallengeResponse); err != nil {
			return nil, nil, err
		}
	}
	return p.complete(acc, authflow.HubEventSignedIn)
}

// SignInWithRedirect implements authflow.Handlers.
func (p *Provider) SignInWithRedirect(ctx context.Context, in authflow.SignInWithRedirectInput) error {
	if p.redirect == nil {
		return authflow.ErrUnsupportedOperation
	}
	return p.redirect(ctx, in)
}

// FederatedSignIn opens a session for an identity verified by an external
// provider, creating the account on first use.
func (p *Provider) FederatedSignIn(ctx context.Context, id FederatedIdentity) (*authflow.AuthUser, error) {
	if id.Provider == "" || id.Subject == "" {
		return nil, invalidParameter("Federated identity requires a provider and subject.", nil)
	}
	username := strings.ToLower(id.Provider) + "_" + id.Subject

	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[username]
	if !ok {
		acc = &account{
			id:        federatedID(username),
			username:  username,
			confirmed: true,
			attrs:     authflow.UserAttributes{},
		}
		p.accounts[username] = acc
	}
	if id.Email != "" {
		acc.attrs[authflow.AttributeEmail] = id.Email
		acc.attrs[authflow.AttributeEmailVerified] = strconv.FormatBool(id.EmailVerified)
	}
	if _, _, err := p.complete(acc, authflow.HubEventSignedIn); err != nil {
		return nil, err
	}
	return acc.user(), nil
}

// federatedID derives a stable subject id so a federated user keeps the
// same id across provider restarts.
func federatedID(username string) string {
	if id, err := hashid.NewUUID(username); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// SignUp implements authflow.Handlers.
func (p *Provider) SignUp(ctx context.Context, in authflow.SignUpInput) (*authflow.SignUpOutput, error) {
	req := signUpRequest{
		Username: in.Username,
		Password: in.Password,
		Email:    in.UserAttributes[authflow.AttributeEmail],
	}
	if err := req.Validate(); err != nil {
		return nil, invalidParameter(validationMessage(err), err)
	}
	attrs, err := normalizeAttributes(in.UserAttributes, p.cfg.DefaultRegion)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password, p.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	out, ev, err := p.signUp(in, attrs, hash)
	if err != nil {
		return nil, err
	}
	p.emit(ev)
	return out, nil
}

func (p *Provider) signUp(in authflow.SignUpInput, attrs authflow.UserAttributes, hash string) (*authflow.SignUpOutput, *authflow.HubPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.accounts[in.Username]; ok {
		return nil, nil, usernameExists()
	}
	if attrs[authflow.AttributeEmail] != "" {
		attrs[authflow.AttributeEmailVerified] = strconv.FormatBool(p.cfg.AutoVerify)
	}
	if attrs[authflow.AttributePhoneNumber] != "" {
		attrs[authflow.AttributePhoneNumberVerified] = "false"
	}
	acc := &account{
		id:        uuid.NewString(),
		username:  in.Username,
		hash:      hash,
		attrs:     attrs,
		confirmed: p.cfg.AutoVerify,
	}
	p.accounts[acc.username] = acc
	if in.AutoSignIn {
		p.autoSignIn = acc.username
	}

	if acc.confirmed {
		return &authflow.SignUpOutput{
			IsSignUpComplete: true,
			UserID:           acc.id,
			NextStep:         authflow.SignUpNextStep{SignUpStep: p.signUpDoneStep(acc)},
		}, &authflow.HubPayload{Event: authflow.HubEventSignUp, Data: acc.user()}, nil
	}

	p.codes.issue(purposeSignUp, acc.username, p.newCode())
	return &authflow.SignUpOutput{
		UserID: acc.id,
		NextStep: authflow.SignUpNextStep{
			SignUpStep:          authflow.StepConfirmSignUp,
			CodeDeliveryDetails: primaryDelivery(acc),
		},
	}, nil, nil
}

func (p *Provider) signUpDoneStep(acc *account) authflow.Step {
	if p.autoSignIn == acc.username {
		return authflow.StepCompleteAutoSignIn
	}
	return authflow.StepDone
}

// ConfirmSignUp implements authflow.Handlers.
func (p *Provider) ConfirmSignUp(ctx context.Context, in authflow.ConfirmSignUpInput) (*authflow.SignUpOutput, error) {
	out, ev, err := p.confirmSignUp(in)
	if err != nil {
		return nil, err
	}
	p.emit(ev)
	return out, nil
}

func (p *Provider) confirmSignUp(in authflow.ConfirmSignUpInput) (*authflow.SignUpOutput, *authflow.HubPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[in.Username]
	if !ok {
		return nil, nil, userNotFound()
	}
	if acc.confirmed {
		return nil, nil, notAuthorized("User cannot be confirmed. Current status is CONFIRMED", nil)
	}
	if err := p.codes.check(purposeSignUp, acc.username, in.ConfirmationCode); err != nil {
		return nil, nil, err
	}
	acc.confirmed = true
	if d := primaryDelivery(acc); d != nil {
		acc.attrs[d.AttributeName+"_verified"] = "true"
	}
	return &authflow.SignUpOutput{
		IsSignUpComplete: true,
		UserID:           acc.id,
		NextStep:         authflow.SignUpNextStep{SignUpStep: p.signUpDoneStep(acc)},
	}, &authflow.HubPayload{Event: authflow.HubEventSignUp, Data: acc.user()}, nil
}

// AutoSignIn implements authflow.Handlers.
func (p *Provider) AutoSignIn(ctx context.Context) (*authflow.SignInOutput, error) {
	out, ev, err := p.takeAutoSignIn()
	if err != nil {
		if p.hub != nil {
			p.hub.Dispatch(authflow.AuthChannel, authflow.HubPayload{
				Event:   authflow.HubEventAutoSignInFailure,
				Message: authflow.ErrorMessage(err),
			})
		}
		return nil, err
	}
	p.emit(ev)
	return out, nil
}

func (p *Provider) takeAutoSignIn() (*authflow.SignInOutput, *authflow.HubPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[p.autoSignIn]
	if p.autoSignIn == "" || !ok {
		return nil, nil, providerError(errorNameAutoSignIn, "The autoSignIn flow has not started, or has been cancelled/completed.", nil)
	}
	if !acc.confirmed {
		return nil, nil, providerError(errorNameAutoSignIn, "The user has not confirmed the sign up.", nil)
	}
	p.autoSignIn = ""
	return p.complete(acc, authflow.HubEventAutoSignIn)
}

// ResendSignUpCode implements authflow.Handlers.
func (p *Provider) ResendSignUpCode(ctx context.Context, in authflow.ResendSignUpCodeInput) (*authflow.CodeDeliveryDetails, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[in.Username]
	if !ok {
		return nil, userNotFound()
	}
	if acc.confirmed {
		return nil, invalidParameter(authflow.AlreadyConfirmedMessage, nil)
	}
	p.codes.issue(purposeSignUp, acc.username, p.newCode())
	return primaryDelivery(acc), nil
}

// ResetPassword implements authflow.Handlers.
func (p *Provider) ResetPassword(ctx context.Context, in authflow.ResetPasswordInput) (*authflow.ResetPasswordOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[in.Username]
	if !ok {
		return nil, userNotFound()
	}
	p.codes.issue(purposeResetPassword, acc.username, p.newCode())
	return &authflow.ResetPasswordOutput{
		NextStep: authflow.ResetPasswordNextStep{
			ResetPasswordStep:   authflow.StepConfirmResetPasswordWithCode,
			CodeDeliveryDetails: primaryDelivery(acc),
		},
	}, nil
}

// ConfirmResetPassword implements authflow.Handlers.
func (p *Provider) ConfirmResetPassword(ctx context.Context, in authflow.ConfirmResetPasswordInput) error {
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}
	hash, err := hashPassword(in.NewPassword, p.cfg.BcryptCost)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[in.Username]
	if !ok {
		return userNotFound()
	}
	if err := p.codes.check(purposeResetPassword, acc.username, in.ConfirmationCode); err != nil {
		return err
	}
	acc.hash = hash
	acc.forceNewPassword = false
	return nil
}

// SendUserAttributeVerificationCode implements authflow.Handlers.
func (p *Provider) SendUserAttributeVerificationCode(ctx context.Context, in authflow.SendUserAttributeVerificationCodeInput) (*authflow.CodeDeliveryDetails, error) {
	acc, err := p.sessionAccount(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	value := acc.attrs[in.UserAttributeKey]
	if value == "" {
		return nil, invalidParameter(fmt.Sprintf("Attribute %s is not set.", in.UserAttributeKey), nil)
	}
	p.codes.issue(attributePurpose(in.UserAttributeKey), acc.username, p.newCode())
	return deliveryTo(in.UserAttributeKey, value), nil
}

// ConfirmUserAttribute implements authflow.Handlers.
func (p *Provider) ConfirmUserAttribute(ctx context.Context, in authflow.ConfirmUserAttributeInput) error {
	acc, err := p.sessionAccount(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.codes.check(attributePurpose(in.UserAttributeKey), acc.username, in.ConfirmationCode); err != nil {
		return err
	}
	acc.attrs[in.UserAttributeKey+"_verified"] = "true"
	return nil
}

// SignOut implements authflow.Handlers.
func (p *Provider) SignOut(ctx context.Context, in authflow.SignOutInput) error {
	p.mu.Lock()
	p.token = ""
	p.pending = nil
	p.mu.Unlock()

	p.emit(&authflow.HubPayload{Event: authflow.HubEventSignedOut})
	return nil
}

// RefreshSession re-issues the session token, dispatching tokenRefresh or
// tokenRefresh_failure on the hub. A failed refresh ends the session.
func (p *Provider) RefreshSession(ctx context.Context) error {
	err := p.refresh()
	if err != nil {
		p.emit(&authflow.HubPayload{
			Event: authflow.HubEventTokenRefreshFailure,
			Data:  map[string]any{"error": err},
		})
		return err
	}
	p.emit(&authflow.HubPayload{Event: authflow.HubEventTokenRefresh})
	return nil
}

func (p *Provider) refresh() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == "" {
		return unauthenticated()
	}
	claims, err := p.verify(p.token)
	if err != nil {
		p.token = ""
		return err
	}
	acc, ok := p.accounts[claims.Username]
	if !ok {
		p.token = ""
		return unauthenticated()
	}
	token, err := p.issue(acc)
	if err != nil {
		return err
	}
	p.token = token
	return nil
}

func attributePurpose(key string) string {
	return purposeAttribute + "/" + key
}

func usernameExists() error {
	return providerError(authflow.ErrorNameUsernameExists, "User already exists", nil)
}

func totpSecret() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b), nil
}

// primaryDelivery prefers email over phone.
func primaryDelivery(acc *account) *authflow.CodeDeliveryDetails {
	if v := acc.attrs[authflow.AttributeEmail]; v != "" {
		return deliveryTo(authflow.AttributeEmail, v)
	}
	if v := acc.attrs[authflow.AttributePhoneNumber]; v != "" {
		return deliveryTo(authflow.AttributePhoneNumber, v)
	}
	return nil
}

func deliveryTo(attribute, value string) *authflow.CodeDeliveryDetails {
	d := &authflow.CodeDeliveryDetails{AttributeName: attribute, Destination: mask(value)}
	if attribute == authflow.AttributePhoneNumber {
		d.DeliveryMedium = "SMS"
	} else {
		d.DeliveryMedium = "EMAIL"
	}
	return d
}

// mask hides all but the first character of an email local part, or all
// but the last four digits of a phone number.
func mask(value string) string {
	if at := strings.IndexByte(value, '@'); at > 0 {
		return value[:1] + "***" + value[at:]
	}
	if len(value) > 4 {
		return "+" + strings.Repeat("*", len(value)-5) + value[len(value)-4:]
	}
	return value
}
