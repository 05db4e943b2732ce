package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/provider/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testCode = "424242"

type hubRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *hubRecorder) listen(hub authflow.Hub) {
	hub.Listen(authflow.AuthChannel, "recorder", func(c authflow.HubCapsule) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, c.Payload.Event)
	})
}

func (r *hubRecorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestProvider(t *testing.T, mutate func(*memory.Config), opts ...memory.Option) (*memory.Provider, *hubRecorder) {
	t.Helper()
	cfg := memory.DefaultConfig([]byte("test-signing-key-0123456789abcdef"))
	cfg.BcryptCost = bcrypt.MinCost
	if mutate != nil {
		mutate(&cfg)
	}

	hub := authflow.NewEventHub(authflow.WithHubLogger(authflow.NopLogger()))
	rec := &hubRecorder{}
	rec.listen(hub)

	opts = append([]memory.Option{
		memory.WithHub(hub),
		memory.WithCodeGenerator(func() string { return testCode }),
	}, opts...)
	p, err := memory.New(cfg, opts...)
	require.NoError(t, err)
	return p, rec
}

func seed(t *testing.T, p *memory.Provider, spec memory.UserSpec) *authflow.AuthUser {
	t.Helper()
	if spec.Password == "" {
		spec.Password = "correct-horse"
	}
	u, err := p.CreateUser(spec)
	require.NoError(t, err)
	return u
}

func TestNewRequiresSigningKey(t *testing.T) {
	_, err := memory.New(memory.Config{})
	require.ErrorIs(t, err, memory.ErrSigningKeyRequired)
	assert.Equal(t, memory.TextCodeSigningKeyRequired, authflow.ErrorName(err))
}

func TestSignInAndCurrentUser(t *testing.T) {
	ctx := context.Background()
	p, rec := newTestProvider(t, nil)
	alice := seed(t, p, memory.UserSpec{
		Username:   "alice",
		Confirmed:  true,
		Attributes: authflow.UserAttributes{"email": "alice@example.com", "email_verified": "true"},
	})

	_, err := p.GetCurrentUser(ctx)
	assert.Equal(t, authflow.ErrorNameUserUnauthorized, authflow.ErrorName(err))

	out, err := p.SignIn(ctx, authflow.SignInInput{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	assert.True(t, out.IsSignedIn)
	assert.Equal(t, authflow.StepDone, out.NextStep.SignInStep)
	assert.Equal(t, []string{authflow.HubEventSignedIn}, rec.Events())

	u, err := p.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice, u)

	attrs, err := p.FetchUserAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", attrs["email"])
	assert.Equal(t, alice.UserID, attrs["sub"])

	require.NoError(t, p.SignOut(ctx, authflow.SignOutInput{}))
	assert.Empty(t, p.Token())
	assert.Equal(t, []string{authflow.HubEventSignedIn, authflow.HubEventSignedOut}, rec.Events())
}

func TestSignInRejections(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	seed(t, p, memory.UserSpec{Username: "alice", Confirmed: true})
	seed(t, p, memory.UserSpec{Username: "bob"})

	tests := []struct {
		name     string
		in       authflow.SignInInput
		expected string
	}{
		{name: "blank input", in: authflow.SignInInput{}, expected: authflow.ErrorNameInvalidParameter},
		{name: "unknown user", in: authflow.SignInInput{Username: "carol", Password: "correct-horse"}, expected: authflow.ErrorNameUserNotFound},
		{name: "wrong password", in: authflow.SignInInput{Username: "alice", Password: "wrong-horse"}, expected: authflow.ErrorNameNotAuthorized},
		{name: "unconfirmed", in: authflow.SignInInput{Username: "bob", Password: "correct-horse"}, expected: authflow.ErrorNameUserNotConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.SignIn(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.expected, authflow.ErrorName(err))
		})
	}
}

func TestSignInWithSMSChallenge(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	seed(t, p, memory.UserSpec{
		Username:   "alice",
		Confirmed:  true,
		MFA:        memory.MFASMS,
		Attributes: authflow.UserAttributes{"phone_number": "+1 201 555 0123"},
	})

	out, err := p.SignIn(ctx, authflow.SignInInput{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	assert.False(t, out.IsSignedIn)
	assert.Equal(t, authflow.StepConfirmSignInWithSMSCode, out.NextStep.SignInStep)
	require.NotNil(t, out.NextStep.CodeDeliveryDetails)
	assert.Equal(t, "SMS", out.NextStep.CodeDeliveryDetails.DeliveryMedium)
	assert.Equal(t, "+*******0123", out.NextStep.CodeDeliveryDetails.Destination)

	_, err = p.ConfirmSignIn(ctx, authflow.ConfirmSignInInput{ChallengeResponse: "000000"})
	assert.Equal(t, authflow.ErrorNameCodeMismatch, authflow.ErrorName(err))

	out, err = p.ConfirmSignIn(ctx, authflow.ConfirmSignInInput{ChallengeResponse: testCode})
	require.NoError(t, err)
	assert.True(t, out.IsSignedIn)
	assert.NotEmpty(t, p.Token())
}

func TestSignInWithTOTPSetup(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	seed(t, p, memory.UserSpec{Username: "alice", Confirmed: true, MFA: memory.MFATOTP})

	out, err := p.SignIn(ctx, authflow.SignInInput{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, authflow.StepContinueSignInWithTOTPSetup, out.NextStep.SignInStep)
	require.NotNil(t, out.NextStep.TOTPSetupDetails)
	assert.Len(t, out.NextStep.TOTPSetupDetails.SharedSecret, 32)

	code, ok := p.LastCode("alice")
	require.True(t, ok)
	_, err = p.ConfirmSignIn(ctx, authflow.ConfirmSignInInput{ChallengeResponse: code})
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx, authflow.SignOutInput{}))

	out, err = p.SignIn(ctx, authflow.SignInInput{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, authflow.StepConfirmSignInWithTOTPCode, out.NextStep.SignInStep)
}

func TestSignInForcedNewPassword(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	seed(t, p, memory.UserSpec{
		Username:          "alice",
		Confirmed:         true,
		ForceNewPassword:  true,
		MissingAttributes: []string{"name"},
	})

	out, err := p.SignIn(ctx, authflow.SignInInput{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, authflow.StepConfirmSignInWithNewPasswordRequired, out.NextStep.SignInStep)
	assert.Equal(t, []string{"name"}, out.NextStep.MissingAttributes)

	_, err = p.ConfirmSignIn(ctx, authflow.ConfirmSignInInput{ChallengeResponse: "short"})
	assert.Equal(t, authflow.ErrorNameInvalidPassword, authflow.ErrorName(err))

	out, err = p.ConfirmSignIn(ctx, authflow.ConfirmSignInInput{ChallengeResponse: "battery-staple"})
	require.NoError(t, err)
	assert.True(t, out.IsSignedIn)

	require.NoError(t, p.SignOut(ctx, authflow.SignOutInput{}))
	_, err = p.SignIn(ctx, authflow.SignInInput{Username: "alice", Password: "battery-staple"})
	assert.NoError(t, err)
}

func TestConfirmSignInWithoutChallenge(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	_, err := p.ConfirmSignIn(context.Background(), authflow.ConfirmSignInInput{ChallengeResponse: testCode})
	assert.Equal(t, authflow.ErrorNameInvalidParameter, authflow.ErrorName(err))
}

func TestSignUpConfirmAndAutoSignIn(t *testing.T) {
	ctx := context.Background()
	p, rec := newTestProvider(t, nil)

	out, err := p.SignUp(ctx, authflow.SignUpInput{
		Username:       "alice",
		Password:       "correct-horse",
		UserAttributes: authflow.UserAttributes{"email": "alice@example.com", "phone_number": "(201) 555-0123"},
		AutoSignIn:     true,
	})
	require.NoError(t, err)
	assert.False(t, out.IsSignUpComplete)
	assert.NotEmpty(t, out.UserID)
	assert.Equal(t, authflow.StepConfirmSignUp, out.NextStep.SignUpStep)
	assert.Equal(t, "a***@example.com", out.NextStep.CodeDeliveryDetails.Destination)

	_, err = p.AutoSignIn(ctx)
	assert.Equal(t, "AutoSignInException", authflow.ErrorName(err))

	d, err := p.ResendSignUpCode(ctx, authflow.ResendSignUpCodeInput{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "EMAIL", d.DeliveryMedium)

	_, err = p.ConfirmSignUp(ctx, authflow.ConfirmSignUpInput{Username: "alice", ConfirmationCode: "nope"})
	assert.Equal(t, authflow.ErrorNameCodeMismatch, authflow.ErrorName(err))

	confirmed, err := p.ConfirmSignUp(ctx, authflow.ConfirmSignUpInput{Username: "alice", ConfirmationCode: testCode})
	require.NoError(t, err)
	assert.True(t, confirmed.IsSignUpComplete)
	assert.Equal(t, authflow.StepCompleteAutoSignIn, confirmed.NextStep.SignUpStep)

	_, err = p.ResendSignUpCode(ctx, authflow.ResendSignUpCodeInput{Username: "alice"})
	assert.Equal(t, authflow.AlreadyConfirmedMessage, authflow.ErrorMessage(err))

	signedIn, err := p.AutoSignIn(ctx)
	require.NoError(t, err)
	assert.True(t, signedIn.IsSignedIn)

	attrs, err := p.FetchUserAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "+12015550123", attrs["phone_number"])
	assert.Equal(t, "true", attrs["email_verified"])
	assert.Equal(t, "false", attrs["phone_number_verified"])

	assert.Equal(t, []string{
		authflow.HubEventAutoSignInFailure,
		authflow.HubEventSignUp,
		authflow.HubEventAutoSignIn,
	}, rec.Events())
}

func TestSignUpAutoVerify(t *testing.T) {
	p, _ := newTestProvider(t, func(c *memory.Config) { c.AutoVerify = true })

	out, err := p.SignUp(context.Background(), authflow.SignUpInput{
		Username:       "alice",
		Password:       "correct-horse",
		UserAttributes: authflow.UserAttributes{"email": "alice@example.com"},
	})
	require.NoError(t, err)
	assert.True(t, out.IsSignUpComplete)
	assert.Equal(t, authflow.StepDone, out.NextStep.SignUpStep)
}

func TestSignUpRejections(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	seed(t, p, memory.UserSpec{Username: "alice"})

	tests := []struct {
		name     string
		in       authflow.SignUpInput
		expected string
	}{
		{name: "short password", in: authflow.SignUpInput{Username: "bob", Password: "short"}, expected: authflow.ErrorNameInvalidParameter},
		{
			name:     "bad email",
			in:       authflow.SignUpInput{Username: "bob", Password: "correct-horse", UserAttributes: authflow.UserAttributes{"email": "not-an-email"}},
			expected: authflow.ErrorNameInvalidParameter,
		},
		{
			name:     "bad phone",
			in:       authflow.SignUpInput{Username: "bob", Password: "correct-horse", UserAttributes: authflow.UserAttributes{"phone_number": "12"}},
			expected: authflow.ErrorNameInvalidParameter,
		},
		{name: "taken", in: authflow.SignUpInput{Username: "alice", Password: "correct-horse"}, expected: authflow.ErrorNameUsernameExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.SignUp(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.expected, authflow.ErrorName(err))
		})
	}
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	seed(t, p, memory.UserSpec{
		Username:   "alice",
		Confirmed:  true,
		Attributes: authflow.UserAttributes{"email": "alice@example.com"},
	})

	_, err := p.ResetPassword(ctx, authflow.ResetPasswordInput{Username: "carol"})
	assert.Equal(t, authflow.ErrorNameUserNotFound, authflow.ErrorName(err))

	out, err := p.ResetPassword(ctx, authflow.ResetPasswordInput{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, authflow.StepConfirmResetPasswordWithCode, out.NextStep.ResetPasswordStep)

	err = p.ConfirmResetPassword(ctx, authflow.ConfirmResetPasswordInput{Username: "alice", ConfirmationCode: "nope", NewPassword: "battery-staple"})
	assert.Equal(t, authflow.ErrorNameCodeMismatch, authflow.ErrorName(err))

	require.NoError(t, p.ConfirmResetPassword(ctx, authflow.ConfirmResetPasswordInput{
		Username:         "alice",
		ConfirmationCode: testCode,
		NewPassword:      "battery-staple",
	}))

	err = p.ConfirmResetPassword(ctx, authflow.ConfirmResetPasswordInput{Username: "alice", ConfirmationCode: testCode, NewPassword: "battery-staple"})
	assert.Equal(t, authflow.ErrorNameExpiredCode, authflow.ErrorName(err), "codes are single use")

	_, err = p.SignIn(ctx, authflow.SignInInput{Username: "alice", Password: "battery-staple"})
	assert.NoError(t, err)
}

func TestVerifyUserAttribute(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	seed(t, p, memory.UserSpec{
		Username:   "alice",
		Confirmed:  true,
		Attributes: authflow.UserAttributes{"email": "alice@example.com", "email_verified": "false"},
	})

	_, err := p.SendUserAttributeVerificationCode(ctx, authflow.SendUserAttributeVerificationCodeInput{UserAttributeKey: "email"})
	assert.Equal(t, authflow.ErrorNameUserUnauthorized, authflow.ErrorName(err))

	_, err = p.SignIn(ctx, authflow.SignInInput{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = p.SendUserAttributeVerificationCode(ctx, authflow.SendUserAttributeVerificationCodeInput{UserAttributeKey: "phone_number"})
	assert.Equal(t, authflow.ErrorNameInvalidParameter, authflow.ErrorName(err))

	d, err := p.SendUserAttributeVerificationCode(ctx, authflow.SendUserAttributeVerificationCodeInput{UserAttributeKey: "email"})
	require.NoError(t, err)
	assert.Equal(t, &authflow.CodeDeliveryDetails{Destination: "a***@example.com", DeliveryMedium: "EMAIL", AttributeName: "email"}, d)

	require.NoError(t, p.ConfirmUserAttribute(ctx, authflow.ConfirmUserAttributeInput{UserAttributeKey: "email", ConfirmationCode: testCode}))
	attrs, err := p.FetchUserAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "true", attrs["email_verified"])
}

func TestSessionExpiresAndRefreshes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	p, rec := newTestProvider(t, nil, memory.WithClock(clock))
	seed(t, p, memory.UserSpec{Username: "alice", Confirmed: true})

	_, err := p.SignIn(ctx, authflow.SignInInput{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	require.NoError(t, p.RefreshSession(ctx))

	now = now.Add(45 * time.Minute)
	_, err = p.GetCurrentUser(ctx)
	require.NoError(t, err, "refreshed token outlives the original")

	now = now.Add(2 * time.Hour)
	_, err = p.GetCurrentUser(ctx)
	assert.Equal(t, authflow.ErrorNameNotAuthorized, authflow.ErrorName(err))

	err = p.RefreshSession(ctx)
	assert.Error(t, err)
	assert.Empty(t, p.Token())
	assert.Equal(t, []string{
		authflow.HubEventSignedIn,
		authflow.HubEventTokenRefresh,
		authflow.HubEventTokenRefreshFailure,
	}, rec.Events())
}

func TestKeyRotation(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	seed(t, p, memory.UserSpec{Username: "alice", Confirmed: true})

	_, err := p.SignIn(ctx, authflow.SignInInput{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	p.RotateKey("k2", []byte("second-signing-key-0123456789abcd"))
	assert.ElementsMatch(t, []string{"default", "k2"}, p.KeyIDs())
	assert.ErrorIs(t, p.RetireKey("k2"), memory.ErrActiveKeyRetire, "the active key cannot be retired")

	_, err = p.GetCurrentUser(ctx)
	require.NoError(t, err, "tokens signed with the previous key still verify")

	require.NoError(t, p.RetireKey("default"))
	_, err = p.GetCurrentUser(ctx)
	assert.Equal(t, authflow.ErrorNameNotAuthorized, authflow.ErrorName(err))
}

func TestFederatedSignIn(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)

	_, err := p.FederatedSignIn(ctx, memory.FederatedIdentity{})
	assert.Error(t, err)

	u, err := p.FederatedSignIn(ctx, memory.FederatedIdentity{
		Provider:      "Google",
		Subject:       "1234",
		Email:         "alice@example.com",
		EmailVerified: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "google_1234", u.Username)

	again, err := p.FederatedSignIn(ctx, memory.FederatedIdentity{Provider: "google", Subject: "1234"})
	require.NoError(t, err)
	assert.Equal(t, u.UserID, again.UserID)

	current, err := p.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, current.UserID)

	restarted, _ := newTestProvider(t, nil)
	fresh, err := restarted.FederatedSignIn(ctx, memory.FederatedIdentity{Provider: "Google", Subject: "1234"})
	require.NoError(t, err)
	assert.Equal(t, u.UserID, fresh.UserID)
}

func TestSignInWithRedirectDelegates(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	assert.ErrorIs(t, p.SignInWithRedirect(ctx, authflow.SignInWithRedirectInput{}), authflow.ErrUnsupportedOperation)

	var got authflow.SignInWithRedirectInput
	p, _ = newTestProvider(t, nil, memory.WithRedirect(func(_ context.Context, in authflow.SignInWithRedirectInput) error {
		got = in
		return nil
	}))
	require.NoError(t, p.SignInWithRedirect(ctx, authflow.SignInWithRedirectInput{Provider: "Google"}))
	assert.Equal(t, "Google", got.Provider)
}
