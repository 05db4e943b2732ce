package authflow

import "context"

// Handlers is the identity provider capability set the flows drive.
// Rejections should be *ProviderError (or expose Name()) so guards can
// branch on the provider error name.
type Handlers interface {
	GetCurrentUser(ctx context.Context) (*AuthUser, error)
	FetchUserAttributes(ctx context.Context) (UserAttributes, error)
	SignIn(ctx context.Context, in SignInInput) (*SignInOutput, error)
	SignInWithRedirect(ctx context.Context, in SignInWithRedirectInput) error
	SignUp(ctx context.Context, in SignUpInput) (*SignUpOutput, error)
	SignOut(ctx context.Context, in SignOutInput) error
	AutoSignIn(ctx context.Context) (*SignInOutput, error)
	ConfirmSignIn(ctx context.Context, in ConfirmSignInInput) (*SignInOutput, error)
	ConfirmSignUp(ctx context.Context, in ConfirmSignUpInput) (*SignUpOutput, error)
	ConfirmResetPassword(ctx context.Context, in ConfirmResetPasswordInput) error
	ConfirmUserAttribute(ctx context.Context, in ConfirmUserAttributeInput) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) (*ResetPasswordOutput, error)
	ResendSignUpCode(ctx context.Context, in ResendSignUpCodeInput) (*CodeDeliveryDetails, error)
	SendUserAttributeVerificationCode(ctx context.Context, in SendUserAttributeVerificationCodeInput) (*CodeDeliveryDetails, error)
}

// HandlerOverrides replaces individual operations of a base Handlers.
// Nil fields fall through to the base.
type HandlerOverrides struct {
	GetCurrentUser                    func(ctx context.Context) (*AuthUser, error)
	FetchUserAttributes               func(ctx context.Context) (UserAttributes, error)
	SignIn                            func(ctx context.Context, in SignInInput) (*SignInOutput, error)
	SignInWithRedirect                func(ctx context.Context, in SignInWithRedirectInput) error
	SignUp                            func(ctx context.Context, in SignUpInput) (*SignUpOutput, error)
	SignOut                           func(ctx context.Context, in SignOutInput) error
	AutoSignIn                        func(ctx context.Context) (*SignInOutput, error)
	ConfirmSignIn                     func(ctx context.Context, in ConfirmSignInInput) (*SignInOutput, error)
	ConfirmSignUp                     func(ctx context.Context, in ConfirmSignUpInput) (*SignUpOutput, error)
	ConfirmResetPassword              func(ctx context.Context, in ConfirmResetPasswordInput) error
	ConfirmUserAttribute              func(ctx context.Context, in ConfirmUserAttributeInput) error
	ResetPassword                     func(ctx context.Context, in ResetPasswordInput) (*ResetPasswordOutput, error)
	ResendSignUpCode                  func(ctx context.Context, in ResendSignUpCodeInput) (*CodeDeliveryDetails, error)
	SendUserAttributeVerificationCode func(ctx context.Context, in SendUserAttributeVerificationCodeInput) (*CodeDeliveryDetails, error)
}

// Apply returns base with the non nil overrides layered on top.
func (o HandlerOverrides) Apply(base Handlers) Handlers {
	if base == nil {
		base = UnconfiguredHandlers()
	}
	return overriddenHandlers{base: base, o: o}
}

type overriddenHandlers struct {
	base Handlers
	o    HandlerOverrides
}

func (h overriddenHandlers) GetCurrentUser(ctx context.Context) (*AuthUser, error) {
	if h.o.GetCurrentUser != nil {
		return h.o.GetCurrentUser(ctx)
	}
	return h.base.GetCurrentUser(ctx)
}

func (h overriddenHandlers) FetchUserAttributes(ctx context.Context) (UserAttributes, error) {
	if h.o.FetchUserAttributes != nil {
		return h.o.FetchUserAttributes(ctx)
	}
	return h.base.FetchUserAttributes(ctx)
}

func (h overriddenHandlers) SignIn(ctx context.Context, in SignInInput) (*SignInOutput, error) {
	if h.o.SignIn != nil {
		return h.o.SignIn(ctx, in)
	}
	return h.base.SignIn(ctx, in)
}

func (h overriddenHandlers) SignInWithRedirect(ctx context.Context, in SignInWithRedirectInput) error {
	if h.o.SignInWithRedirect != nil {
		return h.o.SignInWithRedirect(ctx, in)
	}
	return h.base.SignInWithRedirect(ctx, in)
}

func (h overriddenHandlers) SignUp(ctx context.Context, in SignUpInput) (*SignUpOutput, error) {
	if h.o.SignUp != nil {
		return h.o.SignUp(ctx, in)
	}
	return h.base.SignUp(ctx, in)
}

func (h overriddenHandlers) SignOut(ctx context.Context, in SignOutInput) error {
	if h.o.SignOut != nil {
		return h.o.SignOut(ctx, in)
	}
	return h.base.SignOut(ctx, in)
}

func (h overriddenHandlers) AutoSignIn(ctx context.Context) (*SignInOutput, error) {
	if h.o.AutoSignIn != nil {
		return h.o.AutoSignIn(ctx)
	}
	return h.base.AutoSignIn(ctx)
}

func (h overriddenHandlers) ConfirmSignIn(ctx context.Context, in ConfirmSignInInput) (*SignInOutput, error) {
	if h.o.ConfirmSignIn != nil {
		return h.o.ConfirmSignIn(ctx, in)
	}
	return h.base.ConfirmSignIn(ctx, in)
}

func (h overriddenHandlers) ConfirmSignUp(ctx context.Context, in ConfirmSignUpInput) (*SignUpOutput, error) {
	if h.o.ConfirmSignUp != nil {
		return h.o.ConfirmSignUp(ctx, in)
	}
	return h.base.ConfirmSignUp(ctx, in)
}

func (h overriddenHandlers) ConfirmResetPassword(ctx context.Context, in ConfirmResetPasswordInput) error {
	if h.o.ConfirmResetPassword != nil {
		return h.o.ConfirmResetPassword(ctx, in)
	}
	return h.base.ConfirmResetPassword(ctx, in)
}

func (h overriddenHandlers) ConfirmUserAttribute(ctx context.Context, in ConfirmUserAttributeInput) error {
	if h.o.ConfirmUserAttribute != nil {
		return h.o.ConfirmUserAttribute(ctx, in)
	}
	return h.base.ConfirmUserAttribute(ctx, in)
}

func (h overriddenHandlers) ResetPassword(ctx context.Context, in ResetPasswordInput) (*ResetPasswordOutput, error) {
	if h.o.ResetPassword != nil {
		return h.o.ResetPassword(ctx, in)
	}
	return h.base.ResetPassword(ctx, in)
}

func (h overriddenHandlers) ResendSignUpCode(ctx context.Context, in ResendSignUpCodeInput) (*CodeDeliveryDetails, error) {
	if h.o.ResendSignUpCode != nil {
		return h.o.ResendSignUpCode(ctx, in)
	}
	return h.base.ResendSignUpCode(ctx, in)
}

func (h overriddenHandlers) SendUserAttributeVerificationCode(ctx context.Context, in SendUserAttributeVerificationCodeInput) (*CodeDeliveryDetails, error) {
	if h.o.SendUserAttributeVerificationCode != nil {
		return h.o.SendUserAttributeVerificationCode(ctx, in)
	}
	return h.base.SendUserAttributeVerificationCode(ctx, in)
}

// UnconfiguredHandlers rejects every call with ErrNoUserPool.
func UnconfiguredHandlers() Handlers {
	return unconfigured{}
}

type unconfigured struct{}

func (unconfigured) GetCurrentUser(context.Context) (*AuthUser, error) { return nil, ErrNoUserPool }
func (unconfigured) FetchUserAttributes(context.Context) (UserAttributes, error) {
	return nil, ErrNoUserPool
}
func (unconfigured) SignIn(context.Context, SignInInput) (*SignInOutput, error) {
	return nil, ErrNoUserPool
}
func (unconfigured) SignInWithRedirect(context.Context, SignInWithRedirectInput) error {
	return ErrNoUserPool
}
func (unconfigured) SignUp(context.Context, SignUpInput) (*SignUpOutput, error) {
	return nil, ErrNoUserPool
}
func (unconfigured) SignOut(context.Context, SignOutInput) error { return ErrNoUserPool }
func (unconfigured) AutoSignIn(context.Context) (*SignInOutput, error) {
	return nil, ErrNoUserPool
}
func (unconfigured) ConfirmSignIn(context.Context, ConfirmSignInInput) (*SignInOutput, error) {
	return nil, ErrNoUserPool
}
func (unconfigured) ConfirmSignUp(context.Context, ConfirmSignUpInput) (*SignUpOutput, error) {
	return nil, ErrNoUserPool
}
func (unconfigured) ConfirmResetPassword(context.Context, ConfirmResetPasswordInput) error {
	return ErrNoUserPool
}
func (unconfigured) ConfirmUserAttribute(context.Context, ConfirmUserAttributeInput) error {
	return ErrNoUserPool
}
func (unconfigured) ResetPassword(context.Context, ResetPasswordInput) (*ResetPasswordOutput, error) {
	return nil, ErrNoUserPool
}
func (unconfigured) ResendSignUpCode(context.Context, ResendSignUpCodeInput) (*CodeDeliveryDetails, error) {
	return nil, ErrNoUserPool
}
func (unconfigured) SendUserAttributeVerificationCode(context.Context, SendUserAttributeVerificationCodeInput) (*CodeDeliveryDetails, error) {
	return nil, ErrNoUserPool
}
