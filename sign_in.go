package authflow

import "context"

const (
	siSignIn              = "signIn"
	siConfirmSignIn       = "confirmSignIn"
	siForceChangePassword = "forceChangePassword"
	siSetupTOTP           = "setupTotp"
	siSetupEmail          = "setupEmail"
	siSelectMFAType       = "selectMfaType"
	siFederatedSignIn     = "federatedSignIn"
	siFetchUserAttributes = "fetchUserAttributes"
	siResendSignUpCode    = "resendSignUpCode"
	siResetPassword       = "resetPassword"
)

// Handler operation names, used for logging and stale result checks.
const (
	opGetCurrentUser       = "getCurrentUser"
	opFetchUserAttributes  = "fetchUserAttributes"
	opSignIn               = "signIn"
	opSignInWithRedirect   = "signInWithRedirect"
	opSignUp               = "signUp"
	opSignOut              = "signOut"
	opAutoSignIn           = "autoSignIn"
	opConfirmSignIn        = "confirmSignIn"
	opConfirmSignUp        = "confirmSignUp"
	opConfirmResetPassword = "confirmResetPassword"
	opConfirmUserAttribute = "confirmUserAttribute"
	opResetPassword        = "resetPassword"
	opResendSignUpCode     = "resendSignUpCode"
	opSendVerificationCode = "sendUserAttributeVerificationCode"
)

// signInEntryTable picks the sub flow from the current step.
var signInEntryTable = stepTable{
	{name: "shouldConfirmSignIn", when: shouldConfirmSignIn, target: siConfirmSignIn},
	{name: "shouldSetupTotp", when: shouldSetupTOTP, target: siSetupTOTP},
	{name: "shouldSetupEmail", when: shouldSetupEmail, target: siSetupEmail},
	{name: "shouldSelectMfaType", when: shouldSelectMFAType, target: siSelectMFAType},
	{name: "isShouldConfirmSignInWithNewPassword", when: isShouldConfirmSignInWithNewPassword, target: siForceChangePassword},
	{name: "default", target: siSignIn},
}

type postSignInTargets struct {
	completed     string
	newPassword   string
	reset         string
	confirmSignUp string
	fallback      string
}

// postSignInTable routes any sign in shaped output. Order matters: a new
// password requirement wins over reset, reset over confirm sign up.
func postSignInTable(t postSignInTargets) resultTable {
	return resultTable{
		{
			name:   "hasCompletedSignIn",
			when:   hasCompletedSignIn,
			apply:  (*FlowContext).setNextSignInStep,
			target: t.completed,
		},
		{
			name: "shouldConfirmSignInWithNewPassword",
			when: shouldConfirmSignInWithNewPassword,
			apply: func(c *FlowContext, r result) {
				c.setNextSignInStep(r)
				c.setMissingAttributes(r)
			},
			target: t.newPassword,
		},
		{
			name:   "shouldResetPasswordFromSignIn",
			when:   shouldResetPasswordFromSignIn,
			apply:  (*FlowContext).setNextSignInStep,
			target: t.reset,
		},
		{
			name:   "shouldConfirmSignUpFromSignIn",
			when:   shouldConfirmSignUpFromSignIn,
			apply:  (*FlowContext).setNextSignInStep,
			target: t.confirmSignUp,
		},
		{
			name: "default",
			apply: func(c *FlowContext, r result) {
				c.setChallengeName(r)
				c.setNextSignInStep(r)
				c.setCodeDeliveryDetails(r)
				c.setTOTPSecretCode(r)
				c.setAllowedMFATypes(r)
				c.setMissingAttributes(r)
			},
			target: t.fallback,
		},
	}
}

var signInResultTable = postSignInTable(postSignInTargets{
	completed:     siFetchUserAttributes,
	newPassword:   siForceChangePassword,
	reset:         siResetPassword,
	confirmSignUp: siResendSignUpCode,
	fallback:      stateInit,
})

// signInCompounds are the {idle, submit} sub flows.
var signInCompounds = []string{
	siSignIn, siConfirmSignIn, siForceChangePassword, siSetupTOTP, siSetupEmail, siSelectMFAType,
}

type signInFlow struct {
	machine
}

func newSignInFlow(seed *ActorDoneData) *signInFlow {
	pending := []string{siResendSignUpCode}
	for _, c := range signInCompounds {
		pending = append(pending, submitOf(c))
	}
	f := &signInFlow{machine: newMachine(FlowSignIn, seedContext(StepSignIn, seed), pending...)}
	f.onEnter = f.enter
	f.onExit = f.exit
	return f
}

func (f *signInFlow) start() { f.goTo(stateInit) }

// exit drops the remote error when a challenge form is abandoned.
func (f *signInFlow) exit(from, to string) {
	for _, c := range signInCompounds {
		if c != siSignIn && leaves(from, to, c) {
			f.ctx.clearError()
			return
		}
	}
}

func (f *signInFlow) enter(state string) {
	switch state {
	case stateInit:
		f.goTo(signInEntryTable.pick(f.ctx))
	case siSignIn, siConfirmSignIn, siForceChangePassword, siSetupTOTP, siSetupEmail, siSelectMFAType:
		f.goTo(idleOf(state))
	case idleOf(siSignIn), idleOf(siConfirmSignIn), idleOf(siForceChangePassword),
		idleOf(siSetupTOTP), idleOf(siSetupEmail), idleOf(siSelectMFAType):
		f.notifyParent()
	case submitOf(siSignIn):
		f.ctx.clearError()
		f.ctx.setUsername(f.event.Data)
		in := signInInputFrom(f.event.Data)
		f.invoke(opSignIn, func(ctx context.Context, h Handlers) (any, error) {
			return h.SignIn(ctx, in)
		})
	case submitOf(siConfirmSignIn), submitOf(siForceChangePassword), submitOf(siSetupTOTP),
		submitOf(siSetupEmail), submitOf(siSelectMFAType):
		f.ctx.clearError()
		f.ctx.setUsername(f.event.Data)
		in := confirmSignInInputFrom(f.event.Data)
		f.invoke(opConfirmSignIn, func(ctx context.Context, h Handlers) (any, error) {
			return h.ConfirmSignIn(ctx, in)
		})
	case siFederatedSignIn:
		f.ctx.clearError()
		in := redirectInputFrom(f.event.Data)
		f.invoke(opSignInWithRedirect, func(ctx context.Context, h Handlers) (any, error) {
			return nil, h.SignInWithRedirect(ctx, in)
		})
	case siFetchUserAttributes:
		f.invoke(opFetchUserAttributes, func(ctx context.Context, h Handlers) (any, error) {
			return h.FetchUserAttributes(ctx)
		})
	case siResendSignUpCode:
		in := ResendSignUpCodeInput{Username: f.ctx.Username}
		f.invoke(opResendSignUpCode, func(ctx context.Context, h Handlers) (any, error) {
			return h.ResendSignUpCode(ctx, in)
		})
	case siResetPassword:
		in := ResetPasswordInput{Username: f.ctx.Username}
		f.invoke(opResetPassword, func(ctx context.Context, h Handlers) (any, error) {
			return h.ResetPassword(ctx, in)
		})
	}
}

func (f *signInFlow) send(ev Event) {
	if f.final {
		return
	}
	f.event = ev
	compound := top(f.state)
	if f.state != idleOf(compound) {
		return
	}
	switch ev.Type {
	case EventSubmit:
		f.goTo(submitOf(compound))
	case EventFederatedSignIn:
		if compound == siSignIn {
			f.goTo(siFederatedSignIn)
		}
	case EventSignIn:
		if compound != siSignIn && compound != siForceChangePassword {
			f.goTo(siSignIn)
		}
	}
}

func (f *signInFlow) settle(r result) {
	if f.final {
		return
	}
	switch f.state {
	case siFederatedSignIn:
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
		}
		f.goTo(siSignIn)
	case siFetchUserAttributes:
		settleFetchUserAttributes(&f.machine, r)
	case siResendSignUpCode:
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
			f.goTo(siSignIn)
			return
		}
		f.ctx.setCodeDeliveryDetails(r)
		f.resolve()
	case siResetPassword:
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
			f.goTo(siSignIn)
			return
		}
		f.ctx.setCodeDeliveryDetails(r)
		f.resolve()
	default:
		compound := top(f.state)
		if f.state != submitOf(compound) {
			return
		}
		if r.err != nil {
			if isUserNotConfirmed(r) {
				f.ctx.setStep(StepConfirmSignUp)
				f.goTo(siResendSignUpCode)
				return
			}
			f.ctx.setRemoteError(r.err)
			f.goTo(idleOf(compound))
			return
		}
		rule, _ := signInResultTable.pick(r)
		if rule.apply != nil {
			rule.apply(&f.ctx, r)
		}
		f.goTo(rule.target)
	}
}

// settleFetchUserAttributes finishes a flow after the post sign in
// attribute lookup. A failed lookup counts as nothing to verify.
func settleFetchUserAttributes(m *machine, r result) {
	if r.err == nil && shouldVerifyAttribute(r) {
		m.ctx.setStep(StepShouldConfirmUserAttribute)
		m.ctx.setUnverifiedUserAttributes(r)
	} else {
		m.ctx.setStep(StepConfirmAttributeComplete)
	}
	m.resolve()
}
