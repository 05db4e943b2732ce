package authflow

import "context"

const (
	suSignUp              = "signUp"
	suConfirmSignUp       = "confirmSignUp"
	suAutoSignIn          = "autoSignIn"
	suFetchUserAttributes = "fetchUserAttributes"
	suFederatedSignIn     = "federatedSignIn"
	suResendSignUpCode    = "resendSignUpCode"
	suResetPassword       = "resetPassword"
)

var signUpEntryTable = stepTable{
	{name: "isConfirmSignUpStep", when: isConfirmSignUpStep, target: suConfirmSignUp},
	{name: "default", target: suSignUp},
}

// signUpResultTable handles both the sign up and confirm sign up outputs.
var signUpResultTable = resultTable{
	{
		name:   "hasCompletedSignUp",
		when:   hasCompletedSignUp,
		apply:  (*FlowContext).setNextSignUpStep,
		target: stateResolved,
	},
	{
		name:   "shouldAutoSignIn",
		when:   shouldAutoSignIn,
		apply:  (*FlowContext).setNextSignUpStep,
		target: suAutoSignIn,
	},
	{
		name: "default",
		apply: func(c *FlowContext, r result) {
			c.setCodeDeliveryDetails(r)
			c.setNextSignUpStep(r)
		},
		target: stateInit,
	},
}

var autoSignInResultTable = postSignInTable(postSignInTargets{
	completed:     suFetchUserAttributes,
	newPassword:   stateResolved,
	reset:         suResetPassword,
	confirmSignUp: suResendSignUpCode,
	fallback:      stateResolved,
})

type signUpFlow struct {
	machine
}

func newSignUpFlow(seed *ActorDoneData) *signUpFlow {
	f := &signUpFlow{machine: newMachine(FlowSignUp, seedContext(StepSignUp, seed),
		submitOf(suSignUp), submitOf(suConfirmSignUp), suAutoSignIn, suResendSignUpCode)}
	f.onEnter = f.enter
	f.onExit = f.exit
	return f
}

func (f *signUpFlow) start() { f.goTo(stateInit) }

func (f *signUpFlow) enter(state string) {
	switch state {
	case stateInit:
		f.goTo(signUpEntryTable.pick(f.ctx))
	case suSignUp, suConfirmSignUp:
		f.goTo(idleOf(state))
	case idleOf(suSignUp), idleOf(suConfirmSignUp):
		f.notifyParent()
	case submitOf(suSignUp):
		f.notifyParent()
		f.ctx.setUsername(f.event.Data)
		f.ctx.clearError()
		in := signUpInputFrom(f.event.Data)
		f.invoke(opSignUp, func(ctx context.Context, h Handlers) (any, error) {
			return h.SignUp(ctx, in)
		})
	case submitOf(suConfirmSignUp):
		f.ctx.clearError()
		f.ctx.setUsername(f.event.Data)
		in := ConfirmSignUpInput{
			Username:         f.ctx.Username,
			ConfirmationCode: f.event.Data.String("confirmationCode"),
		}
		f.invoke(opConfirmSignUp, func(ctx context.Context, h Handlers) (any, error) {
			return h.ConfirmSignUp(ctx, in)
		})
	case suAutoSignIn:
		f.invoke(opAutoSignIn, func(ctx context.Context, h Handlers) (any, error) {
			return h.AutoSignIn(ctx)
		})
	case suFetchUserAttributes:
		f.invoke(opFetchUserAttributes, func(ctx context.Context, h Handlers) (any, error) {
			return h.FetchUserAttributes(ctx)
		})
	case suFederatedSignIn:
		f.notifyParent()
		f.ctx.clearError()
		in := redirectInputFrom(f.event.Data)
		f.invoke(opSignInWithRedirect, func(ctx context.Context, h Handlers) (any, error) {
			return nil, h.SignInWithRedirect(ctx, in)
		})
	case suResendSignUpCode:
		f.ctx.clearError()
		f.ctx.setUsername(f.event.Data)
		in := ResendSignUpCodeInput{Username: f.ctx.Username}
		f.invoke(opResendSignUpCode, func(ctx context.Context, h Handlers) (any, error) {
			return h.ResendSignUpCode(ctx, in)
		})
	case suResetPassword:
		in := ResetPasswordInput{Username: f.ctx.Username}
		f.invoke(opResetPassword, func(ctx context.Context, h Handlers) (any, error) {
			return h.ResetPassword(ctx, in)
		})
	}
}

func (f *signUpFlow) exit(from, to string) {
	if leaves(from, to, suSignUp) {
		f.ctx.clearError()
	}
}

func (f *signUpFlow) send(ev Event) {
	if f.final {
		return
	}
	f.event = ev
	switch f.state {
	case idleOf(suSignUp):
		switch ev.Type {
		case EventSubmit:
			f.goTo(submitOf(suSignUp))
		case EventFederatedSignIn:
			f.goTo(suFederatedSignIn)
		}
	case idleOf(suConfirmSignUp):
		switch ev.Type {
		case EventSubmit:
			f.goTo(submitOf(suConfirmSignUp))
		case EventResend:
			f.goTo(suResendSignUpCode)
		}
	}
}

func (f *signUpFlow) settle(r result) {
	if f.final {
		return
	}
	switch f.state {
	case submitOf(suSignUp):
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
			f.goTo(idleOf(suSignUp))
			return
		}
		f.route(signUpResultTable, r)
	case submitOf(suConfirmSignUp):
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
			f.goTo(idleOf(suConfirmSignUp))
			return
		}
		f.route(signUpResultTable, r)
	case suAutoSignIn:
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
			f.resolve()
			return
		}
		f.route(autoSignInResultTable, r)
	case suFetchUserAttributes:
		settleFetchUserAttributes(&f.machine, r)
	case suFederatedSignIn:
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
		}
		f.goTo(suSignUp)
	case suResendSignUpCode:
		switch {
		case isUserAlreadyConfirmed(r):
			f.resolve()
		case r.err != nil:
			f.ctx.setRemoteError(r.err)
			f.goTo(idleOf(suConfirmSignUp))
		default:
			f.ctx.setCodeDeliveryDetails(r)
			f.goTo(suConfirmSignUp)
		}
	case suResetPassword:
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
			f.goTo(suSignUp)
			return
		}
		f.ctx.setCodeDeliveryDetails(r)
		f.resolve()
	}
}

func (f *signUpFlow) route(t resultTable, r result) {
	rule, _ := t.pick(r)
	if rule.apply != nil {
		rule.apply(&f.ctx, r)
	}
	if rule.target == stateResolved {
		f.resolve()
		return
	}
	f.goTo(rule.target)
}
