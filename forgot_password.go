package authflow

import "context"

const (
	fpForgotPassword       = "forgotPassword"
	fpConfirmResetPassword = "confirmResetPassword"
	fpResendCode           = "confirmResetPassword.resendCode"
)

var forgotPasswordEntryTable = stepTable{
	{name: "shouldResetPassword", when: isResetPasswordStep, target: fpConfirmResetPassword},
	{name: "shouldConfirmResetPassword", when: shouldConfirmResetPassword, target: fpConfirmResetPassword},
	{name: "default", target: fpForgotPassword},
}

var forgotPasswordResultTable = resultTable{
	{
		name:   "hasCompletedResetPassword",
		when:   hasCompletedResetPassword,
		apply:  (*FlowContext).setNextResetPasswordStep,
		target: stateResolved,
	},
	{
		name: "default",
		apply: func(c *FlowContext, r result) {
			c.setCodeDeliveryDetails(r)
			c.setNextResetPasswordStep(r)
		},
		target: fpConfirmResetPassword,
	},
}

type forgotPasswordFlow struct {
	machine
}

func newForgotPasswordFlow(seed *ActorDoneData) *forgotPasswordFlow {
	f := &forgotPasswordFlow{machine: newMachine(FlowForgotPassword, seedContext(StepForgotPassword, seed),
		submitOf(fpForgotPassword), submitOf(fpConfirmResetPassword), fpResendCode)}
	f.onEnter = f.enter
	return f
}

func (f *forgotPasswordFlow) start() { f.goTo(stateInit) }

func (f *forgotPasswordFlow) enter(state string) {
	switch state {
	case stateInit:
		f.goTo(forgotPasswordEntryTable.pick(f.ctx))
	case fpForgotPassword, fpConfirmResetPassword:
		f.goTo(idleOf(state))
	case idleOf(fpForgotPassword), idleOf(fpConfirmResetPassword):
		f.notifyParent()
	case submitOf(fpForgotPassword):
		f.ctx.clearError()
		f.ctx.setUsername(f.event.Data)
		in := ResetPasswordInput{Username: f.ctx.Username}
		f.invoke(opResetPassword, func(ctx context.Context, h Handlers) (any, error) {
			return h.ResetPassword(ctx, in)
		})
	case fpResendCode:
		f.ctx.clearError()
		in := ResetPasswordInput{Username: f.ctx.Username}
		f.invoke(opResetPassword, func(ctx context.Context, h Handlers) (any, error) {
			return h.ResetPassword(ctx, in)
		})
	case submitOf(fpConfirmResetPassword):
		f.ctx.clearError()
		f.ctx.setUsername(f.event.Data)
		in := ConfirmResetPasswordInput{
			Username:         f.ctx.Username,
			ConfirmationCode: f.event.Data.String("confirmationCode"),
			NewPassword:      f.event.Data.String("newPassword"),
		}
		f.invoke(opConfirmResetPassword, func(ctx context.Context, h Handlers) (any, error) {
			return nil, h.ConfirmResetPassword(ctx, in)
		})
	}
}

func (f *forgotPasswordFlow) send(ev Event) {
	if f.final {
		return
	}
	f.event = ev
	switch f.state {
	case idleOf(fpForgotPassword):
		if ev.Type == EventSubmit {
			f.goTo(submitOf(fpForgotPassword))
		}
	case idleOf(fpConfirmResetPassword):
		switch ev.Type {
		case EventSubmit:
			f.goTo(submitOf(fpConfirmResetPassword))
		case EventResend:
			f.goTo(fpResendCode)
		}
	}
}

func (f *forgotPasswordFlow) settle(r result) {
	if f.final {
		return
	}
	switch f.state {
	case submitOf(fpForgotPassword):
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
			f.goTo(idleOf(fpForgotPassword))
			return
		}
		rule, _ := forgotPasswordResultTable.pick(r)
		rule.apply(&f.ctx, r)
		if rule.target == stateResolved {
			f.resolve()
			return
		}
		f.goTo(rule.target)
	case fpResendCode:
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
		} else {
			f.ctx.setCodeDeliveryDetails(r)
		}
		f.goTo(idleOf(fpConfirmResetPassword))
	case submitOf(fpConfirmResetPassword):
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
			f.goTo(idleOf(fpConfirmResetPassword))
			return
		}
		// The confirmation call carries no next step; the reset is done
		// and the user continues at sign in.
		f.ctx.setStep(StepSignIn)
		f.resolve()
	}
}
