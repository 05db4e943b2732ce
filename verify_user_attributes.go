package authflow

import "context"

const (
	vaSelectUserAttributes       = "selectUserAttributes"
	vaConfirmVerifyUserAttribute = "confirmVerifyUserAttribute"
	vaResendCode                 = "confirmVerifyUserAttribute.resendCode"
)

type verifyUserAttributesFlow struct {
	machine
	requested string
}

func newVerifyUserAttributesFlow(seed *ActorDoneData) *verifyUserAttributesFlow {
	f := &verifyUserAttributesFlow{machine: newMachine(FlowVerifyUserAttributes, seedContext(StepSignIn, seed),
		submitOf(vaSelectUserAttributes), submitOf(vaConfirmVerifyUserAttribute), vaResendCode)}
	f.onEnter = f.enter
	f.onExit = f.exit
	return f
}

func (f *verifyUserAttributesFlow) start() { f.goTo(vaSelectUserAttributes) }

func (f *verifyUserAttributesFlow) enter(state string) {
	switch state {
	case vaSelectUserAttributes, vaConfirmVerifyUserAttribute:
		f.goTo(idleOf(state))
	case idleOf(vaSelectUserAttributes), idleOf(vaConfirmVerifyUserAttribute):
		f.notifyParent()
	case submitOf(vaSelectUserAttributes):
		f.ctx.clearError()
		f.requested = f.event.Data.String("userAttributeKey")
		in := SendUserAttributeVerificationCodeInput{UserAttributeKey: f.requested}
		f.invoke(opSendVerificationCode, func(ctx context.Context, h Handlers) (any, error) {
			return h.SendUserAttributeVerificationCode(ctx, in)
		})
	case vaResendCode:
		f.ctx.clearError()
		in := SendUserAttributeVerificationCodeInput{UserAttributeKey: f.ctx.SelectedUserAttribute}
		f.invoke(opSendVerificationCode, func(ctx context.Context, h Handlers) (any, error) {
			return h.SendUserAttributeVerificationCode(ctx, in)
		})
	case submitOf(vaConfirmVerifyUserAttribute):
		f.ctx.clearError()
		in := ConfirmUserAttributeInput{
			UserAttributeKey: f.ctx.SelectedUserAttribute,
			ConfirmationCode: f.event.Data.String("confirmationCode"),
		}
		f.invoke(opConfirmUserAttribute, func(ctx context.Context, h Handlers) (any, error) {
			return nil, h.ConfirmUserAttribute(ctx, in)
		})
	}
}

func (f *verifyUserAttributesFlow) exit(from, to string) {
	if leaves(from, to, vaSelectUserAttributes) || leaves(from, to, vaConfirmVerifyUserAttribute) {
		f.ctx.clearError()
	}
}

func (f *verifyUserAttributesFlow) send(ev Event) {
	if f.final {
		return
	}
	f.event = ev
	switch f.state {
	case idleOf(vaSelectUserAttributes):
		switch ev.Type {
		case EventSkip:
			f.resolve()
		case EventSubmit:
			f.goTo(submitOf(vaSelectUserAttributes))
		}
	case idleOf(vaConfirmVerifyUserAttribute):
		switch ev.Type {
		case EventSkip:
			f.resolve()
		case EventSubmit:
			f.goTo(submitOf(vaConfirmVerifyUserAttribute))
		case EventResend:
			f.goTo(vaResendCode)
		}
	}
}

func (f *verifyUserAttributesFlow) settle(r result) {
	if f.final {
		return
	}
	switch f.state {
	case submitOf(vaSelectUserAttributes):
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
			f.goTo(idleOf(vaSelectUserAttributes))
			return
		}
		f.ctx.setSelectedUserAttribute(r, f.requested)
		f.ctx.setCodeDeliveryDetails(r)
		f.goTo(vaConfirmVerifyUserAttribute)
	case vaResendCode:
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
		} else {
			f.ctx.setCodeDeliveryDetails(r)
		}
		f.goTo(idleOf(vaConfirmVerifyUserAttribute))
	case submitOf(vaConfirmVerifyUserAttribute):
		if r.err != nil {
			f.ctx.setRemoteError(r.err)
			f.goTo(idleOf(vaConfirmVerifyUserAttribute))
			return
		}
		f.ctx.setStep(StepConfirmAttributeComplete)
		f.ctx.clearSelectedUserAttribute()
		f.resolve()
	}
}
