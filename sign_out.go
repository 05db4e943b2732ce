package authflow

import "context"

const soPending = "pending"

// signOutFlow is single shot: both outcomes are final.
type signOutFlow struct {
	machine
}

func newSignOutFlow() *signOutFlow {
	f := &signOutFlow{machine: newMachine(FlowSignOut, FlowContext{}, soPending)}
	f.onEnter = f.enter
	return f
}

func (f *signOutFlow) start() { f.goTo(soPending) }

func (f *signOutFlow) enter(state string) {
	if state != soPending {
		return
	}
	f.invoke(opSignOut, func(ctx context.Context, h Handlers) (any, error) {
		return nil, h.SignOut(ctx, SignOutInput{})
	})
}

func (f *signOutFlow) send(Event) {}

func (f *signOutFlow) settle(r result) {
	if f.final || f.state != soPending {
		return
	}
	if r.err != nil {
		f.ctx.setRemoteError(r.err)
		f.finish(stateRejected, true)
		return
	}
	f.resolve()
}
