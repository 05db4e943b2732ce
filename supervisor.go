package authflow

import "context"

type invokeOwner int

const (
	ownerParent invokeOwner = iota
	ownerChild
)

// scheduledInvoke is an invocation addressed to its owner by generation
// and sequence so late results can be recognised and dropped.
type scheduledInvoke struct {
	owner invokeOwner
	gen   uint64
	seq   uint64
	op    string
	flow  FlowName
	run   func(ctx context.Context, h Handlers) (any, error)
}

// invokeResult is a settled scheduledInvoke travelling back to the loop.
type invokeResult struct {
	owner  invokeOwner
	gen    uint64
	seq    uint64
	op     string
	flow   FlowName
	output any
	err    error
}

// activityRecord asks the runtime to publish an ActivityEvent.
type activityRecord struct {
	eventType ActivityEventType
	flow      FlowName
	user      *AuthUser
	step      Step
	rejected  bool
}

// completionRule routes a finished child by its handoff payload.
type completionRule struct {
	name string
	when func(FlowContext) bool
	// target is a parent state.
	target string
	// keep forwards the payload to the next child.
	keep bool
}

type completionTable []completionRule

func (t completionTable) pick(d *ActorDoneData) completionRule {
	c := seedContext("", d)
	for _, r := range t {
		if r.when == nil || r.when(c) {
			return r
		}
	}
	return completionRule{}
}

func (t completionTable) names() []string {
	out := make([]string, len(t))
	for i, r := range t {
		out[i] = r.name
	}
	return out
}

var completionTables = map[FlowName]completionTable{
	FlowSignIn: {
		{name: "hasCompletedAttributeConfirmation", when: hasCompletedAttributeConfirmation, target: StateGetCurrentUser},
		{name: "isShouldConfirmUserAttributeStep", when: isShouldConfirmUserAttributeStep, target: StateVerifyUserAttributesActor, keep: true},
		{name: "isResetPasswordStep", when: isResetPasswordStep, target: StateForgotPasswordActor, keep: true},
		{name: "isConfirmSignUpStep", when: isConfirmSignUpStep, target: StateSignUpActor, keep: true},
		{name: "default", target: StateGetCurrentUser},
	},
	FlowSignUp: {
		{name: "hasCompletedAttributeConfirmation", when: hasCompletedAttributeConfirmation, target: StateGetCurrentUser},
		{name: "isShouldConfirmUserAttributeStep", when: isShouldConfirmUserAttributeStep, target: StateVerifyUserAttributesActor, keep: true},
		{name: "isConfirmUserAttributeStep", when: isConfirmUserAttributeStep, target: StateVerifyUserAttributesActor},
		{name: "isResetPasswordStep", when: isResetPasswordStep, target: StateForgotPasswordActor, keep: true},
		{name: "default", target: StateSignInActor, keep: true},
	},
	FlowForgotPassword: {
		{name: "default", target: StateSignInActor},
	},
	FlowVerifyUserAttributes: {
		{name: "default", target: StateGetCurrentUser},
	},
	FlowSignOut: {
		{name: "default", target: StateSetup},
	},
}

// forwardedEvents reach the active child verbatim.
var forwardedEvents = map[EventType]struct{}{
	EventSubmit:          {},
	EventSkip:            {},
	EventResend:          {},
	EventFederatedSignIn: {},
	EventSignIn:          {},
}

// navigation lists the events a child state handles itself before forwarding.
var navigation = map[string]map[EventType]string{
	StateSignInActor: {
		EventForgotPassword: StateForgotPasswordActor,
		EventSignUp:         StateSignUpActor,
	},
	StateSignUpActor: {
		EventSignIn: StateSignInActor,
	},
	StateForgotPasswordActor: {
		EventSignIn: StateSignInActor,
	},
}

var childStates = map[string]FlowName{
	StateSignInActor:               FlowSignIn,
	StateSignUpActor:               FlowSignUp,
	StateForgotPasswordActor:       FlowForgotPassword,
	StateVerifyUserAttributesActor: FlowVerifyUserAttributes,
	StateSignOut:                   FlowSignOut,
}

// supervisor is the authenticator reducer. It owns at most one child flow
// and turns events and settled invocations into scheduled work; it never
// blocks or starts goroutines.
type supervisor struct {
	state        string
	user         *AuthUser
	initialRoute Route
	doneData     *ActorDoneData

	child    flow
	childGen uint64
	seq      uint64

	parentInvoke uint64
	childInvoke  uint64

	invokes  []scheduledInvoke
	activity []activityRecord
}

func newSupervisor(initialRoute Route) *supervisor {
	return &supervisor{initialRoute: initialRoute}
}

func (s *supervisor) start() {
	s.goTo(StateIdle)
}

// send applies ev. It reports false when the event had no effect.
func (s *supervisor) send(ev Event) bool {
	switch ev.Type {
	case EventChildChanged:
		return true
	case EventSignInWithRedirect:
		s.goTo(StateGetCurrentUser)
		return true
	}

	if targets, ok := navigation[s.state]; ok {
		if target, ok := targets[ev.Type]; ok {
			s.goTo(target)
			return true
		}
	}

	switch {
	case matches(s.state, StateAuthenticated):
		if ev.Type == EventSignOut {
			s.goTo(StateSignOut)
			return true
		}
		if ev.Type == EventTokenRefresh && s.state == StateAuthenticatedIdle {
			s.goTo(StateRefreshUser)
			return true
		}
		return false
	case s.child != nil && s.state != StateSignOut:
		if _, ok := forwardedEvents[ev.Type]; !ok {
			return false
		}
		s.child.send(ev)
		s.pump()
		return true
	}
	return false
}

// settle applies a handler result. Results that belong to a torn down
// child or a superseded invocation are dropped and reported as false.
func (s *supervisor) settle(res invokeResult) bool {
	switch res.owner {
	case ownerChild:
		if s.child == nil || res.gen != s.childGen || res.seq != s.childInvoke {
			return false
		}
		s.childInvoke = 0
		s.child.settle(result{output: res.output, err: res.err})
		s.pump()
		return true
	case ownerParent:
		if res.seq != s.parentInvoke {
			return false
		}
		s.parentInvoke = 0
		s.settleParent(res)
		return true
	}
	return false
}

func (s *supervisor) settleParent(res invokeResult) {
	user, _ := res.output.(*AuthUser)
	switch s.state {
	case StateIdle:
		if res.err == nil && user != nil {
			s.setUser(user)
		}
		s.goTo(StateSetup)
	case StateGetCurrentUser:
		if res.err != nil || user == nil {
			s.goTo(StateSetup)
			return
		}
		s.setUser(user)
		s.goTo(StateAuthenticatedIdle)
	case StateRefreshUser:
		if res.err != nil || user == nil {
			s.goTo(StateSignOut)
			return
		}
		s.setUser(user)
		s.goTo(StateAuthenticatedIdle)
	}
}

func (s *supervisor) setUser(u *AuthUser) {
	cp := *u
	s.user = &cp
}

func (s *supervisor) goTo(target string) {
	from := s.state
	s.exit(from, target)
	s.state = target
	if target == StateAuthenticatedIdle && !matches(from, StateAuthenticated) {
		s.record(ActivityEventAuthenticated, "", "", false)
	}
	s.enter(target)
}

func (s *supervisor) exit(from, to string) {
	if _, ok := childStates[from]; ok {
		s.stopChild()
	}
	if from == StateSignOut {
		s.doneData = nil
	}
	// Leaving a routing state drops any pending parent call.
	if from == StateIdle || from == StateGetCurrentUser || from == StateRefreshUser {
		s.parentInvoke = 0
	}
}

func (s *supervisor) enter(state string) {
	switch state {
	case StateIdle, StateGetCurrentUser, StateRefreshUser:
		s.invokeParent(opGetCurrentUser, func(ctx context.Context, h Handlers) (any, error) {
			return h.GetCurrentUser(ctx)
		})
	case StateSetup:
		s.goTo(s.setupTarget())
	case StateAuthenticated:
		s.goTo(StateAuthenticatedIdle)
	default:
		if name, ok := childStates[state]; ok {
			s.spawn(name)
		}
	}
}

func (s *supervisor) setupTarget() string {
	switch {
	case s.user != nil:
		return StateAuthenticatedIdle
	case s.initialRoute == RouteSignUp:
		return StateSignUpActor
	case s.initialRoute == RouteForgotPassword:
		return StateForgotPasswordActor
	}
	return StateSignInActor
}

// spawn starts a child, consuming the handoff payload exactly once.
func (s *supervisor) spawn(name FlowName) {
	seed := s.doneData
	s.doneData = nil

	var f flow
	switch name {
	case FlowSignIn:
		f = newSignInFlow(seed)
	case FlowSignUp:
		f = newSignUpFlow(seed)
	case FlowForgotPassword:
		f = newForgotPasswordFlow(seed)
	case FlowVerifyUserAttributes:
		f = newVerifyUserAttributesFlow(seed)
	case FlowSignOut:
		f = newSignOutFlow()
	default:
		return
	}
	s.childGen++
	s.childInvoke = 0
	s.child = f
	f.start()
	s.pump()
}

func (s *supervisor) stopChild() {
	s.child = nil
	s.childInvoke = 0
}

// pump drains the active child's effects until it is quiet.
func (s *supervisor) pump() {
	for s.child != nil {
		child := s.child
		effects := child.drain()
		if len(effects) == 0 {
			return
		}
		for _, e := range effects {
			switch e := e.(type) {
			case invokeEffect:
				s.seq++
				s.childInvoke = s.seq
				s.invokes = append(s.invokes, scheduledInvoke{
					owner: ownerChild,
					gen:   s.childGen,
					seq:   s.seq,
					op:    e.op,
					flow:  child.Name(),
					run:   e.run,
				})
			case changedEffect:
			case doneEffect:
				s.childDone(child.Name(), e)
			}
			// A finished child has been replaced; the rest of its batch is moot.
			if s.child != child {
				break
			}
		}
	}
}

func (s *supervisor) childDone(name FlowName, e doneEffect) {
	s.record(ActivityEventFlowCompleted, name, e.data.Step, e.rejected)

	if name == FlowSignOut {
		s.user = nil
		s.record(ActivityEventSignedOut, name, "", e.rejected)
	}

	rule := completionTables[name].pick(e.data)
	if rule.keep {
		s.doneData = e.data
	} else {
		s.doneData = nil
	}
	if rule.target != "" {
		s.goTo(rule.target)
	}
}

func (s *supervisor) invokeParent(op string, run func(ctx context.Context, h Handlers) (any, error)) {
	s.seq++
	s.parentInvoke = s.seq
	s.invokes = append(s.invokes, scheduledInvoke{owner: ownerParent, seq: s.seq, op: op, run: run})
}

func (s *supervisor) record(t ActivityEventType, flow FlowName, step Step, rejected bool) {
	var user *AuthUser
	if s.user != nil {
		cp := *s.user
		user = &cp
	}
	s.activity = append(s.activity, activityRecord{eventType: t, flow: flow, user: user, step: step, rejected: rejected})
}

// takeInvokes returns the scheduled work that is still current.
func (s *supervisor) takeInvokes() []scheduledInvoke {
	out := make([]scheduledInvoke, 0, len(s.invokes))
	for _, inv := range s.invokes {
		if s.isCurrent(inv) {
			out = append(out, inv)
		}
	}
	s.invokes = nil
	return out
}

func (s *supervisor) isCurrent(inv scheduledInvoke) bool {
	if inv.owner == ownerParent {
		return inv.seq == s.parentInvoke
	}
	return s.child != nil && inv.gen == s.childGen && inv.seq == s.childInvoke
}

func (s *supervisor) takeActivity() []activityRecord {
	out := s.activity
	s.activity = nil
	return out
}

func (s *supervisor) snapshot() Snapshot {
	snap := Snapshot{
		State:        s.state,
		InitialRoute: s.initialRoute,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.doneData != nil {
		d := seedContext("", s.doneData).doneData()
		snap.ActorDoneData = d
	}
	if s.child != nil {
		child := &ChildSnapshot{
			Flow:    s.child.Name(),
			State:   s.child.State(),
			Context: s.child.Context(),
		}
		if s.child.HasTag(TagPending) {
			child.Tags = []string{TagPending}
		}
		snap.Child = child
	}
	return snap
}
