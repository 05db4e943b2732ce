package authflow

import (
	"context"
	"maps"
	"slices"
	"strings"
)

// Shared state names.
const (
	stateInit     = "init"
	stateResolved = "resolved"
	stateRejected = "rejected"
	stateIdle     = "idle"
	stateSubmit   = "submit"
)

// FlowContext is the mutable record a child flow works on.
type FlowContext struct {
	Step                     Step                 `json:"step"`
	Username                 string               `json:"username,omitempty"`
	RemoteError              string               `json:"remoteError,omitempty"`
	CodeDeliveryDetails      *CodeDeliveryDetails `json:"codeDeliveryDetails,omitempty"`
	TOTPSecretCode           string               `json:"totpSecretCode,omitempty"`
	AllowedMFATypes          []string             `json:"allowedMfaTypes,omitempty"`
	UnverifiedUserAttributes UserAttributes       `json:"unverifiedUserAttributes,omitempty"`
	SelectedUserAttribute    string               `json:"selectedUserAttribute,omitempty"`
	MissingAttributes        []string             `json:"missingAttributes,omitempty"`
	ChallengeName            string               `json:"challengeName,omitempty"`
	User                     *AuthUser            `json:"user,omitempty"`
}

func (c FlowContext) clone() FlowContext {
	out := c
	if c.CodeDeliveryDetails != nil {
		d := *c.CodeDeliveryDetails
		out.CodeDeliveryDetails = &d
	}
	out.AllowedMFATypes = slices.Clone(c.AllowedMFATypes)
	out.MissingAttributes = slices.Clone(c.MissingAttributes)
	out.UnverifiedUserAttributes = maps.Clone(c.UnverifiedUserAttributes)
	if c.User != nil {
		u := *c.User
		out.User = &u
	}
	return out
}

// ActorDoneData is the payload a finished child hands to the authenticator.
type ActorDoneData struct {
	Step                     Step                 `json:"step"`
	Username                 string               `json:"username,omitempty"`
	CodeDeliveryDetails      *CodeDeliveryDetails `json:"codeDeliveryDetails,omitempty"`
	TOTPSecretCode           string               `json:"totpSecretCode,omitempty"`
	RemoteError              string               `json:"remoteError,omitempty"`
	UnverifiedUserAttributes UserAttributes       `json:"unverifiedUserAttributes,omitempty"`
	AllowedMFATypes          []string             `json:"allowedMfaTypes,omitempty"`
	MissingAttributes        []string             `json:"missingAttributes,omitempty"`
	ChallengeName            string               `json:"challengeName,omitempty"`
}

func (c FlowContext) doneData() *ActorDoneData {
	cc := c.clone()
	return &ActorDoneData{
		Step:                     cc.Step,
		Username:                 cc.Username,
		CodeDeliveryDetails:      cc.CodeDeliveryDetails,
		TOTPSecretCode:           cc.TOTPSecretCode,
		RemoteError:              cc.RemoteError,
		UnverifiedUserAttributes: cc.UnverifiedUserAttributes,
		AllowedMFATypes:          cc.AllowedMFATypes,
		MissingAttributes:        cc.MissingAttributes,
		ChallengeName:            cc.ChallengeName,
	}
}

// seedContext builds a fresh context defaulted to step and overlaid with seed.
func seedContext(step Step, seed *ActorDoneData) FlowContext {
	c := FlowContext{Step: step}
	if seed == nil {
		return c
	}
	if seed.Step != "" {
		c.Step = seed.Step
	}
	c.Username = seed.Username
	c.RemoteError = seed.RemoteError
	c.TOTPSecretCode = seed.TOTPSecretCode
	c.ChallengeName = seed.ChallengeName
	if seed.CodeDeliveryDetails != nil {
		d := *seed.CodeDeliveryDetails
		c.CodeDeliveryDetails = &d
	}
	c.AllowedMFATypes = slices.Clone(seed.AllowedMFATypes)
	c.MissingAttributes = slices.Clone(seed.MissingAttributes)
	c.UnverifiedUserAttributes = maps.Clone(seed.UnverifiedUserAttributes)
	return c
}

type effect interface{ isEffect() }

// invokeEffect asks the runtime to run a handler call.
type invokeEffect struct {
	op  string
	run func(ctx context.Context, h Handlers) (any, error)
}

// doneEffect is emitted once when a flow reaches a final state.
type doneEffect struct {
	data     *ActorDoneData
	rejected bool
}

// changedEffect tells the supervisor the child context changed.
type changedEffect struct{}

func (invokeEffect) isEffect()  {}
func (doneEffect) isEffect()    {}
func (changedEffect) isEffect() {}

// result is the settled outcome of an invokeEffect.
type result struct {
	output any
	err    error
}

// flow is the uniform entry point the supervisor drives.
type flow interface {
	Name() FlowName
	State() string
	Context() FlowContext
	HasTag(tag string) bool
	Done() bool

	start()
	send(ev Event)
	settle(r result)
	drain() []effect
}

// machine carries the bookkeeping shared by every child flow: the active
// state path, the context, queued effects and the triggering event.
type machine struct {
	name    FlowName
	state   string
	ctx     FlowContext
	event   Event
	pending map[string]struct{}
	effects []effect
	final   bool

	onEnter func(state string)
	onExit  func(from, to string)
}

func newMachine(name FlowName, ctx FlowContext, pendingStates ...string) machine {
	pending := make(map[string]struct{}, len(pendingStates))
	for _, s := range pendingStates {
		pending[s] = struct{}{}
	}
	return machine{name: name, ctx: ctx, pending: pending}
}

func (m *machine) Name() FlowName       { return m.name }
func (m *machine) State() string        { return m.state }
func (m *machine) Context() FlowContext { return m.ctx.clone() }
func (m *machine) Done() bool           { return m.final }

func (m *machine) HasTag(tag string) bool {
	if tag != TagPending {
		return false
	}
	_, ok := m.pending[m.state]
	return ok
}

func (m *machine) drain() []effect {
	out := m.effects
	m.effects = nil
	return out
}

func (m *machine) goTo(target string) {
	if m.final {
		return
	}
	from := m.state
	if m.onExit != nil && from != "" {
		m.onExit(from, target)
	}
	m.state = target
	if m.onEnter != nil {
		m.onEnter(target)
	}
}

// finish enters a final state and emits the handoff payload.
func (m *machine) finish(state string, rejected bool) {
	if m.final {
		return
	}
	if m.onExit != nil && m.state != "" {
		m.onExit(m.state, state)
	}
	m.state = state
	m.final = true
	m.effects = append(m.effects, doneEffect{data: m.ctx.doneData(), rejected: rejected})
}

func (m *machine) resolve() { m.finish(stateResolved, false) }

func (m *machine) notifyParent() {
	m.effects = append(m.effects, changedEffect{})
}

func (m *machine) invoke(op string, run func(ctx context.Context, h Handlers) (any, error)) {
	m.effects = append(m.effects, invokeEffect{op: op, run: run})
}

// matches reports whether state equals path or is nested under it.
func matches(state, path string) bool {
	return state == path || strings.HasPrefix(state, path+".")
}

// top returns the first segment of a state path.
func top(state string) string {
	if i := strings.IndexByte(state, '.'); i >= 0 {
		return state[:i]
	}
	return state
}

func leaves(from, to, compound string) bool {
	return matches(from, compound) && !matches(to, compound)
}

func idleOf(compound string) string   { return compound + "." + stateIdle }
func submitOf(compound string) string { return compound + "." + stateSubmit }

// stepRule routes an eventless transition from the current context.
type stepRule struct {
	name   string
	when   func(FlowContext) bool
	target string
}

type stepTable []stepRule

func (t stepTable) pick(c FlowContext) string {
	for _, r := range t {
		if r.when == nil || r.when(c) {
			return r.target
		}
	}
	return ""
}

func (t stepTable) names() []string {
	out := make([]string, len(t))
	for i, r := range t {
		out[i] = r.name
	}
	return out
}

// resultRule routes a settled invocation; first match wins.
type resultRule struct {
	name   string
	when   func(result) bool
	apply  func(*FlowContext, result)
	target string
}

type resultTable []resultRule

func (t resultTable) pick(r result) (resultRule, bool) {
	for _, rule := range t {
		if rule.when == nil || rule.when(r) {
			return rule, true
		}
	}
	return resultRule{}, false
}

func (t resultTable) names() []string {
	out := make([]string, len(t))
	for i, r := range t {
		out[i] = r.name
	}
	return out
}
