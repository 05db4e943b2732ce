package authflow

// Parent states.
const (
	StateIdle                      = "idle"
	StateSetup                     = "setup"
	StateGetCurrentUser            = "getCurrentUser"
	StateSignInActor               = "signInActor"
	StateSignUpActor               = "signUpActor"
	StateForgotPasswordActor       = "forgotPasswordActor"
	StateVerifyUserAttributesActor = "verifyUserAttributesActor"
	StateAuthenticated             = "authenticated"
	StateAuthenticatedIdle         = "authenticated.idle"
	StateRefreshUser               = "authenticated.refreshUser"
	StateSignOut                   = "signOut"
)

// ChildSnapshot is a read only view of the active child flow.
type ChildSnapshot struct {
	Flow    FlowName    `json:"flow"`
	State   string      `json:"state"`
	Context FlowContext `json:"context"`
	Tags    []string    `json:"tags,omitempty"`
}

// Matches reports whether the child is in path or one of its sub states.
func (c *ChildSnapshot) Matches(path string) bool {
	return c != nil && matches(c.State, path)
}

// HasTag reports whether the child state carries tag.
func (c *ChildSnapshot) HasTag(tag string) bool {
	if c == nil {
		return false
	}
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Snapshot is the published state of an Authenticator.
type Snapshot struct {
	Version       uint64         `json:"version"`
	State         string         `json:"state"`
	User          *AuthUser      `json:"user,omitempty"`
	InitialRoute  Route          `json:"initialRoute,omitempty"`
	ActorDoneData *ActorDoneData `json:"actorDoneData,omitempty"`
	Child         *ChildSnapshot `json:"child,omitempty"`
}

// Matches reports whether the authenticator is in path or one of its sub states.
func (s Snapshot) Matches(path string) bool {
	return matches(s.State, path)
}

// HasTag reports tags on the authenticator or its active child. The
// authenticator itself carries none.
func (s Snapshot) HasTag(tag string) bool {
	return s.Child.HasTag(tag)
}
