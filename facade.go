package authflow

import (
	"fmt"
	"slices"
)

// childRoutes maps the top level child state to its route.
var childRoutes = map[string]Route{
	siConfirmSignIn:              RouteConfirmSignIn,
	siSignIn:                     RouteSignIn,
	siForceChangePassword:        RouteForceNewPassword,
	siSetupTOTP:                  RouteSetupTOTP,
	siSetupEmail:                 RouteSetupEmail,
	siSelectMFAType:              RouteSelectMFAType,
	siFetchUserAttributes:        RouteTransition,
	suConfirmSignUp:              RouteConfirmSignUp,
	suResendSignUpCode:           RouteConfirmSignUp,
	suSignUp:                     RouteSignUp,
	suAutoSignIn:                 RouteSignUp,
	fpForgotPassword:             RouteForgotPassword,
	fpConfirmResetPassword:       RouteConfirmResetPassword,
	vaSelectUserAttributes:       RouteVerifyUser,
	vaConfirmVerifyUserAttribute: RouteConfirmVerifyUser,
}

var parentRoutes = map[string]Route{
	StateIdle:           RouteIdle,
	StateSetup:          RouteSetup,
	StateSignOut:        RouteSignOut,
	StateAuthenticated:  RouteAuthenticated,
	StateGetCurrentUser: RouteTransition,
}

// RouteOf derives the user facing route from s.
func RouteOf(s Snapshot) Route {
	if s.Child.Matches(siFederatedSignIn) {
		switch s.State {
		case StateSignUpActor:
			return RouteSignUp
		case StateSignInActor:
			return RouteSignIn
		}
	}
	if r, ok := parentRoutes[top(s.State)]; ok {
		return r
	}
	if s.Child == nil {
		return RouteNone
	}
	if r, ok := childRoutes[top(s.Child.State)]; ok {
		return r
	}
	return RouteNone
}

// Facade is the flattened read model handed to UI collaborators.
type Facade struct {
	Route                    Route                `json:"route"`
	IsPending                bool                 `json:"isPending"`
	ErrorMessage             string               `json:"errorMessage,omitempty"`
	User                     *AuthUser            `json:"user,omitempty"`
	Username                 string               `json:"username,omitempty"`
	CodeDeliveryDetails      *CodeDeliveryDetails `json:"codeDeliveryDetails,omitempty"`
	TOTPSecretCode           string               `json:"totpSecretCode,omitempty"`
	AllowedMFATypes          []string             `json:"allowedMfaTypes,omitempty"`
	UnverifiedUserAttributes UserAttributes       `json:"unverifiedUserAttributes,omitempty"`
	ChallengeName            string               `json:"challengeName,omitempty"`
	MissingAttributes        []string             `json:"missingAttributes,omitempty"`
}

// NewFacade flattens s.
func NewFacade(s Snapshot) Facade {
	f := Facade{
		Route:     RouteOf(s),
		IsPending: s.HasTag(TagPending),
		User:      s.User,
	}
	if s.Child == nil {
		return f
	}
	c := s.Child.Context
	f.ErrorMessage = c.RemoteError
	f.Username = c.Username
	f.CodeDeliveryDetails = c.CodeDeliveryDetails
	f.TOTPSecretCode = c.TOTPSecretCode
	f.AllowedMFATypes = slices.Clone(c.AllowedMFATypes)
	f.UnverifiedUserAttributes = c.UnverifiedUserAttributes
	f.ChallengeName = c.ChallengeName
	f.MissingAttributes = slices.Clone(c.MissingAttributes)
	if c.User != nil {
		f.User = c.User
	}
	return f
}

// navigableRoutes are the routes SetRoute accepts.
var navigableRoutes = map[Route]EventType{
	RouteSignIn:         EventSignIn,
	RouteSignUp:         EventSignUp,
	RouteForgotPassword: EventForgotPassword,
	RouteSignOut:        EventSignOut,
}

// Facade returns the read model for the current snapshot.
func (a *Authenticator) Facade() Facade {
	return NewFacade(a.Snapshot())
}

// HandleSubmit sends SUBMIT with the form payload.
func (a *Authenticator) HandleSubmit(data EventData) error {
	return a.Send(Event{Type: EventSubmit, Data: data})
}

// ResendConfirmationCode sends RESEND.
func (a *Authenticator) ResendConfirmationCode() error {
	return a.Send(Event{Type: EventResend})
}

// SkipAttributeVerification sends SKIP.
func (a *Authenticator) SkipAttributeVerification() error {
	return a.Send(Event{Type: EventSkip})
}

// SetRoute navigates to signIn, signUp, forgotPassword or signOut.
func (a *Authenticator) SetRoute(route Route) error {
	ev, ok := navigableRoutes[route]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRoute, route)
	}
	return a.Send(Event{Type: ev})
}

// ToFederatedSignIn starts a redirect sign in; data may carry provider and customState.
func (a *Authenticator) ToFederatedSignIn(data EventData) error {
	return a.Send(Event{Type: EventFederatedSignIn, Data: data})
}

// RefreshUser re-reads the current user while authenticated.
func (a *Authenticator) RefreshUser() error {
	return a.Send(Event{Type: EventTokenRefresh})
}
