package authflow

// Step identifies the next protocol action a flow is waiting on.
type Step string

// Initial steps.
const (
	StepForgotPassword Step = "FORGOT_PASSWORD"
	StepSignIn         Step = "SIGN_IN"
	StepSignUp         Step = "SIGN_UP"
)

// Sign in steps.
const (
	StepConfirmSignInWithEmailCode           Step = "CONFIRM_SIGN_IN_WITH_EMAIL_CODE"
	StepConfirmSignInWithSMSCode             Step = "CONFIRM_SIGN_IN_WITH_SMS_CODE"
	StepConfirmSignInWithTOTPCode            Step = "CONFIRM_SIGN_IN_WITH_TOTP_CODE"
	StepConfirmSignInWithNewPasswordRequired Step = "CONFIRM_SIGN_IN_WITH_NEW_PASSWORD_REQUIRED"
	StepConfirmSignInWithPassword            Step = "CONFIRM_SIGN_IN_WITH_PASSWORD"
	StepConfirmSignInWithCustomChallenge     Step = "CONFIRM_SIGN_IN_WITH_CUSTOM_CHALLENGE"
	StepContinueSignInWithTOTPSetup          Step = "CONTINUE_SIGN_IN_WITH_TOTP_SETUP"
	StepContinueSignInWithEmailSetup         Step = "CONTINUE_SIGN_IN_WITH_EMAIL_SETUP"
	StepContinueSignInWithMFASetupSelection  Step = "CONTINUE_SIGN_IN_WITH_MFA_SETUP_SELECTION"
	StepContinueSignInWithMFASelection       Step = "CONTINUE_SIGN_IN_WITH_MFA_SELECTION"
	StepContinueSignInWithFirstFactor        Step = "CONTINUE_SIGN_IN_WITH_FIRST_FACTOR_SELECTION"
	StepConfirmSignUp                        Step = "CONFIRM_SIGN_UP"
	StepResetPassword                        Step = "RESET_PASSWORD"
	StepSignInComplete                       Step = "SIGN_IN_COMPLETE"
)

// Reset password steps.
const (
	StepConfirmResetPasswordWithCode Step = "CONFIRM_RESET_PASSWORD_WITH_CODE"
	StepResetPasswordComplete        Step = "RESET_PASSWORD_COMPLETE"
)

// Sign up steps.
const (
	StepCompleteAutoSignIn Step = "COMPLETE_AUTO_SIGN_IN"
	StepSignUpComplete     Step = "SIGN_UP_COMPLETE"
)

// User attribute steps.
const (
	StepShouldConfirmUserAttribute Step = "SHOULD_CONFIRM_USER_ATTRIBUTE"
	StepConfirmAttributeWithCode   Step = "CONFIRM_ATTRIBUTE_WITH_CODE"
	StepConfirmAttributeComplete   Step = "CONFIRM_ATTRIBUTE_COMPLETE"
)

// StepDone is the provider sentinel for a finished operation. It never
// reaches a flow context directly, see nextSignInStep and friends.
const StepDone Step = "DONE"

// Route is the single user-facing discriminant derived from a Snapshot.
type Route string

const (
	RouteNone                 Route = ""
	RouteIdle                 Route = "idle"
	RouteSetup                Route = "setup"
	RouteTransition           Route = "transition"
	RouteAuthenticated        Route = "authenticated"
	RouteSignIn               Route = "signIn"
	RouteSignUp               Route = "signUp"
	RouteConfirmSignIn        Route = "confirmSignIn"
	RouteConfirmSignUp        Route = "confirmSignUp"
	RouteForceNewPassword     Route = "forceNewPassword"
	RouteForgotPassword       Route = "forgotPassword"
	RouteConfirmResetPassword Route = "confirmResetPassword"
	RouteVerifyUser           Route = "verifyUser"
	RouteConfirmVerifyUser    Route = "confirmVerifyUser"
	RouteSetupTOTP            Route = "setupTotp"
	RouteSetupEmail           Route = "setupEmail"
	RouteSelectMFAType        Route = "selectMfaType"
	RouteSignOut              Route = "signOut"
)

// ParseRoute validates a route name.
func ParseRoute(s string) (Route, bool) {
	switch r := Route(s); r {
	case RouteIdle, RouteSetup, RouteTransition, RouteAuthenticated, RouteSignIn, RouteSignUp,
		RouteConfirmSignIn, RouteConfirmSignUp, RouteForceNewPassword, RouteForgotPassword,
		RouteConfirmResetPassword, RouteVerifyUser, RouteConfirmVerifyUser, RouteSetupTOTP,
		RouteSetupEmail, RouteSelectMFAType, RouteSignOut:
		return r, true
	}
	return RouteNone, false
}

// EventType names the events accepted by the authenticator.
type EventType string

const (
	EventFederatedSignIn    EventType = "FEDERATED_SIGN_IN"
	EventResend             EventType = "RESEND"
	EventForgotPassword     EventType = "FORGOT_PASSWORD"
	EventAutoSignInFailure  EventType = "AUTO_SIGN_IN_FAILURE"
	EventSignInWithRedirect EventType = "SIGN_IN_WITH_REDIRECT"
	EventSignIn             EventType = "SIGN_IN"
	EventSignOut            EventType = "SIGN_OUT"
	EventSignUp             EventType = "SIGN_UP"
	EventSubmit             EventType = "SUBMIT"
	EventSkip               EventType = "SKIP"
	EventInit               EventType = "INIT"
	EventTokenRefresh       EventType = "TOKEN_REFRESH"
	EventChildChanged       EventType = "CHILD_CHANGED"
)

// FlowName identifies a child flow.
type FlowName string

const (
	FlowSignIn               FlowName = "signIn"
	FlowSignUp               FlowName = "signUp"
	FlowForgotPassword       FlowName = "forgotPassword"
	FlowVerifyUserAttributes FlowName = "verifyUserAttributes"
	FlowSignOut              FlowName = "signOut"
)

// TagPending marks states that wait on an asynchronous handler call.
const TagPending = "pending"
