package authflow

import (
	"fmt"
	"strings"
)

// EventData carries the literal payload submitted with an event.
type EventData map[string]any

// String returns the value stored under key when it is a string.
func (d EventData) String(key string) string {
	if d == nil {
		return ""
	}
	switch v := d[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// Bool accepts real booleans and the "true" string form sent by forms.
func (d EventData) Bool(key string) bool {
	if d == nil {
		return false
	}
	switch v := d[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// Event is the unit of input for the authenticator and its child flows.
type Event struct {
	Type EventType
	Data EventData
}

// CodeDeliveryDetails describes where a verification code was sent.
type CodeDeliveryDetails struct {
	Destination    string `json:"destination,omitempty"`
	DeliveryMedium string `json:"deliveryMedium,omitempty"`
	AttributeName  string `json:"attributeName,omitempty"`
}

// AuthUser is the authenticated user record returned by GetCurrentUser.
type AuthUser struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	LoginID  string `json:"loginId,omitempty"`
}

// UserAttributes maps attribute names (email, phone_number, ...) to values.
type UserAttributes map[string]string

const (
	AttributeEmail               = "email"
	AttributePhoneNumber         = "phone_number"
	AttributeEmailVerified       = "email_verified"
	AttributePhoneNumberVerified = "phone_number_verified"
)

// TOTPSetupDetails holds the shared secret for authenticator app enrollment.
type TOTPSetupDetails struct {
	SharedSecret string `json:"sharedSecret"`
}

// SignInNextStep is the provider's declared continuation after a sign in call.
type SignInNextStep struct {
	SignInStep          Step                 `json:"signInStep"`
	CodeDeliveryDetails *CodeDeliveryDetails `json:"codeDeliveryDetails,omitempty"`
	TOTPSetupDetails    *TOTPSetupDetails    `json:"totpSetupDetails,omitempty"`
	AllowedMFATypes     []string             `json:"allowedMFATypes,omitempty"`
	MissingAttributes   []string             `json:"missingAttributes,omitempty"`
}

type SignInOutput struct {
	IsSignedIn bool           `json:"isSignedIn"`
	NextStep   SignInNextStep `json:"nextStep"`
}

type SignUpNextStep struct {
	SignUpStep          Step                 `json:"signUpStep"`
	CodeDeliveryDetails *CodeDeliveryDetails `json:"codeDeliveryDetails,omitempty"`
}

type SignUpOutput struct {
	IsSignUpComplete bool           `json:"isSignUpComplete"`
	UserID           string         `json:"userId,omitempty"`
	NextStep         SignUpNextStep `json:"nextStep"`
}

type ResetPasswordNextStep struct {
	ResetPasswordStep   Step                 `json:"resetPasswordStep"`
	CodeDeliveryDetails *CodeDeliveryDetails `json:"codeDeliveryDetails,omitempty"`
}

type ResetPasswordOutput struct {
	IsPasswordReset bool                  `json:"isPasswordReset"`
	NextStep        ResetPasswordNextStep `json:"nextStep"`
}

type SignInInput struct {
	Username string
	Password string
}

type ConfirmSignInInput struct {
	ChallengeResponse string
}

type SignInWithRedirectInput struct {
	Provider    string
	CustomState string
}

type SignUpInput struct {
	Username       string
	Password       string
	UserAttributes UserAttributes
	AutoSignIn     bool
}

type ConfirmSignUpInput struct {
	Username         string
	ConfirmationCode string
}

type ResendSignUpCodeInput struct {
	Username string
}

type ResetPasswordInput struct {
	Username string
}

type ConfirmResetPasswordInput struct {
	Username         string
	ConfirmationCode string
	NewPassword      string
}

type SendUserAttributeVerificationCodeInput struct {
	UserAttributeKey string
}

type ConfirmUserAttributeInput struct {
	UserAttributeKey string
	ConfirmationCode string
}

type SignOutInput struct {
	Global bool
}

var signUpReservedKeys = map[string]struct{}{
	"username":         {},
	"password":         {},
	"confirm_password": {},
	"autoSignIn":       {},
}

func signInInputFrom(d EventData) SignInInput {
	return SignInInput{Username: d.String("username"), Password: d.String("password")}
}

func confirmSignInInputFrom(d EventData) ConfirmSignInInput {
	return ConfirmSignInInput{ChallengeResponse: d.String("challengeResponse")}
}

func redirectInputFrom(d EventData) SignInWithRedirectInput {
	return SignInWithRedirectInput{Provider: d.String("provider"), CustomState: d.String("customState")}
}

// signUpInputFrom treats every non-reserved string field as a user attribute.
func signUpInputFrom(d EventData) SignUpInput {
	in := SignUpInput{
		Username:   d.String("username"),
		Password:   d.String("password"),
		AutoSignIn: d.Bool("autoSignIn"),
	}
	for k, v := range d {
		if _, reserved := signUpReservedKeys[k]; reserved {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if in.UserAttributes == nil {
			in.UserAttributes = UserAttributes{}
		}
		in.UserAttributes[k] = s
	}
	return in
}
