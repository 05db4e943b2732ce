package social

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound  = "social_provider_not_found"
	TextCodeInvalidState      = "social_invalid_state"
	TextCodeStateExpired      = "social_state_expired"
	TextCodeTokenExchangeFail = "social_token_exchange_failed"
	TextCodeIDTokenInvalid    = "social_id_token_invalid"
	TextCodeDiscoveryFail     = "social_discovery_failed"
	TextCodeAccountNotFound   = "social_account_not_found"
	TextCodeEmailNotVerified  = "social_email_not_verified"
	TextCodeSignupNotAllowed  = "social_signup_not_allowed"
)

// ErrProviderNotFound is returned when a requested provider is not registered.
var ErrProviderNotFound = errors.New("social provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrTokenExchangeFailed is returned when the authorization code exchange fails.
var ErrTokenExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrIDTokenInvalid is returned when the ID token is missing, fails
// verification or carries the wrong nonce.
var ErrIDTokenInvalid = errors.New("id token rejected", errors.CategoryAuth).
	WithTextCode(TextCodeIDTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrDiscoveryFailed is returned when issuer discovery fails at registration.
var ErrDiscoveryFailed = errors.New("oidc discovery failed", errors.CategoryOperation).
	WithTextCode(TextCodeDiscoveryFail).
	WithCode(errors.CodeInternal)

// ErrAccountNotFound is returned by an AccountStore when no link exists.
var ErrAccountNotFound = errors.New("linked account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrEmailNotVerified is returned when the policy requires a verified email.
var ErrEmailNotVerified = errors.New("provider email not verified", errors.CategoryAuthz).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrSignupNotAllowed is returned when an unknown identity may not create an account.
var ErrSignupNotAllowed = errors.New("federated sign up not allowed", errors.CategoryAuthz).
	WithTextCode(TextCodeSignupNotAllowed).
	WithCode(errors.CodeForbidden)
