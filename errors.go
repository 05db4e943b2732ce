package authflow

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNoUserPool           = "NO_USER_POOL"
	TextCodeNotStarted           = "AUTHENTICATOR_NOT_STARTED"
	TextCodeStopped              = "AUTHENTICATOR_STOPPED"
	TextCodeInvalidRoute         = "INVALID_ROUTE"
	TextCodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
)

// Provider error names the flows react to.
const (
	ErrorNameNoUserPool         = "NoUserPoolError"
	ErrorNameNetwork            = "NetworkError"
	ErrorNameUserNotConfirmed   = "UserNotConfirmedException"
	ErrorNameUserUnauthorized   = "UserUnAuthenticatedException"
	ErrorNameNotAuthorized      = "NotAuthorizedException"
	ErrorNameUserNotFound       = "UserNotFoundException"
	ErrorNameCodeMismatch       = "CodeMismatchException"
	ErrorNameInvalidParameter   = "InvalidParameterException"
	ErrorNameInvalidPassword    = "InvalidPasswordException"
	ErrorNameUsernameExists     = "UsernameExistsException"
	ErrorNameExpiredCode        = "ExpiredCodeException"
	ErrorNameSignInWithRedirect = "SignInWithRedirectException"
)

// AlreadyConfirmedMessage is returned by resend when the account needs no confirmation.
const AlreadyConfirmedMessage = "User is already confirmed."

// NoUserPoolMessage replaces the raw error when handlers are not configured.
const NoUserPoolMessage = "Configuration error (see console) – please contact the administrator"

// ErrNoUserPool is returned by handlers that were never configured.
var ErrNoUserPool = goerrors.New("auth user pool not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeNoUserPool).
	WithCode(goerrors.CodeInternal)

// ErrNotStarted is returned when sending to an authenticator before Start.
var ErrNotStarted = goerrors.New("authenticator not started", goerrors.CategoryOperation).
	WithTextCode(TextCodeNotStarted).
	WithCode(goerrors.CodeBadRequest)

// ErrStopped is returned once the authenticator loop has exited.
var ErrStopped = goerrors.New("authenticator stopped", goerrors.CategoryOperation).
	WithTextCode(TextCodeStopped).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidRoute is returned by SetRoute for non navigable routes.
var ErrInvalidRoute = goerrors.New("route is not navigable", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRoute).
	WithCode(goerrors.CodeBadRequest)

// ErrUnsupportedOperation is returned by handlers that do not implement an operation.
var ErrUnsupportedOperation = goerrors.New("operation not supported", goerrors.CategoryOperation).
	WithTextCode(TextCodeUnsupportedOperation).
	WithCode(goerrors.CodeBadRequest)

// ProviderError is the rejection shape handlers use to report identity provider failures.
type ProviderError struct {
	Name    string
	Message string
	Err     error
}

// NewProviderError builds a named provider error.
func NewProviderError(name, message string) *ProviderError {
	return &ProviderError{Name: name, Message: message}
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Name
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrorName reports the provider name of err. Errors built with go-errors
// report their text code, except ErrNoUserPool which maps to NoUserPoolError.
func ErrorName(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoUserPool) {
		return ErrorNameNoUserPool
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Name != "" {
		return pe.Name
	}
	var named interface{ Name() string }
	if errors.As(err, &named) {
		return named.Name()
	}
	var ge *goerrors.Error
	if errors.As(err, &ge) && ge.TextCode != "" {
		return ge.TextCode
	}
	return "Error"
}

// ErrorMessage reports the message of err without provider decoration.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	var ge *goerrors.Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return err.Error()
}
