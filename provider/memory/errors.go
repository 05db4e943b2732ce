package memory

import (
	"github.com/goliatone/go-authflow"
	goerrors "github.com/goliatone/go-errors"
)

const errorNameAutoSignIn = "AutoSignInException"

const (
	TextCodeSigningKeyRequired = "SIGNING_KEY_REQUIRED"
	TextCodeActiveKeyRetire    = "ACTIVE_KEY_RETIRE"
)

// ErrSigningKeyRequired is returned by New when the config carries no signing key.
var ErrSigningKeyRequired = goerrors.New("memory: signing key is required", goerrors.CategoryValidation).
	WithTextCode(TextCodeSigningKeyRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrActiveKeyRetire is returned by RetireKey for the current signing key.
var ErrActiveKeyRetire = goerrors.New("memory: cannot retire the active signing key", goerrors.CategoryOperation).
	WithTextCode(TextCodeActiveKeyRetire).
	WithCode(goerrors.CodeBadRequest)

func providerError(name, message string, cause error) error {
	return &authflow.ProviderError{Name: name, Message: message, Err: cause}
}

func notAuthorized(message string, cause error) error {
	return providerError(authflow.ErrorNameNotAuthorized, message, cause)
}

func unauthenticated() error {
	return providerError(authflow.ErrorNameUserUnauthorized, "User needs to be authenticated to call this API.", nil)
}

func userNotFound() error {
	return providerError(authflow.ErrorNameUserNotFound, "User does not exist.", nil)
}

func invalidParameter(message string, cause error) error {
	return providerError(authflow.ErrorNameInvalidParameter, message, cause)
}

func invalidPassword(cause error) error {
	return providerError(authflow.ErrorNameInvalidPassword, "Password does not conform to policy: "+validationMessage(cause), cause)
}

func codeMismatch() error {
	return providerError(authflow.ErrorNameCodeMismatch, "Invalid verification code provided, please try again.", nil)
}

func expiredCode() error {
	return providerError(authflow.ErrorNameExpiredCode, "Invalid code provided, please request a code again.", nil)
}
