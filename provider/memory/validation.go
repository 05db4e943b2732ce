package memory

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-authflow"
	"github.com/nyaruka/phonenumbers"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 256
)

var passwordRules = []validation.Rule{
	validation.Required,
	validation.Length(minPasswordLength, maxPasswordLength),
}

type signUpRequest struct {
	Username string
	Password string
	Email    string
	Phone    string
}

// Validate implements validation.Validatable.
func (r signUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Password, passwordRules...),
		validation.Field(&r.Email, is.Email),
	)
}

type signInRequest struct {
	Username string
	Password string
}

// Validate implements validation.Validatable.
func (r signInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func validatePassword(password string) error {
	if err := validation.Validate(password, passwordRules...); err != nil {
		return invalidPassword(err)
	}
	return nil
}

// normalizePhone returns the E.164 form of raw.
func normalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("not a valid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// normalizeAttributes validates the standard attributes and rewrites the
// phone number to E.164.
func normalizeAttributes(in authflow.UserAttributes, region string) (authflow.UserAttributes, error) {
	out := authflow.UserAttributes{}
	for k, v := range in {
		out[k] = strings.TrimSpace(v)
	}
	if phone := out[authflow.AttributePhoneNumber]; phone != "" {
		e164, err := normalizePhone(phone, region)
		if err != nil {
			return nil, invalidParameter("Invalid phone number format.", err)
		}
		out[authflow.AttributePhoneNumber] = e164
	}
	return out, nil
}

// validationMessage flattens ozzo errors into a single sentence.
func validationMessage(err error) string {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	return strings.TrimSuffix(errs.Error(), ".") + "."
}
