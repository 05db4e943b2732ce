package authflow

import (
	"net/url"
	"strings"
)

// TOTPSetupURI builds the otpauth URI authenticator apps scan during TOTP
// enrollment.
func TOTPSetupURI(issuer, username, secret string) string {
	label := url.PathEscape(issuer) + ":" + url.PathEscape(username)
	q := url.Values{}
	q.Set("secret", secret)
	q.Set("issuer", issuer)
	// url.Values encodes spaces as "+", authenticator apps expect %20.
	return "otpauth://totp/" + label + "?" + strings.ReplaceAll(q.Encode(), "+", "%20")
}
