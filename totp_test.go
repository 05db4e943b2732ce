package authflow_test

import (
	"testing"

	"github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
)

func TestTOTPSetupURI(t *testing.T) {
	assert.Equal(t,
		"otpauth://totp/My%20App:alice?issuer=My%20App&secret=ABC",
		authflow.TOTPSetupURI("My App", "alice", "ABC"),
	)
	assert.Equal(t,
		"otpauth://totp/AWSCognito:alice@example.com?issuer=AWSCognito&secret=JBSWY3DPEHPK3PXP",
		authflow.TOTPSetupURI("AWSCognito", "alice@example.com", "JBSWY3DPEHPK3PXP"),
	)
}
