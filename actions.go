package authflow

import "slices"

// Challenge names recorded next to the sign in step.
const (
	ChallengeSMSMFA        = "SMS_MFA"
	ChallengeSoftwareToken = "SOFTWARE_TOKEN_MFA"
	ChallengeEmailOTP      = "EMAIL_OTP"
	ChallengeMFASetup      = "MFA_SETUP"
	ChallengeSelectMFAType = "SELECT_MFA_TYPE"
)

func (c *FlowContext) clearError() {
	c.RemoteError = ""
}

func (c *FlowContext) setUsername(d EventData) {
	if u := d.String("username"); u != "" {
		c.Username = u
	}
}

// setRemoteError surfaces err, rewriting the unconfigured pool case.
func (c *FlowContext) setRemoteError(err error) {
	if err == nil {
		return
	}
	if ErrorName(err) == ErrorNameNoUserPool {
		c.RemoteError = NoUserPoolMessage
		return
	}
	c.RemoteError = ErrorMessage(err)
}

// setCodeDeliveryDetails prefers nextStep.codeDeliveryDetails and falls back
// to an output that is itself the delivery record.
func (c *FlowContext) setCodeDeliveryDetails(r result) {
	var d *CodeDeliveryDetails
	switch out := r.output.(type) {
	case *SignInOutput:
		if out != nil {
			d = out.NextStep.CodeDeliveryDetails
		}
	case *SignUpOutput:
		if out != nil {
			d = out.NextStep.CodeDeliveryDetails
		}
	case *ResetPasswordOutput:
		if out != nil {
			d = out.NextStep.CodeDeliveryDetails
		}
	case *CodeDeliveryDetails:
		d = out
	}
	if d == nil {
		return
	}
	cp := *d
	c.CodeDeliveryDetails = &cp
}

func (c *FlowContext) setTOTPSecretCode(r result) {
	out, ok := r.output.(*SignInOutput)
	if !ok || out == nil || out.NextStep.TOTPSetupDetails == nil {
		return
	}
	c.TOTPSecretCode = out.NextStep.TOTPSetupDetails.SharedSecret
}

func (c *FlowContext) setAllowedMFATypes(r result) {
	out, ok := r.output.(*SignInOutput)
	if !ok || out == nil {
		return
	}
	c.AllowedMFATypes = slices.Clone(out.NextStep.AllowedMFATypes)
}

func (c *FlowContext) setMissingAttributes(r result) {
	out, ok := r.output.(*SignInOutput)
	if !ok || out == nil {
		return
	}
	c.MissingAttributes = slices.Clone(out.NextStep.MissingAttributes)
}

func (c *FlowContext) setChallengeName(r result) {
	switch signInStepOf(r) {
	case StepConfirmSignInWithSMSCode:
		c.ChallengeName = ChallengeSMSMFA
	case StepConfirmSignInWithTOTPCode:
		c.ChallengeName = ChallengeSoftwareToken
	case StepConfirmSignInWithEmailCode:
		c.ChallengeName = ChallengeEmailOTP
	case StepContinueSignInWithMFASetupSelection, StepContinueSignInWithEmailSetup, StepContinueSignInWithTOTPSetup:
		c.ChallengeName = ChallengeMFASetup
	case StepContinueSignInWithMFASelection:
		c.ChallengeName = ChallengeSelectMFAType
	default:
		c.ChallengeName = ""
	}
}

func (c *FlowContext) setNextSignInStep(r result) {
	step := signInStepOf(r)
	if step == StepDone {
		step = StepSignInComplete
	}
	c.Step = step
}

func (c *FlowContext) setNextSignUpStep(r result) {
	step := signUpStepOf(r)
	if step == StepDone {
		step = StepSignUpComplete
	}
	c.Step = step
}

func (c *FlowContext) setNextResetPasswordStep(r result) {
	out, ok := r.output.(*ResetPasswordOutput)
	if !ok || out == nil {
		return
	}
	step := out.NextStep.ResetPasswordStep
	if step == StepDone {
		step = StepResetPasswordComplete
	}
	c.Step = step
}

// setUnverifiedUserAttributes keeps only the non-empty contact attributes.
func (c *FlowContext) setUnverifiedUserAttributes(r result) {
	attrs, _ := r.output.(UserAttributes)
	out := UserAttributes{}
	if v := attrs[AttributeEmail]; v != "" {
		out[AttributeEmail] = v
	}
	if v := attrs[AttributePhoneNumber]; v != "" {
		out[AttributePhoneNumber] = v
	}
	c.UnverifiedUserAttributes = out
}

func (c *FlowContext) setSelectedUserAttribute(r result, requested string) {
	if d, ok := r.output.(*CodeDeliveryDetails); ok && d != nil && d.AttributeName != "" {
		c.SelectedUserAttribute = d.AttributeName
		return
	}
	c.SelectedUserAttribute = requested
}

func (c *FlowContext) clearSelectedUserAttribute() {
	c.SelectedUserAttribute = ""
}

func (c *FlowContext) setStep(step Step) {
	c.Step = step
}
