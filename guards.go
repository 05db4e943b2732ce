package authflow

var mfaConfirmationSteps = map[Step]struct{}{
	StepConfirmSignInWithSMSCode:   {},
	StepConfirmSignInWithTOTPCode:  {},
	StepConfirmSignInWithEmailCode: {},
}

// Step guards.

func shouldConfirmSignIn(c FlowContext) bool {
	_, ok := mfaConfirmationSteps[c.Step]
	return ok
}

func shouldSetupTOTP(c FlowContext) bool {
	return c.Step == StepContinueSignInWithTOTPSetup
}

func shouldSetupEmail(c FlowContext) bool {
	return c.Step == StepContinueSignInWithEmailSetup
}

func shouldSelectMFAType(c FlowContext) bool {
	return c.Step == StepContinueSignInWithMFASelection || c.Step == StepContinueSignInWithMFASetupSelection
}

func isShouldConfirmSignInWithNewPassword(c FlowContext) bool {
	return c.Step == StepConfirmSignInWithNewPasswordRequired
}

func isConfirmSignUpStep(c FlowContext) bool {
	return c.Step == StepConfirmSignUp
}

func isResetPasswordStep(c FlowContext) bool {
	return c.Step == StepResetPassword
}

func shouldConfirmResetPassword(c FlowContext) bool {
	return c.Step == StepConfirmResetPasswordWithCode
}

func hasCompletedAttributeConfirmation(c FlowContext) bool {
	return c.Step == StepConfirmAttributeComplete
}

func isConfirmUserAttributeStep(c FlowContext) bool {
	return c.Step == StepConfirmAttributeWithCode
}

func isShouldConfirmUserAttributeStep(c FlowContext) bool {
	return c.Step == StepShouldConfirmUserAttribute
}

// Result guards.

func signInStepOf(r result) Step {
	out, ok := r.output.(*SignInOutput)
	if !ok || out == nil {
		return ""
	}
	return out.NextStep.SignInStep
}

func signUpStepOf(r result) Step {
	out, ok := r.output.(*SignUpOutput)
	if !ok || out == nil {
		return ""
	}
	return out.NextStep.SignUpStep
}

func hasCompletedSignIn(r result) bool {
	return signInStepOf(r) == StepDone
}

func shouldConfirmSignInWithNewPassword(r result) bool {
	return signInStepOf(r) == StepConfirmSignInWithNewPasswordRequired
}

func shouldResetPasswordFromSignIn(r result) bool {
	return signInStepOf(r) == StepResetPassword
}

func shouldConfirmSignUpFromSignIn(r result) bool {
	return signInStepOf(r) == StepConfirmSignUp
}

func hasCompletedSignUp(r result) bool {
	return signUpStepOf(r) == StepDone
}

func shouldAutoSignIn(r result) bool {
	return signUpStepOf(r) == StepCompleteAutoSignIn
}

func hasCompletedResetPassword(r result) bool {
	out, ok := r.output.(*ResetPasswordOutput)
	return ok && out != nil && out.NextStep.ResetPasswordStep == StepDone
}

// shouldVerifyAttribute asks for verification only when a non-empty contact
// method exists and neither email nor phone is verified yet.
func shouldVerifyAttribute(r result) bool {
	attrs, ok := r.output.(UserAttributes)
	if !ok {
		return false
	}
	if attrs[AttributeEmail] == "" && attrs[AttributePhoneNumber] == "" {
		return false
	}
	emailVerified := attrs[AttributeEmailVerified] == "true"
	phoneVerified := attrs[AttributePhoneNumberVerified] == "true"
	return !(emailVerified || phoneVerified)
}

func isUserAlreadyConfirmed(r result) bool {
	return r.err != nil && ErrorMessage(r.err) == AlreadyConfirmedMessage
}

func isUserNotConfirmed(r result) bool {
	return r.err != nil && ErrorName(r.err) == ErrorNameUserNotConfirmed
}
