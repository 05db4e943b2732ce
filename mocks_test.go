package authflow_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/mock"
)

// MockHandlers implements authflow.Handlers
type MockHandlers struct {
	mock.Mock
}

func (m *MockHandlers) GetCurrentUser(ctx context.Context) (*authflow.AuthUser, error) {
	args := m.Called(ctx)
	user, _ := args.Get(0).(*authflow.AuthUser)
	return user, args.Error(1)
}

func (m *MockHandlers) FetchUserAttributes(ctx context.Context) (authflow.UserAttributes, error) {
	args := m.Called(ctx)
	attrs, _ := args.Get(0).(authflow.UserAttributes)
	return attrs, args.Error(1)
}

func (m *MockHandlers) SignIn(ctx context.Context, in authflow.SignInInput) (*authflow.SignInOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*authflow.SignInOutput)
	return out, args.Error(1)
}

func (m *MockHandlers) SignInWithRedirect(ctx context.Context, in authflow.SignInWithRedirectInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockHandlers) SignUp(ctx context.Context, in authflow.SignUpInput) (*authflow.SignUpOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*authflow.SignUpOutput)
	return out, args.Error(1)
}

func (m *MockHandlers) SignOut(ctx context.Context, in authflow.SignOutInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockHandlers) AutoSignIn(ctx context.Context) (*authflow.SignInOutput, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).(*authflow.SignInOutput)
	return out, args.Error(1)
}

func (m *MockHandlers) ConfirmSignIn(ctx context.Context, in authflow.ConfirmSignInInput) (*authflow.SignInOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*authflow.SignInOutput)
	return out, args.Error(1)
}

func (m *MockHandlers) ConfirmSignUp(ctx context.Context, in authflow.ConfirmSignUpInput) (*authflow.SignUpOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*authflow.SignUpOutput)
	return out, args.Error(1)
}

func (m *MockHandlers) ConfirmResetPassword(ctx context.Context, in authflow.ConfirmResetPasswordInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockHandlers) ConfirmUserAttribute(ctx context.Context, in authflow.ConfirmUserAttributeInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockHandlers) ResetPassword(ctx context.Context, in authflow.ResetPasswordInput) (*authflow.ResetPasswordOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*authflow.ResetPasswordOutput)
	return out, args.Error(1)
}

func (m *MockHandlers) ResendSignUpCode(ctx context.Context, in authflow.ResendSignUpCodeInput) (*authflow.CodeDeliveryDetails, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*authflow.CodeDeliveryDetails)
	return out, args.Error(1)
}

func (m *MockHandlers) SendUserAttributeVerificationCode(ctx context.Context, in authflow.SendUserAttributeVerificationCodeInput) (*authflow.CodeDeliveryDetails, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*authflow.CodeDeliveryDetails)
	return out, args.Error(1)
}

// MockActivitySink collects activity events
type MockActivitySink struct {
	mu     sync.Mutex
	events []authflow.ActivityEvent
}

func (s *MockActivitySink) Record(_ context.Context, ev authflow.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *MockActivitySink) Events() []authflow.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]authflow.ActivityEvent(nil), s.events...)
}

func (s *MockActivitySink) Types() []authflow.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]authflow.ActivityEventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}
