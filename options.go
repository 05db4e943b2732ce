package authflow

import "time"

// Option customizes Authenticator construction.
type Option func(*Authenticator)

// WithInitialRoute picks the first flow when no user is signed in. Only
// signIn, signUp and forgotPassword are honored.
func WithInitialRoute(route Route) Option {
	return func(a *Authenticator) {
		switch route {
		case RouteSignIn, RouteSignUp, RouteForgotPassword:
			a.initialRoute = route
		}
	}
}

// WithHandlerOverrides replaces individual handler operations.
func WithHandlerOverrides(o HandlerOverrides) Option {
	return func(a *Authenticator) {
		a.overrides = &o
	}
}

// WithLogger overrides the logger.
func WithLogger(logger Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLoggerProvider resolves the "authenticator" logger from provider.
func WithLoggerProvider(provider LoggerProvider) Option {
	return func(a *Authenticator) {
		if provider != nil {
			a.logger = ResolveLogger("authenticator", provider, a.logger)
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish flow events.
func WithActivitySink(sink ActivitySink) Option {
	return func(a *Authenticator) {
		a.activity = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(a *Authenticator) {
		if clock != nil {
			a.now = clock
		}
	}
}

// WithOnSignIn is called for every signedIn hub event.
func WithOnSignIn(fn func(HubPayload)) Option {
	return func(a *Authenticator) {
		a.onSignIn = fn
	}
}

// WithOnSignOut is called for every signedOut hub event, before SIGN_OUT is sent.
func WithOnSignOut(fn func()) Option {
	return func(a *Authenticator) {
		a.onSignOut = fn
	}
}
