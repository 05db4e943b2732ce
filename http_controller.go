package authflow

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// FlowRoutes are the paths served by FlowController, relative to the group
// it is registered on.
type FlowRoutes struct {
	State     string
	Submit    string
	Route     string
	Resend    string
	Skip      string
	Federated string
	Refresh   string
}

// FlowController exposes an Authenticator's facade over HTTP. Commands are
// queued and answered with 202 and the facade at the time of queuing;
// clients poll State for the outcome.
type FlowController struct {
	Debug  bool
	Logger Logger
	Routes *FlowRoutes
	auth   *Authenticator
}

// FlowControllerOption customizes a FlowController.
type FlowControllerOption func(*FlowController) *FlowController

// NewFlowController builds a controller for a.
func NewFlowController(a *Authenticator, opts ...FlowControllerOption) *FlowController {
	c := &FlowController{
		auth:   a,
		Logger: defaultLogger("flow:http"),
		Routes: &FlowRoutes{
			State:     "/",
			Submit:    "/submit",
			Route:     "/route",
			Resend:    "/resend",
			Skip:      "/skip",
			Federated: "/federated",
			Refresh:   "/refresh",
		},
	}
	for _, opt := range opts {
		c = opt(c)
	}
	if c.auth == nil {
		panic("Missing Authenticator in flow controller...")
	}
	return c
}

// RegisterFlowRoutes mounts a FlowController on app.
func RegisterFlowRoutes[T any](app router.Router[T], a *Authenticator, opts ...FlowControllerOption) *FlowController {
	c := NewFlowController(a, opts...)

	app.Get(c.Routes.State, c.State).SetName("flow.state")
	app.Post(c.Routes.Submit, c.Submit).SetName("flow.submit")
	app.Post(c.Routes.Route, c.SetRoute).SetName("flow.route")
	app.Post(c.Routes.Resend, c.Resend).SetName("flow.resend")
	app.Post(c.Routes.Skip, c.Skip).SetName("flow.skip")
	app.Post(c.Routes.Federated, c.Federated).SetName("flow.federated")
	app.Post(c.Routes.Refresh, c.Refresh).SetName("flow.refresh")

	return c
}

// State returns the current facade.
func (c *FlowController) State(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, c.auth.Facade())
}

// Submit forwards the request body as SUBMIT data.
func (c *FlowController) Submit(ctx router.Context) error {
	payload := EventData{}
	if err := ctx.Bind(&payload); err != nil {
		return c.fail(ctx, http.StatusBadRequest, err)
	}

	if c.Debug {
		// values are masked, the payload carries passwords and codes
		c.Logger.Debug("flow submit", "payload", print.MaybeSecureJSON(payload))
	}

	return c.accepted(ctx, c.auth.HandleSubmit(payload))
}

// RouteRequest is the body of SetRoute.
type RouteRequest struct {
	Route string `form:"route" json:"route"`
}

// Validate implements validation.Validatable.
func (r RouteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Route,
			validation.Required,
			validation.In(
				string(RouteSignIn),
				string(RouteSignUp),
				string(RouteForgotPassword),
				string(RouteSignOut),
			),
		),
	)
}

// SetRoute navigates to another flow.
func (c *FlowController) SetRoute(ctx router.Context) error {
	payload := new(RouteRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.fail(ctx, http.StatusBadRequest, err)
	}
	if err := payload.Validate(); err != nil {
		return c.fail(ctx, http.StatusBadRequest, err)
	}
	return c.accepted(ctx, c.auth.SetRoute(Route(payload.Route)))
}

// Resend requests a new confirmation code.
func (c *FlowController) Resend(ctx router.Context) error {
	return c.accepted(ctx, c.auth.ResendConfirmationCode())
}

// Skip skips attribute verification.
func (c *FlowController) Skip(ctx router.Context) error {
	return c.accepted(ctx, c.auth.SkipAttributeVerification())
}

// FederatedRequest is the body of Federated.
type FederatedRequest struct {
	Provider    string `form:"provider" json:"provider"`
	CustomState string `form:"custom_state" json:"customState"`
}

func (r FederatedRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Provider, validation.Required, validation.Length(1, 64)),
	)
}

// Federated starts a redirect sign in.
func (c *FlowController) Federated(ctx router.Context) error {
	payload := new(FederatedRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.fail(ctx, http.StatusBadRequest, err)
	}
	if err := payload.Validate(); err != nil {
		return c.fail(ctx, http.StatusBadRequest, err)
	}
	return c.accepted(ctx, c.auth.ToFederatedSignIn(EventData{
		"provider":    payload.Provider,
		"customState": payload.CustomState,
	}))
}

// Refresh re-reads the current user.
func (c *FlowController) Refresh(ctx router.Context) error {
	return c.accepted(ctx, c.auth.RefreshUser())
}

func (c *FlowController) accepted(ctx router.Context, err error) error {
	if err != nil {
		return c.fail(ctx, statusFor(err), err)
	}
	return ctx.JSON(http.StatusAccepted, c.auth.Facade())
}

func (c *FlowController) fail(ctx router.Context, status int, err error) error {
	c.Logger.Info("flow request rejected", "status", status, "error", err)
	return ctx.JSON(status, router.ViewContext{
		"error":   ErrorName(err),
		"message": ErrorMessage(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotStarted), errors.Is(err, ErrStopped):
		return http.StatusServiceUnavailable
	}
	var ge *goerrors.Error
	if errors.As(err, &ge) && ge.Code != 0 {
		return ge.Code
	}
	return http.StatusInternalServerError
}
