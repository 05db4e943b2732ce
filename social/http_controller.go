package social

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController serves the browser side of the redirect flow.
type HTTPController struct {
	redirector *Redirector
	config     HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// CookieName for storing the session token (default: "authflow_session")
	CookieName     string
	CookieSecure   bool
	CookieHTTPOnly bool
	// CookieSameSite sets the SameSite attribute (e.g. "Lax", "Strict", "None")
	CookieSameSite string

	// SessionToken returns the token of the session opened by the callback.
	// When nil or empty no cookie is written.
	SessionToken func(ctx context.Context) string

	// SuccessRedirect is where the browser goes after a completed sign in
	SuccessRedirect string

	// ErrorRedirect is the redirect for auth errors
	ErrorRedirect string

	// ErrorHandler handles errors (optional)
	ErrorHandler func(ctx router.Context, err error) error
}

// NewHTTPController creates a controller for r.
func NewHTTPController(r *Redirector, cfg HTTPConfig) *HTTPController {
	if cfg.CookieName == "" {
		cfg.CookieName = "authflow_session"
	}
	if cfg.CookieSameSite == "" {
		cfg.CookieSameSite = "Lax"
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = "/login?error=auth_failed"
	}
	return &HTTPController{redirector: r, config: cfg}
}

// RegisterRoutes registers the redirect routes on group.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/providers", c.ListProviders)
	group.Get("/:provider/callback", c.Callback)
	group.Get("/:provider", c.BeginAuth)
}

// ListProviders returns the registered provider names.
func (c *HTTPController) ListProviders(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]any{
		"providers": c.redirector.Providers(),
	})
}

// BeginAuth redirects the browser to the provider authorization URL.
func (c *HTTPController) BeginAuth(ctx router.Context) error {
	authURL, err := c.redirector.AuthURL(authflow.SignInWithRedirectInput{
		Provider:    ctx.Param("provider"),
		CustomState: ctx.Query("custom_state"),
	})
	if err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.Redirect(authURL, http.StatusTemporaryRedirect)
}

// Callback completes the authorization code flow.
func (c *HTTPController) Callback(ctx router.Context) error {
	if errCode := ctx.Query("error"); errCode != "" {
		redirectURL := appendQueryParam(c.config.ErrorRedirect, "oauth_error", errCode)
		if desc := ctx.Query("error_description"); desc != "" {
			redirectURL = appendQueryParam(redirectURL, "desc", desc)
		}
		return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
	}

	code, state := ctx.Query("code"), ctx.Query("state")
	if code == "" || state == "" {
		return ctx.Redirect(appendQueryParam(c.config.ErrorRedirect, "error", "missing_params"), http.StatusTemporaryRedirect)
	}

	reqCtx := ctx.Context()
	if _, err := c.redirector.Complete(reqCtx, code, state); err != nil {
		return c.handleError(ctx, err)
	}

	if c.config.SessionToken != nil {
		if token := c.config.SessionToken(reqCtx); token != "" {
			ctx.Cookie(&router.Cookie{
				Name:     c.config.CookieName,
				Value:    token,
				Path:     "/",
				Secure:   c.config.CookieSecure,
				HTTPOnly: c.config.CookieHTTPOnly,
				SameSite: c.config.CookieSameSite,
			})
		}
	}
	return ctx.Redirect(c.config.SuccessRedirect, http.StatusTemporaryRedirect)
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}
	code := authflow.ErrorName(err)
	if code == "Error" {
		code = "auth_failed"
	}
	return ctx.Redirect(appendQueryParam(c.config.ErrorRedirect, "error", code), http.StatusTemporaryRedirect)
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
