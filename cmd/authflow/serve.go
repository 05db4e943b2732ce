package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/metrics"
	"github.com/goliatone/go-authflow/social"
	"github.com/goliatone/go-router"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the authenticator over HTTP",
		Long: `Serves the flow API under /auth/flow, the federated redirect endpoints under
/auth/social and Prometheus metrics on the metrics address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, cfg, root.users)
			if err != nil {
				return err
			}
			defer app.Close()

			return serve(ctx, app)
		},
	}
}

func newServer(app *App) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			DisableStartupMessage: true,
		}))
	})

	api := srv.Router().Group("/auth")

	authflow.RegisterFlowRoutes(api.Group("/flow"), app.Authenticator(),
		func(c *authflow.FlowController) *authflow.FlowController {
			c.Debug = app.Config.Log.Level == "debug"
			c.Logger = app.named("flow:http")
			return c
		},
	)

	if app.Redirector != nil {
		httpCfg := app.Config.SocialHTTPConfig()
		httpCfg.SessionToken = func(context.Context) string {
			return app.Identity.Token()
		}
		social.NewHTTPController(app.Redirector, httpCfg).RegisterRoutes(api.Group("/social"))
	}

	if app.Repo != nil {
		api.Get("/activity", func(ctx router.Context) error {
			records, err := app.Repo.Activity().Recent(ctx.Context(), 50)
			if err != nil {
				return ctx.JSON(http.StatusInternalServerError, router.ViewContext{"error": err.Error()})
			}
			return ctx.JSON(router.StatusOK, router.ViewContext{"records": records})
		}).SetName("activity.list")
	}

	return srv
}

func serve(ctx context.Context, app *App) error {
	srv := newServer(app)

	handler, err := metrics.Handler(app.Metrics)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	metricsSrv := &http.Server{
		Addr:              app.Config.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 2)
	go func() {
		app.Logger.Info("http listening", "addr", app.Config.HTTP.Addr)
		errs <- srv.Serve(app.Config.HTTP.Addr)
	}()
	go func() {
		app.Logger.Info("metrics listening", "addr", app.Config.Metrics.Addr)
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-errs:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}
