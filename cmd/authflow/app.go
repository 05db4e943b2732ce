package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/activitymap"
	"github.com/goliatone/go-authflow/adapters/redishub"
	"github.com/goliatone/go-authflow/config"
	"github.com/goliatone/go-authflow/metrics"
	"github.com/goliatone/go-authflow/provider/memory"
	"github.com/goliatone/go-authflow/repository"
	"github.com/goliatone/go-authflow/social"
	"github.com/redis/go-redis/v9"
)

// App holds the wired components of one process.
type App struct {
	Config     config.Config
	Logger     authflow.Logger
	Hub        authflow.Hub
	Identity   *memory.Provider
	Metrics    *metrics.Collector
	Repo       *repository.Manager
	Redirector *social.Redirector
	Scope      *authflow.Provider

	closers []func()
}

// AppOption adjusts the wiring before the authenticator is created.
type AppOption func(*App) error

func (a *App) named(name string) authflow.Logger {
	if lp, ok := a.Logger.(authflow.LoggerProvider); ok {
		return lp.GetLogger(name)
	}
	return a.Logger
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases everything in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Authenticator returns the authenticator owned by the app scope.
func (a *App) Authenticator() *authflow.Authenticator {
	return a.Scope.Authenticator()
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.envFiles...)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewApp wires hub, identity provider, persistence, metrics and the
// federated redirect flow, then mounts the authenticator.
func NewApp(ctx context.Context, cfg config.Config, users []string, opts ...AppOption) (_ *App, err error) {
	logger, err := authflow.NewLogger(cfg.LoggerConfig())
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if err = app.wireHub(ctx); err != nil {
		return nil, err
	}

	if err = app.wireRepository(ctx); err != nil {
		return nil, err
	}

	var redirector *social.Redirector
	identity, err := memory.New(cfg.MemoryProviderConfig(),
		memory.WithHub(app.Hub),
		memory.WithLogger(app.named("memory")),
		memory.WithRedirect(func(ctx context.Context, in authflow.SignInWithRedirectInput) error {
			if redirector == nil {
				return authflow.ErrUnsupportedOperation
			}
			return redirector.SignInWithRedirect(ctx, in)
		}),
	)
	if err != nil {
		return nil, err
	}
	app.Identity = identity

	if err = seedUsers(identity, users); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err = opt(app); err != nil {
			return nil, err
		}
	}

	if cfg.OIDCEnabled() {
		if redirector, err = app.wireRedirector(ctx); err != nil {
			return nil, err
		}
		app.Redirector = redirector
	}

	app.Metrics = metrics.NewCollector(cfg.Metrics.Namespace)

	sinks := authflow.MultiActivitySink{app.Metrics, activityLogger(app.named("activity"))}
	if app.Repo != nil {
		sinks = append(sinks, app.Repo.Activity())
	}

	app.Scope = authflow.NewProvider(app.Hub, identity,
		authflow.WithLogger(app.named("authenticator")),
		authflow.WithInitialRoute(cfg.InitialRoute()),
		authflow.WithActivitySink(sinks),
	)

	unmount, err := app.Scope.Mount(ctx)
	if err != nil {
		return nil, err
	}
	app.onClose(unmount)
	app.onClose(app.Metrics.Attach(app.Authenticator()))

	return app, nil
}

func (a *App) wireHub(ctx context.Context) error {
	if a.Config.Hub.RedisURL == "" {
		a.Hub = authflow.NewEventHub(authflow.WithHubLogger(a.named("hub")))
		return nil
	}

	redisOpts, err := redis.ParseURL(a.Config.Hub.RedisURL)
	if err != nil {
		return fmt.Errorf("hub redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	a.onClose(func() { _ = client.Close() })

	hub := redishub.New(client,
		redishub.WithChannelPrefix(a.Config.Hub.Prefix),
		redishub.WithLogger(a.named("hub")),
	)
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("hub subscribe: %w", err)
	}
	a.onClose(func() { _ = hub.Close() })

	a.Hub = hub
	return nil
}

func (a *App) wireRepository(ctx context.Context) error {
	dsn := a.Config.Database.DSN
	if dsn == "" {
		if !a.Config.OIDCEnabled() {
			return nil
		}
		// linked accounts need a store even without persistence
		dsn = "file::memory:"
	}

	db, err := repository.Open(dsn)
	if err != nil {
		return err
	}
	repo := repository.NewManager(db, repositoryOptions(a.Config)...)
	repo.MustValidate()
	a.onClose(func() { _ = repo.Close() })

	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.Repo = repo
	return nil
}

func (a *App) wireRedirector(ctx context.Context) (*social.Redirector, error) {
	sessions := social.IdentityHandlerFunc(func(ctx context.Context, id social.Identity) (*authflow.AuthUser, error) {
		return a.Identity.FederatedSignIn(ctx, memory.FederatedIdentity{
			Provider:      id.Provider,
			Subject:       id.Subject,
			Email:         id.Email,
			EmailVerified: id.EmailVerified,
		})
	})

	linker := social.NewLinker(a.Repo.Accounts(), sessions, a.Config.LinkPolicy(),
		social.WithLinkerLogger(a.named("linker")),
	)

	redirector := social.NewRedirector(a.Config.StateManager(), linker,
		social.WithHub(a.Hub),
		social.WithLogger(a.named("social")),
		social.WithOpener(func(_ context.Context, url string) error {
			fmt.Println("open in a browser to continue:")
			fmt.Println("  " + url)
			return nil
		}),
	)
	if err := redirector.Register(ctx, a.Config.ProviderConfig()); err != nil {
		return nil, err
	}
	return redirector, nil
}

func seedUsers(p *memory.Provider, users []string) error {
	for _, u := range users {
		parts := strings.SplitN(u, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("invalid --user %q, expected username:password[:email]", u)
		}
		spec := memory.UserSpec{
			Username:   parts[0],
			Password:   parts[1],
			Confirmed:  true,
			Attributes: authflow.UserAttributes{},
		}
		if len(parts) == 3 && parts[2] != "" {
			spec.Attributes[authflow.AttributeEmail] = parts[2]
			spec.Attributes[authflow.AttributeEmailVerified] = "true"
		}
		if _, err := p.CreateUser(spec); err != nil {
			return fmt.Errorf("seed %s: %w", parts[0], err)
		}
	}
	return nil
}

func repositoryOptions(cfg config.Config) []activitymap.Option {
	return []activitymap.Option{
		activitymap.WithDefaultChannel(cfg.Log.Service),
	}
}

func activityLogger(logger authflow.Logger) authflow.ActivitySink {
	return authflow.ActivitySinkFunc(func(_ context.Context, ev authflow.ActivityEvent) error {
		logger.Info("activity",
			"event", ev.EventType,
			"flow", ev.Flow,
			"user", ev.Username,
			"operation", ev.Operation,
			"error_name", ev.ErrorName,
		)
		return nil
	})
}
