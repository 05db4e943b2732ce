package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

const (
	settleQuiet   = 150 * time.Millisecond
	settleTimeout = 5 * time.Second
)

func newRunCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Drive the authenticator from the terminal",
		Long: `Starts an authenticator backed by the in-memory identity provider and reads
commands from stdin. Type "help" for the command list.`,
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

			c := &console{app: app, out: cmd.OutOrStdout()}
			return c.loop(ctx, cmd.InOrStdin())
		},
	}
}

type console struct {
	app *App
	out io.Writer
}

func (c *console) loop(ctx context.Context, in io.Reader) error {
	a := c.app.Authenticator()
	c.printFacade(c.wait(ctx, nil))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(c.out, "> ")
		var line string
		select {
		case <-ctx.Done():
			return nil
		case <-a.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		quit, err := c.exec(ctx, strings.Fields(line))
		if err != nil {
			fmt.Fprintf(c.out, "error: %s\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (c *console) exec(ctx context.Context, args []string) (quit bool, err error) {
	if len(args) == 0 {
		return false, nil
	}
	a := c.app.Authenticator()

	switch args[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		c.help()
	case "state":
		c.printFacade(a.Facade())
	case "submit":
		data := parseFields(args[1:])
		fmt.Fprintln(c.out, print.MaybeSecureJSON(data))
		c.printFacade(c.wait(ctx, func() error { return a.HandleSubmit(data) }))
	case "route":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: route signIn|signUp|forgotPassword|signOut")
		}
		c.printFacade(c.wait(ctx, func() error { return a.SetRoute(authflow.Route(args[1])) }))
	case "signout":
		c.printFacade(c.wait(ctx, func() error { return a.SetRoute(authflow.RouteSignOut) }))
	case "resend":
		c.printFacade(c.wait(ctx, a.ResendConfirmationCode))
	case "skip":
		c.printFacade(c.wait(ctx, a.SkipAttributeVerification))
	case "refresh":
		c.printFacade(c.wait(ctx, a.RefreshUser))
	case "federated":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: federated <provider> [customState]")
		}
		data := authflow.EventData{"provider": args[1]}
		if len(args) > 2 {
			data["customState"] = args[2]
		}
		c.printFacade(c.wait(ctx, func() error { return a.ToFederatedSignIn(data) }))
	case "callback":
		if c.app.Redirector == nil {
			return false, fmt.Errorf("no federated provider configured")
		}
		if len(args) < 3 {
			return false, fmt.Errorf("usage: callback <code> <state>")
		}
		c.printFacade(c.wait(ctx, func() error {
			_, err := c.app.Redirector.Complete(ctx, args[1], args[2])
			return err
		}))
	case "code":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: code <username>")
		}
		code, ok := c.app.Identity.LastCode(args[1])
		if !ok {
			return false, fmt.Errorf("no code issued for %s", args[1])
		}
		fmt.Fprintln(c.out, code)
	case "totp":
		f := a.Facade()
		if f.TOTPSecretCode == "" {
			return false, fmt.Errorf("no TOTP secret on screen")
		}
		fmt.Fprintln(c.out, authflow.TOTPSetupURI(c.app.Config.Log.Service, f.Username, f.TOTPSecretCode))
	case "activity":
		if c.app.Repo == nil {
			return false, fmt.Errorf("persistence disabled, set AUTHFLOW_DB_DSN")
		}
		records, err := c.app.Repo.Activity().Recent(ctx, 10)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, print.MaybePrettyJSON(records))
	default:
		return false, fmt.Errorf("unknown command %q, try help", args[0])
	}
	return false, nil
}

// wait runs send and returns the facade once the authenticator stopped
// publishing non pending snapshots for a short while.
func (c *console) wait(ctx context.Context, send func() error) authflow.Facade {
	a := c.app.Authenticator()
	snaps := make(chan authflow.Snapshot, 64)
	unsubscribe := a.Subscribe(func(s authflow.Snapshot) {
		select {
		case snaps <- s:
		default:
		}
	})
	defer unsubscribe()

	if send != nil {
		if err := send(); err != nil {
			fmt.Fprintf(c.out, "error: %s\n", err)
			return a.Facade()
		}
	}

	last := a.Snapshot()
	quiet := time.NewTimer(settleQuiet)
	defer quiet.Stop()
	deadline := time.After(settleTimeout)

	for {
		select {
		case s := <-snaps:
			last = s
			quiet.Reset(settleQuiet)
		case <-quiet.C:
			if !last.HasTag(authflow.TagPending) && authflow.RouteOf(last) != authflow.RouteIdle {
				return authflow.NewFacade(last)
			}
			quiet.Reset(settleQuiet)
		case <-deadline:
			return authflow.NewFacade(last)
		case <-ctx.Done():
			return authflow.NewFacade(last)
		}
	}
}

func (c *console) printFacade(f authflow.Facade) {
	fmt.Fprintln(c.out, print.MaybePrettyJSON(f))
}

func (c *console) help() {
	fmt.Fprint(c.out, `commands:
  state                          show the current screen
  submit key=value ...           submit the current form
  route <name>                   go to signIn, signUp, forgotPassword or signOut
  signout                        sign out
  resend                         resend the confirmation code
  skip                           skip attribute verification
  refresh                        re-read the current user
  federated <provider> [state]   start a redirect sign in
  callback <code> <state>        finish a redirect sign in
  code <username>                show the last code sent to username
  totp                           print the otpauth URI of the shown secret
  activity                       list recent persisted activity
  quit
`)
}

func parseFields(args []string) authflow.EventData {
	data := authflow.EventData{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			continue
		}
		data[k] = v
	}
	return data
}
