// Command authflow drives an authenticator against the in-memory identity
// provider, either from a terminal or over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	envFiles []string
	users    []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "authflow",
		Short:         "Authentication flow orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading AUTHFLOW_* variables")
	root.PersistentFlags().StringArrayVar(&opts.users, "user", nil, "seed a confirmed account, username:password[:email]")

	root.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newTOTPURICmd(),
	)
	return root
}
