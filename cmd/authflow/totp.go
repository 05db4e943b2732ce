package main

import (
	"fmt"

	"github.com/goliatone/go-authflow"
	"github.com/spf13/cobra"
)

func newTOTPURICmd() *cobra.Command {
	var issuer string
	cmd := &cobra.Command{
		Use:   "totp-uri <username> <secret>",
		Short: "Print the otpauth URI for an authenticator app",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), authflow.TOTPSetupURI(issuer, args[0], args[1]))
			return nil
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "authflow", "issuer shown by the authenticator app")
	return cmd
}
