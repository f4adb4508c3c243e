package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/philiph/saml-fedcheck/internal/checks"
	"github.com/philiph/saml-fedcheck/internal/core/verification"
)

func (c *cli) suitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suites",
		Short: "List the suite and test names usable in suites and blacklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := verification.NewRegistry()
			checks.Register(reg, checks.Options{})
			out := cmd.OutOrStdout()
			for _, suite := range reg.SuiteNames() {
				fmt.Fprintln(out, suite)
				for _, test := range reg.TestNames(suite) {
					fmt.Fprintf(out, "  %s\n", test)
				}
			}
			return nil
		},
	}
}
