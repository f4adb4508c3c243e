package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cli holds the state shared by all commands.
type cli struct {
	verbose bool
	logger  *zap.Logger

	// buildLogger is replaced in tests.
	buildLogger func(verbose bool) (*zap.Logger, error)
}

func newCLI() *cli {
	return &cli{buildLogger: productionLogger}
}

func productionLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fedcheck",
		Short: "Verify the entities of a SAML federation",
		Long: `fedcheck loads a SAML federation metadata aggregate and runs verification
suites against every identity and service provider it lists. Failed
verifications are printed to the console or filed in an issue tracker,
one issue per entity and test.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := c.buildLogger(c.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(c.verifyCmd())
	root.AddCommand(c.suitesCmd())
	return root
}
