package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinsight/takforge/cmd/takforge/commands"
	"github.com/clinsight/takforge/logger"
)

var rootCmd = &cobra.Command{
	Use:   "takforge",
	Short: "TAKForge - schema-conformant TAK artifact generation",
	Long: `TAKForge converts tabular temporal-abstraction concept definitions into
validated XML knowledge artifacts through a generative oracle.

Each definition is driven through a generate-validate-retry loop: the
oracle proposes an artifact, two validators check its shape and its
fidelity to the definition, and rejections feed corrective directives
into the next attempt until the budget runs out. Every resolution is
recorded in a durable provenance registry, so finished definitions are
never regenerated.

Available commands:
  run     - Process the definition catalog into artifacts
  check   - Validate an existing artifact against its definition
  status  - Show registry dispositions and token spend
  version - Show build information

Examples:
  takforge run                   # Process the full catalog
  takforge run --test            # Smoke-check with a single definition
  takforge run --force           # Regenerate already-resolved definitions
  takforge check HR_STATE f.xml  # Re-validate an artifact on disk
  takforge status                # Registry overview`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of console output")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: takforge.toml discovery)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.CheckCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
