package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spindleworks/novem/cmd/novem/commands"
	"github.com/spindleworks/novem/logger"
)

var rootCmd = &cobra.Command{
	Use:   "novem",
	Short: "novem - digital-root bucket store with anchor judgment",
	Long: `novem - an in-memory semantic bucket store.

Items are addressed by the digital root of their source counter into ten
buckets, traverse the 1-2-4-8-7-5 doubling cycle, and face judgment at the
anchor buckets (3, 6, 9), where a signal-subspace monitor decides whether
they amplify, reverse or stabilize.

Available commands:
  serve   - Start the store with background traversal and the API server
  status  - Show bucket occupancy and anchor state of a running instance
  feed    - Run a self-contained traversal demo
  config  - Manage configuration
  version - Show version information

Examples:
  novem serve                  # Start the server
  novem status                 # Inspect a running instance
  novem feed --items 50        # Local demo run
  novem config show            # Show current configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "show" || cmd.Name() == "get" {
			return nil // Plain output commands skip logger noise
		}
		jsonOutput, _ := cmd.Flags().GetBool("json-logs")
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := zap.InfoLevel
		if verbose {
			level = zap.DebugLevel
		}
		if err := logger.InitializeWithLevel(jsonOutput, level); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.FeedCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
