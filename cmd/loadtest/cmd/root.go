package cmd

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root Cobra command that gets called from the main func.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "loadtest measures end-to-end task latency of a queue-backed task API.",
		Long: `loadtest measures end-to-end task latency of a queue-backed task API.

Configuration is read from the environment (TARGET_BASE_URL, QUEUE_KIND, USERS,
RUN_TIME, ...). The load shape can also be given as a YAML file in SCENARIO_FILE.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		runCmd(),
		compareCmd(),
	)
	return cmd
}
