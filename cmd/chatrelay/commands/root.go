// Package commands implements chatrelay's CLI using cobra, mirroring the
// teacher's cmd/copilot/commands root-command layout.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "chatrelay",
		Short: "chatrelay - multi-transport chat-bot orchestration engine",
		Long: `chatrelay routes inbound Signal/Telegram/WhatsApp webhooks through
classification, search, and follow-up resolution, and replies through the
originating transport.

Examples:
  chatrelay serve
  chatrelay search news "latest openrouter release"
  chatrelay healthz`,
		Version: version,
	}

	root.PersistentFlags().StringP("env-file", "e", ".env", "path to a .env file to load before reading the environment")
	root.PersistentFlags().String("config", "", "path to an optional YAML config override file")
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newSearchCmd(),
		newHealthzCmd(),
	)
	return root
}
