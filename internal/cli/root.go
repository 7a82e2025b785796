package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "remotedesk",
	Short: "Stream this desktop to a browser and relay its input",
	Long: `remotedesk serves the local display over websockets as a stream of
full and partial JPEG frames, and injects the mouse and keyboard events
sent back by authorized clients.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("remotedesk version {{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
