// Command stillsync is the offline-first client for the Still wellness
// service. It keeps a local SQLite mirror of the user's data, queues
// mutations while the service is unreachable, and replays them in order
// once connectivity returns.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stillapp/stillsync/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "stillsync",
	Short: "Offline-first sync client for the Still wellness service",
	Long: `stillsync mirrors your wellness data into a local SQLite database so
reads and writes keep working without a network connection.

Writes always commit locally first. When the service is unreachable they
are queued and replayed in order on reconnect; the local copy is what you
see either way.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "mirror diagnostics to stderr")
	rootCmd.AddGroup(
		&cobra.Group{ID: "account", Title: "Account:"},
		&cobra.Group{ID: "track", Title: "Tracking:"},
		&cobra.Group{ID: "sync", Title: "Synchronization:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
