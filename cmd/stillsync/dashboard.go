package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stillapp/stillsync/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "sync",
	Short:   "Run the sync engine with a real-time WebSocket dashboard",
	Long: `Run the background sync engine and a WebSocket dashboard.

The engine retries the pending queue on its configured interval; the
dashboard broadcasts connectivity flips, queued mutations, and replay
progress to connected WebSocket clients.

Example usage:
  stillsync dashboard              # default port from config (7878)
  stillsync dashboard --port 9000

Connect with a WebSocket client:
  ws://localhost:7878/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = a.cfg.DashboardPort
		}

		server := dashboard.NewServer(a.engine, &dashboard.Config{
			Port:   port,
			Logger: a.logger,
		})

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := a.engine.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sync engine: %w", err)
		}
		defer a.engine.Stop()

		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}

		fmt.Printf("Dashboard on http://localhost:%d (ws://localhost:%d/ws)\n", port, port)
		fmt.Println("Press Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		return server.Stop()
	},
}

func init() {
	dashboardCmd.Flags().Int("port", 7878, "dashboard port")
	rootCmd.AddCommand(dashboardCmd)
}
