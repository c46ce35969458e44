package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stillapp/stillsync/internal/schema"
	"github.com/stillapp/stillsync/internal/ui"
)

var pushCmd = &cobra.Command{
	Use:     "push",
	GroupID: "account",
	Short:   "Manage device push notification tokens",
}

var pushRegisterCmd = &cobra.Command{
	Use:   "register <token>",
	Short: "Register this device for push notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		werr := a.engine.RegisterPushToken(cmd.Context(), schema.PushTokenPayload{
			Token:    args[0],
			Platform: platform,
		})
		if werr == nil {
			fmt.Printf("%s Push token registered\n", ui.RenderPass("✓"))
		}
		return reportWrite(a, werr)
	},
}

var pushUnregisterCmd = &cobra.Command{
	Use:   "unregister <token>",
	Short: "Remove this device's push registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		werr := a.engine.UnregisterPushToken(cmd.Context(), schema.PushTokenPayload{
			Token:    args[0],
			Platform: platform,
		})
		if werr == nil {
			fmt.Printf("%s Push token removed\n", ui.RenderPass("✓"))
		}
		return reportWrite(a, werr)
	},
}

func init() {
	pushRegisterCmd.Flags().String("platform", "ios", "device platform (ios or android)")
	pushUnregisterCmd.Flags().String("platform", "ios", "device platform (ios or android)")

	pushCmd.AddCommand(pushRegisterCmd)
	pushCmd.AddCommand(pushUnregisterCmd)
	rootCmd.AddCommand(pushCmd)
}
