package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/stillapp/stillsync/internal/remote"
	"github.com/stillapp/stillsync/internal/schema"
	"github.com/stillapp/stillsync/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "account",
	Short:   "Authenticate with the Still service",
	Long: `Authenticate with email and password and store the session locally.

The session (access and refresh tokens) is kept in the local database and
refreshed automatically when it expires. Run login again to switch users.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		if email == "" || password == "" {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Email").
						Value(&email),
					huh.NewInput().
						Title("Password").
						EchoMode(huh.EchoModePassword).
						Value(&password),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}
		}

		creds, err := a.client.Login(cmd.Context(), email, password)
		if err != nil {
			if remote.IsUnreachable(err) {
				return fmt.Errorf("service unreachable; login needs a connection")
			}
			return fmt.Errorf("login failed: %w", err)
		}

		if err := remote.NewStoreTokenSource(a.store).Store(creds); err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}

		fmt.Printf("%s Logged in as %s\n", ui.RenderPass("✓"), ui.RenderBold(creds.User.Name))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "account",
	Short:   "Discard the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := remote.NewStoreTokenSource(a.store).Clear(); err != nil {
			return err
		}
		fmt.Printf("%s Logged out\n", ui.RenderPass("✓"))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	GroupID: "account",
	Short:   "Show the current profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.engine.Profile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>\n", ui.RenderBold(p.Name), p.Email)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:     "profile",
	GroupID: "account",
	Short:   "Update the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch schema.ProfilePatch
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			patch.Name = &name
		}
		if cmd.Flags().Changed("avatar") {
			avatar, _ := cmd.Flags().GetString("avatar")
			patch.Avatar = &avatar
		}
		if patch.Name == nil && patch.Avatar == nil {
			return fmt.Errorf("nothing to update; pass --name or --avatar")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		p, werr := a.engine.UpdateProfile(cmd.Context(), patch)
		if p != nil {
			fmt.Printf("%s Profile updated: %s\n", ui.RenderPass("✓"), p.Name)
		}
		return reportWrite(a, werr)
	},
}

func init() {
	loginCmd.Flags().String("email", "", "account email (prompts if omitted)")
	loginCmd.Flags().String("password", "", "account password (prompts if omitted)")
	profileCmd.Flags().String("name", "", "display name")
	profileCmd.Flags().String("avatar", "", "avatar URL")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(profileCmd)
}
