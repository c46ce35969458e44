package main

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/stillapp/stillsync/internal/schema"
	"github.com/stillapp/stillsync/internal/ui"
)

var remindCmd = &cobra.Command{
	Use:     "remind",
	GroupID: "track",
	Short:   "Manage wellness reminders",
	Long: `Manage scheduled reminders (hydration, stretch breaks, meditation).

Reminder times accept natural phrases: "8:30am", "at noon", "6pm".
Creating, toggling, and deleting all work offline; changes sync on
reconnect.`,
}

// parseReminderTime turns a natural-language phrase into an (hour, minute)
// pair.
func parseReminderTime(phrase string) (int, int, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(phrase, time.Now())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse time %q: %w", phrase, err)
	}
	if r == nil {
		return 0, 0, fmt.Errorf("could not understand time %q", phrase)
	}
	return r.Time.Hour(), r.Time.Minute(), nil
}

var remindAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, _ := cmd.Flags().GetString("at")
		freq, _ := cmd.Flags().GetString("freq")
		kind, _ := cmd.Flags().GetString("type")
		message, _ := cmd.Flags().GetString("message")
		days, _ := cmd.Flags().GetIntSlice("days")

		hour, minute, err := parseReminderTime(at)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		r, werr := a.engine.CreateReminder(cmd.Context(), schema.Reminder{
			Type:       kind,
			Title:      args[0],
			Message:    message,
			TimeHour:   hour,
			TimeMinute: minute,
			Frequency:  freq,
			CustomDays: days,
			Enabled:    true,
		})
		if r != nil {
			fmt.Printf("%s Reminder %q at %02d:%02d (%s)\n", ui.RenderPass("✓"), r.Title, r.TimeHour, r.TimeMinute, r.Frequency)
		}
		return reportWrite(a, werr)
	},
}

var remindListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		reminders, err := a.engine.Reminders(cmd.Context())
		if err != nil {
			return err
		}
		if len(reminders) == 0 {
			fmt.Println("No reminders.")
			return nil
		}
		for _, r := range reminders {
			state := ui.RenderPass("on ")
			if !r.Enabled {
				state = ui.RenderMuted("off")
			}
			fmt.Printf("%s  %02d:%02d  %-9s  %s  %s\n",
				state, r.TimeHour, r.TimeMinute, r.Frequency, r.Title, ui.RenderMuted(r.ID))
		}
		return nil
	},
}

var remindRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		werr := a.engine.DeleteReminder(cmd.Context(), args[0])
		if werr == nil {
			fmt.Printf("%s Reminder deleted\n", ui.RenderPass("✓"))
		}
		return reportWrite(a, werr)
	},
}

var remindToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Enable or disable a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		r, werr := a.engine.ToggleReminder(cmd.Context(), args[0])
		if r != nil {
			state := "disabled"
			if r.Enabled {
				state = "enabled"
			}
			fmt.Printf("%s Reminder %q %s\n", ui.RenderPass("✓"), r.Title, state)
		}
		return reportWrite(a, werr)
	},
}

func init() {
	remindAddCmd.Flags().String("at", "8:00am", "reminder time (natural language)")
	remindAddCmd.Flags().String("freq", schema.FrequencyDaily, "daily, weekdays, or custom")
	remindAddCmd.Flags().String("type", schema.ReminderCustom, "hydration, stretchBreak, meditation, or custom")
	remindAddCmd.Flags().String("message", "", "optional notification message")
	remindAddCmd.Flags().IntSlice("days", nil, "days for custom frequency (0=Monday .. 6=Sunday)")

	remindCmd.AddCommand(remindAddCmd)
	remindCmd.AddCommand(remindListCmd)
	remindCmd.AddCommand(remindRmCmd)
	remindCmd.AddCommand(remindToggleCmd)
	rootCmd.AddCommand(remindCmd)
}
