package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stillapp/stillsync/internal/engine"
	"github.com/stillapp/stillsync/internal/schema"
	"github.com/stillapp/stillsync/internal/ui"
)

// reportWrite prints the outcome of a local-first write. A nil error or a
// queued mutation both read as success to the user; a soft error means
// the service declined but the local copy stands.
func reportWrite(a *app, err error) error {
	if engine.IsSoft(err) {
		fmt.Printf("%s Saved locally, but the service declined the change: %v\n", ui.RenderWarn("!"), errors.Unwrap(err))
		return nil
	}
	if err != nil {
		return err
	}
	if !a.engine.Online() {
		fmt.Printf("%s Saved locally; will sync when the service is reachable (%d pending)\n",
			ui.RenderWarn("offline"), a.engine.PendingCount())
	}
	return nil
}

var waterCmd = &cobra.Command{
	Use:     "water <milliliters>",
	GroupID: "track",
	Short:   "Log water intake for today",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.Atoi(args[0])
		if err != nil || amount <= 0 {
			return fmt.Errorf("amount must be a positive number of milliliters")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		m, werr := a.engine.AddWater(cmd.Context(), amount)
		if m != nil {
			fmt.Printf("%s Water today: %d ml\n", ui.RenderPass("✓"), m.WaterIntake)
		}
		return reportWrite(a, werr)
	},
}

var moodCmd = &cobra.Command{
	Use:     "mood <mood>",
	GroupID: "track",
	Short:   "Log how you feel today",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		m, werr := a.engine.SetMood(cmd.Context(), args[0])
		if m != nil {
			fmt.Printf("%s Mood today: %s\n", ui.RenderPass("✓"), m.Mood)
		}
		return reportWrite(a, werr)
	},
}

var todayCmd = &cobra.Command{
	Use:     "today",
	GroupID: "track",
	Short:   "Show today's wellness metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		m, err := a.engine.TodayMetrics(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", ui.RenderBold("Today"), ui.RenderMuted(m.Date))
		fmt.Printf("  Water:  %d ml\n", m.WaterIntake)
		if m.Mood != "" {
			fmt.Printf("  Mood:   %s\n", m.Mood)
		}
		if m.BreathingSessions > 0 {
			fmt.Printf("  Breathing sessions: %d\n", m.BreathingSessions)
		}
		if m.ScreenBreaks > 0 {
			fmt.Printf("  Screen breaks: %d\n", m.ScreenBreaks)
		}
		if m.MorningStretch {
			fmt.Printf("  Morning stretch: done\n")
		}
		if m.EveningReflection {
			fmt.Printf("  Evening reflection: done\n")
		}
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:     "complete <title>",
	GroupID: "track",
	Short:   "Record a completed activity",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		act, werr := a.engine.CompleteActivity(cmd.Context(), schema.Activity{Title: args[0]})
		if act != nil {
			fmt.Printf("%s Completed: %s\n", ui.RenderPass("✓"), act.Title)
		}
		return reportWrite(a, werr)
	},
}

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "track",
	Short:   "List completed activities",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		acts, err := a.engine.History(cmd.Context())
		if err != nil {
			return err
		}
		if len(acts) == 0 {
			fmt.Println("No completed activities yet.")
			return nil
		}
		for _, act := range acts {
			fmt.Printf("%s  %s\n", ui.RenderMuted(act.CompletedAt.Local().Format("2006-01-02 15:04")), act.Title)
		}
		return nil
	},
}

var streakCmd = &cobra.Command{
	Use:     "streak",
	GroupID: "track",
	Short:   "Show the current streak",
	RunE: func(cmd *cobra.Command, args []string) error {
		validate, _ := cmd.Flags().GetBool("validate")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		var s *schema.Streak
		if validate {
			s, err = a.engine.ValidateStreak(cmd.Context())
		} else {
			s, err = a.engine.Streak(cmd.Context())
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s %d day streak %s\n", ui.RenderAccent("🔥"), s.Current,
			ui.RenderMuted(fmt.Sprintf("(longest: %d)", s.Longest)))
		return nil
	},
}

var checkinCmd = &cobra.Command{
	Use:     "checkin",
	GroupID: "track",
	Short:   "Record wellness check-in items for today",
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch schema.MetricsPatch
		if cmd.Flags().Changed("breathing") {
			n, _ := cmd.Flags().GetInt("breathing")
			patch.BreathingSessions = &n
		}
		if cmd.Flags().Changed("posture") {
			n, _ := cmd.Flags().GetInt("posture")
			patch.PostureChecks = &n
		}
		if cmd.Flags().Changed("screen-breaks") {
			n, _ := cmd.Flags().GetInt("screen-breaks")
			patch.ScreenBreaks = &n
		}
		if cmd.Flags().Changed("stretch") {
			v, _ := cmd.Flags().GetBool("stretch")
			patch.MorningStretch = &v
		}
		if cmd.Flags().Changed("reflection") {
			v, _ := cmd.Flags().GetBool("reflection")
			patch.EveningReflection = &v
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		m, werr := a.engine.UpdateMetrics(cmd.Context(), patch)
		if m != nil {
			fmt.Printf("%s Check-in saved for %s\n", ui.RenderPass("✓"), m.Date)
		}
		return reportWrite(a, werr)
	},
}

func init() {
	streakCmd.Flags().Bool("validate", false, "ask the service to revalidate the streak")
	checkinCmd.Flags().Int("breathing", 0, "breathing sessions today")
	checkinCmd.Flags().Int("posture", 0, "posture checks today")
	checkinCmd.Flags().Int("screen-breaks", 0, "screen breaks today")
	checkinCmd.Flags().Bool("stretch", false, "morning stretch done")
	checkinCmd.Flags().Bool("reflection", false, "evening reflection done")

	rootCmd.AddCommand(waterCmd)
	rootCmd.AddCommand(moodCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(streakCmd)
	rootCmd.AddCommand(checkinCmd)
}
