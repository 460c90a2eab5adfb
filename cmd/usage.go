package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show the monthly api budget",
	Run: func(_ *cobra.Command, _ []string) {
		usage()
	},
}

var usageResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the api call counter of the current month",
	Run: func(cmd *cobra.Command, _ []string) {
		usageReset(cmd)
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageResetCmd)

	usageResetCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	usageResetCmd.Flags().String("reason", "manual reset", "reason recorded in the log")
}

func usage() {
	ctx := context.Background()

	svc := setup(ctx)
	defer svc.Close(ctx)
	logger := svc.logger

	tracker, err := svc.Tracker(ctx)
	if err != nil {
		logger.Fatal("building the budget tracker", zap.Error(err))
	}

	st, err := tracker.Status(ctx)
	if err != nil {
		logger.Fatal("reading the budget", zap.Error(err))
	}

	fmt.Printf("month:     %s\n", st.Month)
	fmt.Printf("used:      %d/%d (%d%%)\n", st.Used, st.Limit, st.PercentageUsed)
	fmt.Printf("remaining: %d\n", st.Remaining)
	fmt.Println(st.Message())
}

func usageReset(cmd *cobra.Command) {
	ctx := context.Background()

	svc := setup(ctx)
	defer svc.Close(ctx)
	logger := svc.logger

	tracker, err := svc.Tracker(ctx)
	if err != nil {
		logger.Fatal("building the budget tracker", zap.Error(err))
	}

	st, err := tracker.Status(ctx)
	if err != nil {
		logger.Fatal("reading the budget", zap.Error(err))
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Reset %d used calls of %s", st.Used, st.Month),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
				logger.Info("exiting", zap.String("reason", "reset not confirmed"))
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	reason, _ := cmd.Flags().GetString("reason")
	if err := tracker.Reset(ctx, reason); err != nil {
		logger.Fatal("resetting the budget", zap.Error(err))
	}
}
