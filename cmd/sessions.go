package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "Show recent scrape sessions or the details of one",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessions(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)

	sessionsCmd.Flags().IntP("limit", "n", 10, "how many sessions to show")
}

func sessions(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	svc := setup(ctx)
	defer svc.Close(ctx)
	logger := svc.logger

	st, err := svc.Store(ctx)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}

	if len(args) == 1 {
		s, err := st.GetSession(ctx, args[0])
		if err != nil {
			logger.Fatal("getting the session", zap.String("session_id", args[0]), zap.Error(err))
		}
		fmt.Printf("%s %s triggered by %s, started %s\n", s.ID, s.Status, s.TriggeredBy, s.StartedAt.Format("2006-01-02 15:04:05"))
		for _, b := range s.BucketStats {
			state := "ok"
			switch {
			case b.Skipped:
				state = "skipped"
			case b.Error != "":
				state = "failed: " + b.Error
			}
			fmt.Printf("  %-12s found=%-4d new=%-4d updated=%-4d errors=%-3d calls=%-3d %s\n",
				b.Bucket, b.Found, b.Inserted, b.Updated, b.Errors, b.APICalls, state)
		}
		if s.ErrorMessage != "" {
			fmt.Printf("  error: %s\n", s.ErrorMessage)
		}
		return
	}

	limit, _ := cmd.Flags().GetInt("limit")
	list, err := st.ListSessions(ctx, limit)
	if err != nil {
		logger.Fatal("listing sessions", zap.Error(err))
	}

	if len(list) == 0 {
		logger.Info("no scrape sessions recorded")
		return
	}

	for _, s := range list {
		fmt.Printf("%s  %s  %-11s new=%-4d updated=%-4d calls=%-3d buckets=%s\n",
			s.StartedAt.Format("2006-01-02 15:04"),
			s.ID,
			s.Status,
			s.NewJobsAdded,
			s.JobsUpdated,
			s.TotalAPICalls,
			strings.Join(s.BucketsCompleted, ","),
		)
	}
}
