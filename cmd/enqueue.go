package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/scraping"
	"github.com/spigell/jobintel/internal/utils"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue an on-demand scrape for a running serve process",
	Run: func(cmd *cobra.Command, _ []string) {
		enqueue(cmd)
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().StringSliceP("buckets", "b", nil, "comma separated bucket names (default is every configured bucket)")
	enqueueCmd.Flags().String("user", "", "user id requesting the scrape")
}

func enqueue(cmd *cobra.Command) {
	ctx := context.Background()

	svc := setup(ctx)
	defer svc.Close(ctx)
	logger := svc.logger

	names, _ := cmd.Flags().GetStringSlice("buckets")
	user, _ := cmd.Flags().GetString("user")

	buckets := svc.cfg.Scrape.Buckets
	if len(buckets) == 0 {
		buckets = scraping.DefaultBuckets()
	}
	selected, err := scraping.SelectBuckets(buckets, utils.SplitList(names))
	if err != nil {
		logger.Fatal("selecting buckets", zap.Error(err))
	}

	q, err := svc.Queue(ctx)
	if err != nil {
		logger.Fatal("connecting to the request queue", zap.Error(err))
	}

	trigger := model.TriggerQueue
	if user != "" {
		trigger = model.TriggerUser
	}

	req := scraping.Request{TriggeredBy: trigger, TriggeredByUserID: user}
	if len(names) > 0 {
		req.Buckets = scraping.BucketNames(selected)
	}

	msg, err := q.Enqueue(ctx, req)
	if err != nil {
		logger.Fatal("enqueue failed", zap.Error(err))
	}

	pending, err := q.Len(ctx)
	if err != nil {
		logger.Warn("reading queue length", zap.Error(err))
	}

	logger.Info("scrape request queued",
		zap.String("message_id", msg.ID),
		zap.Strings("buckets", req.Buckets),
		zap.Int64("pending", pending),
	)
}
