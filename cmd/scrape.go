package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/scraping"
	"github.com/spigell/jobintel/internal/utils"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape session now",
	Run: func(cmd *cobra.Command, _ []string) {
		scrape(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringSliceP("buckets", "b", nil, "comma separated bucket names (default is every configured bucket)")
	scrapeCmd.Flags().String("trigger", string(model.TriggerAdmin), "who triggered the session: admin, scheduler, user or queue")
	scrapeCmd.Flags().String("user", "", "user id recorded as the trigger")
	scrapeCmd.Flags().Bool("list", false, "list configured buckets and exit")
}

func scrape(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := setup(ctx)
	defer svc.Close(context.WithoutCancel(ctx))
	logger := svc.logger

	if list, _ := cmd.Flags().GetBool("list"); list {
		buckets := svc.cfg.Scrape.Buckets
		if len(buckets) == 0 {
			buckets = scraping.DefaultBuckets()
		}
		for _, b := range buckets {
			fmt.Printf("%-12s %s\n", b.Name, b.Query)
		}
		return
	}

	names, _ := cmd.Flags().GetStringSlice("buckets")
	trigger, _ := cmd.Flags().GetString("trigger")
	user, _ := cmd.Flags().GetString("user")

	req := scraping.Request{
		Buckets:           utils.SplitList(names),
		TriggeredBy:       model.Trigger(trigger),
		TriggeredByUserID: user,
	}
	if !req.TriggeredBy.Valid() {
		logger.Fatal("unknown trigger", zap.String("trigger", trigger))
	}

	orchestrator, err := svc.Orchestrator(ctx)
	if err != nil {
		logger.Fatal("building the orchestrator", zap.Error(err))
	}

	logger.Info("starting the scrape", zap.Strings("buckets", req.Buckets), zap.String("triggered_by", trigger))

	result, err := orchestrator.Run(ctx, req)
	if err != nil {
		if result == nil {
			logger.Fatal("scrape failed", zap.Error(err))
		}
		logger.Error("scrape stopped early", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(result.Session, "", "  ")
	logger.Debug(fmt.Sprintf("session: \n %s", pretty))

	logger.Info("scrape finished",
		zap.String("session_id", result.SessionID),
		zap.String("status", string(result.Status)),
		zap.Strings("completed", result.Completed),
		zap.Strings("failed", result.Failed),
		zap.Strings("skipped", result.Skipped),
		zap.Int("new_jobs", result.Session.NewJobsAdded),
		zap.Int("updated_jobs", result.Session.JobsUpdated),
		zap.Int("api_calls", result.Session.TotalAPICalls),
	)

	if result.Status == model.SessionFailed {
		os.Exit(1)
	}
}
