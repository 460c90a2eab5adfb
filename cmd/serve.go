package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/jobintel/internal/queue"
	"github.com/spigell/jobintel/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled scrapes and consume on-demand requests from the queue",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("no-queue", false, "do not consume the redis request queue")
}

func serve(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := setup(ctx)
	defer svc.Close(context.WithoutCancel(ctx))
	logger := svc.logger

	orchestrator, err := svc.Orchestrator(ctx)
	if err != nil {
		logger.Fatal("building the orchestrator", zap.Error(err))
	}

	sched, err := scheduler.New(orchestrator, svc.cfg.Scrape.Schedules, svc.cfg.Scrape.Backlog,
		logger.With(zap.String("component", "scheduler")))
	if err != nil {
		logger.Fatal("building the scheduler", zap.Error(err))
	}

	noQueue, _ := cmd.Flags().GetBool("no-queue")
	var q *queue.Queue
	if !noQueue {
		if q, err = svc.Queue(ctx); err != nil {
			logger.Fatal("connecting to the request queue", zap.Error(err),
				zap.String("hint", "set redis.url or run with --no-queue"))
		}
	}

	if sched.Entries() == 0 && q == nil {
		logger.Fatal("nothing to serve", zap.String("hint", "configure scrape.schedules or enable the queue"))
	}

	logger.Info("serving", zap.Int("schedules", sched.Entries()), zap.Bool("queue", q != nil))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	if q != nil {
		g.Go(func() error {
			return q.Consume(ctx, func(ctx context.Context, msg *queue.Message) error {
				_, err := sched.Submit(ctx, msg.Request)
				return err
			})
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal("serve stopped", zap.Error(err))
	}
	logger.Info("shutting down")
}
