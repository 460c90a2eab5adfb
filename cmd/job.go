package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var jobCmd = &cobra.Command{
	Use:   "job <external-id>",
	Short: "Fetch one posting from the provider and print it normalized",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		job(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(jobCmd)

	jobCmd.Flags().String("bucket", "manual", "bucket recorded on the job")
	jobCmd.Flags().Bool("save", false, "insert or update the job in the store")
}

func job(cmd *cobra.Command, id string) {
	ctx := context.Background()

	svc := setup(ctx)
	defer svc.Close(ctx)
	logger := svc.logger.With(zap.String("external_id", id))

	bucket, _ := cmd.Flags().GetString("bucket")
	save, _ := cmd.Flags().GetBool("save")

	source, err := svc.Source(ctx)
	if err != nil {
		logger.Fatal("building the job source", zap.Error(err))
	}

	normalizer, err := svc.Normalizer()
	if err != nil {
		logger.Fatal("building the normalizer", zap.Error(err))
	}

	raw, err := source.GetJob(ctx, id)
	if err != nil {
		logger.Fatal("fetching the job", zap.Error(err))
	}

	normalized := normalizer.Normalize(*raw, bucket)

	if save {
		engine, err := svc.Dedup(ctx)
		if err != nil {
			logger.Fatal("opening the store", zap.Error(err))
		}

		res, err := engine.ProcessJob(ctx, &normalized)
		if err != nil {
			logger.Fatal("saving the job", zap.Error(err))
		}
		logger.Info("job saved", zap.String("job_id", res.JobID), zap.String("action", string(res.Action)))
	}

	pretty, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		logger.Fatal("encoding the job", zap.Error(err))
	}
	fmt.Println(string(pretty))
}
