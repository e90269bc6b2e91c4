/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the full pipeline: convert and index every staged article",
	Long: `Process runs the whole pipeline over the staging directory: each article
folder is converted to Markdown, written to the serving directory, then
chunked, embedded and upserted into Weaviate. Articles run in parallel up to
the configured worker count; one failed article is reported and the rest of
the batch continues.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		purge, _ := cmd.Flags().GetBool("purge")

		ctx := cmd.Context()
		pipeline, err := buildPipeline(ctx, cfg, true)
		if err != nil {
			log.Fatalf("Failed to build pipeline: %v", err)
		}

		batch, err := pipeline.ProcessBatch(ctx, cfg.StagingDir, cfg.ServingDir, purge)
		if err != nil {
			log.Fatalf("Batch failed: %v", err)
		}

		printBatch(batch)
		if batch.Failed() > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().Bool("purge", false, "delete each article's existing chunks before upserting")
}
