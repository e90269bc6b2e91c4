/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/kb-pipeline/service"
	"github.com/tieubaoca/kb-pipeline/types"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert staged articles to Markdown without indexing",
	Long: `Convert runs the document side of the pipeline only: text extraction,
image description and merge. Each staged article folder becomes a serving
folder holding article.md, an images/ directory and the description cache.

With --article only that one folder under the staging directory is
converted; otherwise the whole staging directory is processed.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		articleID, _ := cmd.Flags().GetString("article")

		ctx := cmd.Context()
		pipeline, err := buildPipeline(ctx, cfg, false)
		if err != nil {
			log.Fatalf("Failed to build pipeline: %v", err)
		}

		batch := &types.BatchReport{}
		if articleID != "" {
			report := convertOne(ctx, pipeline, cfg.StagingDir, cfg.ServingDir, articleID)
			batch.Reports = append(batch.Reports, *report)
		} else {
			entries, err := os.ReadDir(cfg.StagingDir)
			if err != nil {
				log.Fatalf("Failed to read staging directory: %v", err)
			}
			for _, entry := range entries {
				if !entry.IsDir() {
					continue
				}
				report := convertOne(ctx, pipeline, cfg.StagingDir, cfg.ServingDir, entry.Name())
				batch.Reports = append(batch.Reports, *report)
			}
		}

		printBatch(batch)
		if batch.Failed() > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("article", "a", "", "convert a single article folder by name")
}

func convertOne(ctx context.Context, pipeline *service.Pipeline, stagingDir, servingDir, articleID string) *types.ArticleReport {
	article, err := service.LoadArticle(filepath.Join(stagingDir, articleID))
	if err != nil {
		return &types.ArticleReport{ArticleID: articleID, Err: err}
	}
	report, err := pipeline.ConvertArticle(ctx, article, filepath.Join(servingDir, articleID))
	if err != nil {
		report.Err = err
	}
	return report
}
