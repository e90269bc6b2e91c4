/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/kb-pipeline/config"
	"github.com/tieubaoca/kb-pipeline/database"
	"github.com/tieubaoca/kb-pipeline/service"
	"github.com/tieubaoca/kb-pipeline/types"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kb-pipeline",
	Short: "Convert and index knowledge-base articles",
	Long: `kb-pipeline converts exported knowledge-base articles (HTML plus
screenshots) into self-contained Markdown documents and indexes them into a
Weaviate vector database.

Each staged article folder is converted by a text-extraction backend,
its screenshots are described by a vision model and woven back into the
text, and the resulting document is chunked, embedded and upserted.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().String("staging", "", "staging directory with raw article folders (overrides config)")
	rootCmd.PersistentFlags().String("serving", "", "serving directory for converted articles (overrides config)")
}

// loadConfig reads the config file and applies the flag overrides shared by
// every subcommand.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if staging, _ := cmd.Flags().GetString("staging"); staging != "" {
		cfg.StagingDir = staging
	}
	if serving, _ := cmd.Flags().GetString("serving"); serving != "" {
		cfg.ServingDir = serving
	}
	return cfg, nil
}

func newBackend(cfg *config.Config) (service.TextExtractionBackend, error) {
	switch cfg.Extraction.Backend {
	case "direct":
		return service.NewDirectTextBackend(cfg.Extraction), nil
	case "ocr":
		return service.NewOCRBackend(cfg.Extraction), nil
	default:
		return nil, fmt.Errorf("unknown extraction backend %q (want direct or ocr)", cfg.Extraction.Backend)
	}
}

func newDescriber(ctx context.Context, cfg *config.Config) (service.ImageDescriber, error) {
	switch cfg.Vision.Provider {
	case "openai":
		return service.NewOpenAIVisionService(cfg.Vision), nil
	case "gemini":
		return service.NewGeminiVisionService(ctx, cfg.Vision)
	default:
		return nil, fmt.Errorf("unknown vision provider %q (want openai or gemini)", cfg.Vision.Provider)
	}
}

// buildPipeline assembles the full pipeline. withStore controls whether the
// Weaviate connection is made; convert-only runs skip it.
func buildPipeline(ctx context.Context, cfg *config.Config, withStore bool) (*service.Pipeline, error) {
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	describer, err := newDescriber(ctx, cfg)
	if err != nil {
		return nil, err
	}
	describe := service.NewDescribeService(describer, cfg.Workers.Images, cfg.Retry)
	embedder := service.NewEmbeddingService(cfg.Embedding)

	var store *database.ChunkStore
	if withStore {
		store, err = database.NewChunkStore(cfg.WeaviateStoreConfig)
		if err != nil {
			return nil, err
		}
	}
	return service.NewPipeline(cfg, backend, describe, embedder, store), nil
}

// printBatch writes the per-article outcome summary to stdout.
func printBatch(batch *types.BatchReport) {
	for _, r := range batch.Reports {
		if r.Err != nil {
			fmt.Printf("FAIL %s: %v\n", r.ArticleID, r.Err)
			continue
		}
		fmt.Printf("OK   %s: %d images, %d chunks", r.ArticleID, r.Images, r.Chunks)
		if len(r.Warnings) > 0 {
			fmt.Printf(", %d warnings", len(r.Warnings))
		}
		fmt.Println()
		for _, w := range r.Warnings {
			fmt.Printf("     warning: %s\n", w)
		}
	}
	fmt.Printf("%d succeeded, %d failed\n", batch.Succeeded(), batch.Failed())
}
