/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/kb-pipeline/config"
	"github.com/tieubaoca/kb-pipeline/database"
	"github.com/tieubaoca/kb-pipeline/service"
	"github.com/tieubaoca/kb-pipeline/types"
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Chunk, embed and upsert converted articles into Weaviate",
	Long: `Index reads converted articles (article.md) from the serving directory,
splits them at heading boundaries, embeds each chunk and upserts the result
into the Weaviate chunk class.

Object IDs are derived from article id and chunk index, so re-running index
over unchanged articles overwrites in place. Use --purge to delete an
article's existing chunks first, which also clears orphans left behind when
an article shrinks. Use --reinit to drop and recreate the whole chunk class
before indexing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		articleID, _ := cmd.Flags().GetString("article")
		purge, _ := cmd.Flags().GetBool("purge")
		reinit, _ := cmd.Flags().GetBool("reinit")

		store, err := database.NewChunkStore(cfg.WeaviateStoreConfig)
		if err != nil {
			log.Fatalf("Failed to connect to Weaviate database: %v", err)
		}
		if reinit {
			if err := store.ReInit(); err != nil {
				log.Fatalf("Failed to reinitialize chunk class: %v", err)
			}
			log.Println("Recreated chunk class")
		}

		embedder := service.NewEmbeddingService(cfg.Embedding)
		pipeline := service.NewPipeline(cfg, nil, nil, embedder, store)

		batch := &types.BatchReport{}
		if articleID != "" {
			batch.Reports = append(batch.Reports, indexOne(cmd, cfg, pipeline, articleID, purge))
		} else {
			entries, err := os.ReadDir(cfg.ServingDir)
			if err != nil {
				log.Fatalf("Failed to read serving directory: %v", err)
			}
			for _, entry := range entries {
				if !entry.IsDir() {
					continue
				}
				batch.Reports = append(batch.Reports, indexOne(cmd, cfg, pipeline, entry.Name(), purge))
			}
		}

		printBatch(batch)
		if batch.Failed() > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringP("article", "a", "", "index a single article folder by name")
	indexCmd.Flags().Bool("purge", false, "delete the article's existing chunks before upserting")
	indexCmd.Flags().BoolP("reinit", "r", false, "drop and recreate the chunk class before indexing")
}

func indexOne(cmd *cobra.Command, cfg *config.Config, pipeline *service.Pipeline, articleID string, purge bool) types.ArticleReport {
	report := types.ArticleReport{ArticleID: articleID}
	chunks, err := pipeline.IndexArticle(cmd.Context(), articleID, filepath.Join(cfg.ServingDir, articleID), purge)
	if err != nil {
		report.Err = err
		return report
	}
	report.Chunks = chunks
	return report
}
