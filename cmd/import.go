package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/helpdeskbr/n1agent/internal/config"
	"github.com/helpdeskbr/n1agent/internal/db"
	"github.com/helpdeskbr/n1agent/internal/importer"
	"github.com/helpdeskbr/n1agent/internal/kb"
	"github.com/helpdeskbr/n1agent/internal/search"
)

var importInclude []string

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import markdown articles into the knowledge base and rebuild the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		database, err := db.Open(filepath.Join(cfg.DataDir, "n1agent.db"))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		articles := kb.NewStore(database)
		im := importer.New(articles)
		res, err := im.Run(cmd.Context(), args[0], importer.Options{Include: importInclude})
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d new, %d updated, %d skipped\n", res.Created, res.Updated, res.Skipped)

		engine := search.NewEngine(articleSource(articles))
		stats, err := engine.Reindex(context.Background())
		if err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}
		fmt.Printf("Index: %d articles, %d chunks, avg chunk %.1f words\n",
			stats.DocCount, stats.ChunkCount, stats.AvgDocLen)
		return nil
	},
}

func init() {
	importCmd.Flags().StringSliceVar(&importInclude, "include", nil, "glob patterns to include (e.g. 'office/**.md')")
	rootCmd.AddCommand(importCmd)
}
