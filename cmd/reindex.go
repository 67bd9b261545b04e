package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/helpdeskbr/n1agent/internal/config"
	"github.com/helpdeskbr/n1agent/internal/db"
	"github.com/helpdeskbr/n1agent/internal/kb"
	"github.com/helpdeskbr/n1agent/internal/search"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the retrieval index from the stored articles",
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

		engine := search.NewEngine(articleSource(kb.NewStore(database)))
		stats, err := engine.Reindex(cmd.Context())
		if err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}
		fmt.Printf("Index: %d articles, %d chunks, avg chunk %.1f words\n",
			stats.DocCount, stats.ChunkCount, stats.AvgDocLen)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
