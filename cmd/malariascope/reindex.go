package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"malariascope/internal/config"
	"malariascope/internal/logger"
	"malariascope/internal/model"
	"malariascope/internal/repository/sqlite"
	"malariascope/internal/service/storage"
)

func newReindexCmd() *cobra.Command {
	var resultsDir, dbPath string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the run history from the results directory",
		Long: `Scans results/<username>/ for input_<timestamp>.jpg and
output_<timestamp>.jpg pairs and records every pair the run history does not
know yet. Detections of reindexed runs are not recovered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("results") {
				cfg.ResultsDirectory = resultsDir
			}
			if cmd.Flags().Changed("db") {
				cfg.DatabasePath = dbPath
			}

			log, err := logger.New(cfg.LogDirectory)
			if err != nil {
				return err
			}
			defer log.Close()

			db, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()
			runRepo := sqlite.NewRunRepository(db)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reindexing %s into %s\n", cfg.ResultsDirectory, cfg.DatabasePath)

			added, err := storage.NewArtifactStore(cfg.ResultsDirectory, log).Reindex(runRepo)
			if err != nil {
				return fmt.Errorf("reindex failed after %d runs: %w", added, err)
			}

			total, err := runRepo.GetTotalCount(&model.RunFilter{})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Added %d runs, %d runs indexed in total\n", added, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results", "results", "Results directory to scan")
	cmd.Flags().StringVar(&dbPath, "db", "data/malariascope.db", "Database path")

	return cmd
}
