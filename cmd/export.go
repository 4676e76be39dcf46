package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/logger"
	"github.com/jobradar/jobradar/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored jobs as CSV, best first",
	Run: func(cmd *cobra.Command, _ []string) {
		export(cmd)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("out", "", "write to this file instead of stdout")
	exportCmd.Flags().Int("limit", 0, "export at most this many jobs")
}

func export(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	cfg, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	db, err := store.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err))
	}
	defer db.Close()

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("out"); path != "" {
		out, err = os.Create(path)
		if err != nil {
			logger.Fatal("creating the output file", zap.Error(err))
		}
		defer out.Close()
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if err := db.ExportCSV(context.Background(), out, limit); err != nil {
		logger.Fatal("exporting jobs", zap.Error(err))
	}
}
