package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/logger"
	"github.com/jobradar/jobradar/internal/profile"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the configured profile and resume without fetching anything",
	Run: func(_ *cobra.Command, _ []string) {
		analyze()
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func analyze() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	cfg, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	candidate, err := profile.Load(cfg.Profile, logger)
	if err != nil {
		logger.Fatal("loading the candidate profile", zap.Error(err))
	}

	analysis := candidate.Analyze()

	fmt.Printf("skills (%d): %s\n", len(analysis.Skills), strings.Join(analysis.Skills, ", "))
	fmt.Printf("experience level: %s\n", analysis.ExperienceLevel)
	fmt.Printf("domain: %s\n", analysis.Domain)
}
