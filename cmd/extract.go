package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/document"
	"github.com/spigell/interview-coach/internal/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract <resume>",
	Short: "Print the skills detected in a resume as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		extract(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Bool("summary", false, "print the extraction summary instead of the full result")
}

func extract(cmd *cobra.Command, path string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	extractor, err := loadExtractor(config, logger)
	if err != nil {
		logger.Fatal("building skill extractor", zap.Error(err))
	}

	text, err := document.NewExtractor(logger, nil).ExtractText(path)
	if err != nil {
		logger.Fatal("reading resume", zap.String("file", path), zap.Error(err))
	}
	if strings.TrimSpace(text) == "" {
		logger.Fatal("no text could be extracted", zap.String("file", path))
	}

	result := extractor.ExtractAllSkills(text)

	var out any = result
	if summary, _ := cmd.Flags().GetBool("summary"); summary {
		out = result.Summary()
	}

	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		logger.Fatal("encoding result", zap.Error(err))
	}
	fmt.Fprintln(os.Stdout, string(pretty))
}
