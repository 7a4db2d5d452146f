package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nitesh/readme_service/internal/config"
	"github.com/nitesh/readme_service/internal/figshare"
	"github.com/nitesh/readme_service/internal/logger"
	"github.com/nitesh/readme_service/internal/readme"
)

var (
	metadataStage         bool
	metadataCurationID    int64
	metadataAllowApproved bool
	metadataPublic        bool
	metadataRaw           bool
)

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.Flags().BoolVar(&metadataStage, "stage", false, "Use the figshare stage API")
	metadataCmd.Flags().Int64Var(&metadataCurationID, "curation-id", 0, "Fetch this review instead of looking it up")
	metadataCmd.Flags().BoolVar(&metadataAllowApproved, "allow-approved", false, "Accept reviews that are no longer pending")
	metadataCmd.Flags().BoolVar(&metadataPublic, "public", false, "Read the public article instead of its review")
	metadataCmd.Flags().BoolVar(&metadataRaw, "raw", false, "Print the upstream JSON instead of the README record")
}

var metadataCmd = &cobra.Command{
	Use:   "metadata <article_id>",
	Short: "Print the README metadata for a figshare article",
	Long: `Resolve an article through the figshare review workflow (or the public
article endpoint with --public) and print the normalized README record as JSON.

Example:
  readme-service metadata 12966581 --stage`,
	Args: cobra.ExactArgs(1),
	RunE: runMetadata,
}

func runMetadata(cmd *cobra.Command, args []string) error {
	articleID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || articleID <= 0 {
		return fmt.Errorf("article_id must be a positive integer, got %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !metadataPublic {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	req := figshare.Request{
		ArticleID:     articleID,
		Stage:         metadataStage,
		AllowApproved: metadataAllowApproved,
		Public:        metadataPublic,
	}
	if metadataCurationID > 0 {
		id := metadataCurationID
		req.CurationID = &id
	}

	p, err := newFigshareClient(cfg, log).Fetch(cmd.Context(), req)
	if err != nil {
		return err
	}
	if metadataRaw {
		_, err := os.Stdout.Write(append(p.Raw(), '\n'))
		return err
	}
	md, err := readme.Normalize(p)
	if err != nil {
		return err
	}
	return outputJSON(md)
}

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
