// Package main provides the readme-service entry point.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nitesh/readme_service/internal/config"
	"github.com/nitesh/readme_service/internal/figshare"
	"github.com/nitesh/readme_service/internal/logger"
	"github.com/nitesh/readme_service/pkg/models"
)

// Version is set at build time via ldflags
var Version = "0.3.1"

// APIVersion is the version of the HTTP API surface.
const APIVersion = "v1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "readme-service",
	Short: "README intake service for figshare deposits",
	Long: `readme-service fetches figshare article and curation metadata, reshapes it
into a short README record and serves an intake form that stores the curator's
free-text answers per article.

Credentials are read from FIGSHARE_TOKEN and FIGSHARE_STAGE_TOKEN, or from the
token files named in the config file (README_SERVICE_CONFIG).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
}

func versionInfo() models.Version {
	return models.Version{Version: Version, APIVersion: APIVersion}
}

func exitCode(err error) int {
	var reqErr *figshare.RequestError
	switch {
	case errors.Is(err, config.ErrMissingCredential):
		return ExitConfigError
	case errors.As(err, &reqErr),
		errors.Is(err, figshare.ErrNoMatchingReview),
		errors.Is(err, figshare.ErrReviewNotPending),
		errors.Is(err, figshare.ErrEmptyResponse),
		errors.Is(err, figshare.ErrMalformedUpstreamData):
		return ExitUpstreamError
	default:
		return ExitError
	}
}

// newFigshareClient builds the upstream client from configuration.
func newFigshareClient(cfg config.Config, log *logger.Logger) *figshare.Client {
	return figshare.NewClient(
		figshare.Credentials{Production: cfg.Figshare.Token, Stage: cfg.Figshare.StageToken},
		figshare.WithBaseURLs(cfg.Figshare.ProductionURL, cfg.Figshare.StageURL),
		figshare.WithHTTPClient(newHTTPClient(cfg.Figshare.Timeout)),
		figshare.WithRateLimit(cfg.Figshare.RateLimit),
		figshare.WithPageSize(cfg.Figshare.PageSize),
		figshare.WithLogger(log),
	)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
