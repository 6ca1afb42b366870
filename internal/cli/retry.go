// internal/cli/retry.go
package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/naitridoshi/catalog-harvest/internal/engine"
	"github.com/naitridoshi/catalog-harvest/internal/queue"
	"github.com/naitridoshi/catalog-harvest/internal/sink"
	"github.com/naitridoshi/catalog-harvest/internal/sites/catalog"
	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

var (
	retryFile     string
	retrySelector string
)

// retryCmd re-drives the failed units of a previous run
var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-run only the failed units of a previous run",
	Long: `Reads the errored-units file a previous run wrote and harvests just
those units again. Successful re-runs overwrite the per-unit output of the
original run, so combining the two runs needs no manual merging.`,
	Example: `  # Re-drive the default errored file
  harvest retry

  # Re-drive a specific file
  harvest retry --file files/harvest_errored.json`,
	RunE: runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)

	retryCmd.Flags().StringVar(&retryFile, "file", "", "Errored-units file (default: <output-dir>/<prefix>_errored.json)")
	retryCmd.Flags().StringVarP(&retrySelector, "selector", "s", "", "CSS selector for the product table (default: table)")
	retryCmd.Flags().StringVar(&runPrefix, "prefix", "harvest", "Filename prefix for run outputs")
}

func runRetry(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	path := retryFile
	if path == "" {
		path = filepath.Join(a.Config.OutputDir, runPrefix+"_errored.json")
	}

	failed, err := sink.ReadErrored(path)
	if err != nil {
		return fmt.Errorf("failed to read errored units: %w", err)
	}
	if len(failed) == 0 {
		fmt.Println("Nothing to retry.")
		return nil
	}

	log.Info().Int("units", len(failed)).Str("file", path).Msg("Re-driving failed units")

	units := queue.FromFailed(models.RunSummary{FailedUnits: failed}).Units()

	sinks, closeSinks, err := buildSinks(cmd, a)
	if err != nil {
		return err
	}
	defer closeSinks()

	h, err := engine.New(engine.Options{
		Discoverer: engine.DiscovererFunc(func(context.Context) ([]models.WorkUnit, error) {
			return units, nil
		}),
		Extractor:        catalog.TableExtractor{Selector: retrySelector},
		Sink:             sinks,
		Fetcher:          a.Fetcher,
		Pacer:            a.Pacer,
		MaxGroups:        a.Config.MaxGroups,
		MaxPagesPerGroup: a.Config.MaxPagesPerGroup,
		RunDeadline:      a.Config.RunDeadline,
	})
	if err != nil {
		return err
	}

	summary, err := h.Run(cmd.Context())
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}
