// internal/cli/sites.go
package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/naitridoshi/catalog-harvest/internal/ui"
)

// sitesCmd lists the built-in discovery modes
var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the supported catalog layouts",
	Long: `Shows the discovery modes the harvester understands and the flags
that select them. Site-specific selectors can be layered on top of either
mode with --selector.`,
	Run: runSites,
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}

func runSites(cmd *cobra.Command, args []string) {
	fmt.Printf("\n%s\n\n", ui.Bold("Supported catalog layouts"))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 3, ' ', 0)
	fmt.Fprintf(w, "  %s\t%s\t%s\n", ui.ColorCyan+"paginated"+ui.ColorReset,
		"-c Name=URL (repeatable)",
		"category listing with start= pagination, one sheet/group per category")
	fmt.Fprintf(w, "  %s\t%s\t%s\n", ui.ColorCyan+"index"+ui.ColorReset,
		"--index URL [--group name]",
		"single index page linking to detail pages, binary links skipped")
	w.Flush()

	fmt.Printf("\nRun %s for flag details.\n\n", ui.Bold("harvest run --help"))
}
