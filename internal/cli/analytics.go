package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"farmadvisor-client/pkg/charts"

	"github.com/spf13/cobra"
)

// newAnalyticsCmd creates the 'analytics' command.
func newAnalyticsCmd(opts *globalOptions) *cobra.Command {
	var chartsDir string
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show statistics over all past analyses",
		Example: `  farmadvisor analytics
  farmadvisor analytics --charts-dir ./charts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()
			if err := requireSession(app); err != nil {
				return err
			}

			if _, err := app.Advisor.ActivateAnalytics(cmd.Context()); err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			projection := app.Advisor.Projection()
			if projection.Empty {
				fmt.Fprintln(out, charts.NoDataPlaceholder)
				return nil
			}

			fmt.Fprintf(out, "Total analyses:     %d\n", projection.TotalAnalyses)
			fmt.Fprintf(out, "Success rate:       %.1f%%\n", projection.SuccessRate)
			fmt.Fprintf(out, "Average efficiency: %.1f%%\n", projection.AverageEfficiency)
			for _, series := range projection.Categories {
				if len(series.Points) == 0 {
					continue
				}
				fmt.Fprintf(out, "\n%s\n", series.Title)
				for _, p := range series.Points {
					fmt.Fprintf(out, "  %-24s %4g  (%.1f%%)\n", p.Label, p.Count, p.Percent)
				}
			}

			if chartsDir == "" {
				return nil
			}
			if err := os.MkdirAll(chartsDir, 0o755); err != nil {
				return fmt.Errorf("failed to create charts directory: %w", err)
			}
			fmt.Fprintln(out)
			for _, surface := range charts.Surfaces {
				inst, ok := app.Charts.Instance(surface)
				if !ok {
					fmt.Fprintf(out, "- %s: %s\n", surface, app.Charts.Placeholder(surface))
					continue
				}
				path := filepath.Join(chartsDir, string(surface)+".png")
				if err := os.WriteFile(path, inst.PNG, 0o644); err != nil {
					return fmt.Errorf("failed to write chart %s: %w", surface, err)
				}
				fmt.Fprintf(out, "✓ %s chart saved to %s\n", inst.Title, path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chartsDir, "charts-dir", "", "write chart images (PNG) into this directory")
	return cmd
}
