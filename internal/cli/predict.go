package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"farmadvisor-client/pkg/models"

	"github.com/spf13/cobra"
)

// analysisFlags 分析入力のフラグ
type analysisFlags struct {
	input      models.AnalysisInput
	nitrogen   float64
	potassium  float64
	phosphorus float64
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Float64VarP(&f.input.Temperature, "temperature", "t", 26, "temperature in °C (0-50)")
	flags.Float64VarP(&f.input.Moisture, "moisture", "m", 45, "soil moisture in % (0-100)")
	flags.StringVar(&f.input.SoilType, "soil", "Loamy", "soil type")
	flags.StringVarP(&f.input.CropType, "crop", "c", "Maize", "crop type")
	flags.StringVarP(&f.input.FertilizerName, "fertilizer", "f", "Urea", "fertilizer name")
	flags.Float64VarP(&f.input.FertilizerQuantity, "quantity", "q", 30, "fertilizer quantity in kg")
	flags.Float64Var(&f.nitrogen, "nitrogen", 0, "nitrogen level (optional)")
	flags.Float64Var(&f.potassium, "potassium", 0, "potassium level (optional)")
	flags.Float64Var(&f.phosphorus, "phosphorous", 0, "phosphorous level (optional)")
}

// build 指定された栄養素だけを入力に含める
func (f *analysisFlags) build(cmd *cobra.Command) models.AnalysisInput {
	input := f.input
	if cmd.Flags().Changed("nitrogen") {
		input.Nitrogen = &f.nitrogen
	}
	if cmd.Flags().Changed("potassium") {
		input.Potassium = &f.potassium
	}
	if cmd.Flags().Changed("phosphorous") {
		input.Phosphorous = &f.phosphorus
	}
	return input
}

// newPredictCmd creates the 'predict' command.
func newPredictCmd(opts *globalOptions) *cobra.Command {
	var (
		fields    analysisFlags
		reportDir string
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Check fertilizer compatibility for the given conditions",
		Example: `  farmadvisor predict --crop Maize --fertilizer Urea --quantity 30 -t 26 -m 45
  farmadvisor predict --crop Wheat --fertilizer DAP -q 50 --report-dir ./reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, opts, fields.build(cmd), reportDir)
		},
	}
	fields.register(cmd)
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "also write a report for the result into this directory")
	return cmd
}

// newReportCmd creates the 'report' command.
func newReportCmd(opts *globalOptions) *cobra.Command {
	var (
		fields analysisFlags
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run an analysis and save its report",
		Long: `Run an analysis and save the report for its result.

With --report-mode local (default) the report is an Excel workbook built on
this machine. With --report-mode remote the service renders an HTML report.`,
		Example: `  farmadvisor report --crop Maize --fertilizer Urea --quantity 30 --out ./reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, opts, fields.build(cmd), outDir)
		},
	}
	fields.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	return cmd
}

func runPredict(cmd *cobra.Command, opts *globalOptions, input models.AnalysisInput, reportDir string) error {
	app, err := opts.open()
	if err != nil {
		return err
	}
	defer app.Close()

	// 範囲外の入力はセッションの有無に関係なく先に弾く
	if err := app.Advisor.ValidateInput(input); err != nil {
		return userError(err)
	}
	if err := requireSession(app); err != nil {
		return err
	}

	result, err := app.Advisor.SubmitAnalysis(cmd.Context(), input)
	if err != nil {
		return userError(err)
	}
	out := cmd.OutOrStdout()
	printResult(out, result)

	if reportDir == "" {
		return nil
	}
	// 農場情報はレポートの見出しにだけ使うので、取得できなくても続ける
	_ = app.Advisor.RefreshFarmProfile(cmd.Context())
	doc, err := app.Advisor.GenerateReport(cmd.Context())
	if err != nil {
		return userError(err)
	}
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(reportDir, doc.FileName)
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(out, "✓ Report saved to %s\n", path)
	return nil
}

func printResult(out io.Writer, r *models.PredictionResult) {
	fmt.Fprintf(out, "Compatibility:   %s\n", r.Compatibility)
	if r.Reason != "" {
		fmt.Fprintf(out, "Reason:          %s\n", r.Reason)
	}
	fmt.Fprintf(out, "Quantity status: %s\n", r.QuantityStatus)
	if r.QuantityReason != "" {
		fmt.Fprintf(out, "                 %s\n", r.QuantityReason)
	}
	if r.EfficiencyScore != nil {
		fmt.Fprintf(out, "Efficiency:      %.1f%%\n", *r.EfficiencyScore)
	}
	if r.RiskScore != nil {
		fmt.Fprintf(out, "Risk score:      %g\n", *r.RiskScore)
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(out, "Recommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(out, "  - %s\n", strings.TrimSpace(rec))
		}
	}
}
