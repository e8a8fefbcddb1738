package cli

import (
	"errors"
	"strings"

	config "farmadvisor-client/configs"
	"farmadvisor-client/internal/logging"
	"farmadvisor-client/pkg/apierr"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// globalOptions 全サブコマンド共通のフラグ（環境変数の設定より優先）
type globalOptions struct {
	apiURL     string
	sessionDB  string
	reportMode string
	verbose    bool
}

// NewRootCmd creates the farmadvisor root command with all subcommands attached.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "farmadvisor",
		Short: "FarmAdvisor client - fertilizer compatibility analysis from the command line",
		Long: `farmadvisor talks to the FarmAdvisor service on behalf of a farmer.

It keeps the login across runs in a local session database, checks analysis
input before sending it, and can render analytics charts and reports.
Run "farmadvisor serve" to expose the same operations as a JSON API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api-url", "", "FarmAdvisor service URL (overrides FARMADVISOR_API_URL)")
	flags.StringVar(&opts.sessionDB, "session-db", "", "session database path (overrides FARMADVISOR_SESSION_DB)")
	flags.StringVar(&opts.reportMode, "report-mode", "", "report mode: local or remote (overrides FARMADVISOR_REPORT_MODE)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "write logs to stderr")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newRegisterCmd(opts))
	cmd.AddCommand(newLogoutCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newPredictCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newAnalyticsCmd(opts))
	return cmd
}

// loadConfig 環境変数の設定にフラグの値を上書きする
func (o *globalOptions) loadConfig() *config.Config {
	cfg := config.LoadConfig()
	if o.apiURL != "" {
		cfg.APIBaseURL = strings.TrimSuffix(o.apiURL, "/")
	}
	if o.sessionDB != "" {
		cfg.SessionDBPath = o.sessionDB
	}
	if o.reportMode != "" {
		cfg.ReportMode = strings.ToLower(o.reportMode)
	}
	return cfg
}

// open コマンド実行用のAppを組み立てる。ログは --verbose の時だけ出す
func (o *globalOptions) open() (*App, error) {
	cfg := o.loadConfig()
	logger := zap.NewNop()
	if o.verbose {
		logger = logging.Must(cfg.Environment)
	}
	return NewApp(cfg, logger)
}

// userError 分類付きのエラーはユーザー向けの文言だけにする
func userError(err error) error {
	if err == nil {
		return nil
	}
	if apierr.KindOf(err) != "" {
		return errors.New(apierr.UserMessage(err))
	}
	return err
}
