package cli

import (
	"fmt"
	"io"
	"os"

	"farmadvisor-client/pkg/models"
	"farmadvisor-client/pkg/services"

	"github.com/spf13/cobra"
)

// newLoginCmd creates the 'login' command.
func newLoginCmd(opts *globalOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for later commands",
		Example: `  farmadvisor login --email amina@example.com --password secret123
  FARMADVISOR_PASSWORD=secret123 farmadvisor login --email amina@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("FARMADVISOR_PASSWORD")
			}
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			user, loadReport, err := app.Advisor.Login(cmd.Context(), email, password)
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Logged in as %s (%s)\n", user.DisplayName(), user.Email)
			printLoadReport(out, loadReport)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (or FARMADVISOR_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// newRegisterCmd creates the 'register' command.
func newRegisterCmd(opts *globalOptions) *cobra.Command {
	var req models.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account with farm details and log in",
		Example: `  farmadvisor register --email amina@example.com --password secret123 \
    --name Amina --location Nakuru --soil Loamy --farm-size 2.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("FARMADVISOR_PASSWORD")
			}
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			user, loadReport, err := app.Advisor.Register(cmd.Context(), req)
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Registered and logged in as %s (%s)\n", user.DisplayName(), user.Email)
			printLoadReport(out, loadReport)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&req.Email, "email", "e", "", "account email")
	flags.StringVarP(&req.Password, "password", "p", "", "account password (or FARMADVISOR_PASSWORD)")
	flags.StringVar(&req.Name, "name", "", "display name")
	flags.StringVar(&req.Location, "location", "", "farm location")
	flags.StringVar(&req.SoilType, "soil", "", "soil type")
	flags.Float64Var(&req.FarmSize, "farm-size", 0, "farm size in acres")
	flags.StringSliceVar(&req.PrimaryCrops, "crops", nil, "primary crops (comma separated)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// newLogoutCmd creates the 'logout' command.
func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Advisor.Logout(); err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}
}

// newStatusCmd creates the 'status' command.
func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is stored and the farm profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			if app.Advisor.View() == models.ViewLogin {
				fmt.Fprintln(out, "Not logged in. Run: farmadvisor login --email <email>")
				return nil
			}
			fmt.Fprintln(out, "✓ Session stored")
			if err := app.Advisor.RefreshFarmProfile(cmd.Context()); err != nil {
				return userError(err)
			}
			if farm := app.Advisor.State().Farm; farm != nil {
				fmt.Fprintf(out, "Farm: %s, %g acres, %s soil\n", farm.Location, farm.FarmSize, farm.SoilType)
			}
			return nil
		},
	}
}

func printLoadReport(out io.Writer, r services.LoadReport) {
	for name, err := range map[string]error{"farm profile": r.Farm, "history": r.History, "analytics": r.Analytics} {
		if err != nil {
			fmt.Fprintf(out, "! could not load %s: %s\n", name, userError(err))
		}
	}
}

// requireSession 保存済みの認証情報がなければ案内を返す
func requireSession(app *App) error {
	if app.Advisor.View() == models.ViewLogin {
		return fmt.Errorf("not logged in, run: farmadvisor login --email <email>")
	}
	return nil
}
