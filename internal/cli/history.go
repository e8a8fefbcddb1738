package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newHistoryCmd creates the 'history' command and its 'delete' subcommand.
func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past analyses, newest first",
		Example: `  farmadvisor history
  farmadvisor history --page 2
  farmadvisor history delete 65f1c0a2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()
			if err := requireSession(app); err != nil {
				return err
			}

			history, err := app.Advisor.RefreshHistory(cmd.Context(), page)
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			if history == nil || len(history.Records) == 0 {
				fmt.Fprintln(out, "No analyses yet.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tCROP\tFERTILIZER\tQUANTITY\tCOMPATIBILITY\tSCORE")
			for _, r := range history.Records {
				date, quantity, score := "-", "-", "-"
				if r.Timestamp != nil {
					date = r.Timestamp.Format("2006-01-02 15:04")
				}
				if r.Quantity != nil {
					quantity = fmt.Sprintf("%g kg", *r.Quantity)
				}
				if r.Score != nil {
					score = fmt.Sprintf("%.1f", *r.Score)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, date, r.CropType, r.Fertilizer, quantity, r.Compatibility, score)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if history.TotalPages > 0 {
				fmt.Fprintf(out, "Page %d of %d\n", history.Page, history.TotalPages)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.AddCommand(newHistoryDeleteCmd(opts))
	return cmd
}

// newHistoryDeleteCmd creates the 'history delete' command.
func newHistoryDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an analysis from the history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()
			if err := requireSession(app); err != nil {
				return err
			}

			if err := app.Advisor.DeleteHistoryRecord(cmd.Context(), args[0]); err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
			return nil
		},
	}
}
