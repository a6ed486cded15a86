package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/USEPA/ATtILA2-sub000/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect metric run history",
	Long:  "Lists and shows recorded metric runs. Requires history.driver to be set.",
}

// withHistory opens the history store for the duration of fn.
func withHistory(cmd *cobra.Command, fn func(store.Store) error) error {
	if err := cfg.Validate("history"); err != nil {
		return err
	}
	st, release, err := openHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer release()
	return fn(st)
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		family, _ := cmd.Flags().GetString("family")
		scheme, _ := cmd.Flags().GetString("scheme")
		limit, _ := cmd.Flags().GetInt("limit")

		return withHistory(cmd, func(st store.Store) error {
			runs, err := st.ListRuns(cmd.Context(), store.RunFilter{Family: family, Scheme: scheme, Limit: limit})
			if err != nil {
				return eris.Wrap(err, "runs list")
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
				return nil
			}
			formatRunsList(cmd.OutOrStdout(), runs)
			return nil
		})
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(st store.Store) error {
			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		})
	},
}

func init() {
	runsListCmd.Flags().String("family", "", "filter by metric family (lcp, rlcp, lccc, ...)")
	runsListCmd.Flags().String("scheme", "", "filter by classification scheme name")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []store.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFAMILY\tSCHEME\tUNITS\tWARNINGS\tSTARTED\tDURATION")

	for _, r := range runs {
		warnings := 0
		for _, n := range r.Warnings {
			warnings += n
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Family,
			r.Scheme,
			r.Units,
			warnings,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			(time.Duration(r.ElapsedMS) * time.Millisecond).String(),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
