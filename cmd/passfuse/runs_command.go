package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"passfuse/internal/store"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				runs, err := st.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					if runs == nil {
						runs = []store.Run{}
					}
					return writeJSON(cmd, runs)
				}

				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					finished := "-"
					if !run.FinishedAt.IsZero() {
						finished = run.FinishedAt.Local().Format(time.DateTime)
					}
					rows = append(rows, []string{
						run.ID,
						string(run.Status),
						run.StartedAt.Local().Format(time.DateTime),
						finished,
						strconv.Itoa(run.Identities),
						strconv.Itoa(run.Selected),
						strings.Join(run.Generators, ","),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Run", "Status", "Started", "Finished", "Identities", "Selected", "Generators"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	return cmd
}
