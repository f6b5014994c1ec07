package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"passfuse/internal/selector"
	"passfuse/internal/store"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var identityKey string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the ranked candidates of one identity, or the identities of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				run, err := resolveRun(cmd.Context(), st, runID)
				if err != nil {
					return err
				}
				key := strings.TrimSpace(identityKey)
				if key == "" {
					return showIdentities(cmd, st, run, jsonOutput)
				}

				selections, err := st.Outputs(cmd.Context(), run.ID, key)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("identity %q is not part of run %s", key, run.ID)
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					if selections == nil {
						selections = []selector.Selection{}
					}
					return writeJSON(cmd, selections)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s, identity %s: %d candidates\n", run.ID, key, len(selections))
				if len(selections) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(selections))
				for _, sel := range selections {
					rows = append(rows, []string{
						strconv.Itoa(sel.Rank),
						sel.Password,
						strings.Join(sel.Sources, ","),
						strconv.FormatFloat(sel.FusedRank, 'f', 4, 64),
						strconv.FormatFloat(sel.Strength, 'f', 2, 64),
						sel.Credit,
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Rank", "Password", "Sources", "Fused", "Strength", "Credit"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run identifier (defaults to the latest run)")
	cmd.Flags().StringVarP(&identityKey, "identity", "i", "", "Identity key; omit to list the run's identities")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	return cmd
}

func showIdentities(cmd *cobra.Command, st *store.Store, run store.Run, jsonOutput bool) error {
	identities, err := st.Identities(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	if jsonOutput {
		if identities == nil {
			identities = []store.IdentitySummary{}
		}
		return writeJSON(cmd, identities)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s): %d identities\n", run.ID, run.Status, len(identities))
	if len(identities) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(identities))
	for _, item := range identities {
		rows = append(rows, []string{
			item.Identity,
			string(item.Status),
			strconv.Itoa(item.Selected),
			strconv.FormatInt(item.Duration, 10),
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Identity", "Status", "Selected", "Duration (ms)"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	))
	return nil
}
