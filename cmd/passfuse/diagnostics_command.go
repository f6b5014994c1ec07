package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"passfuse/internal/pipeline"
	"passfuse/internal/store"
)

func newDiagnosticsCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "List the diagnostics recorded for a run (latest by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				run, err := resolveRun(cmd.Context(), st, runID)
				if err != nil {
					return err
				}
				diagnostics, err := st.Diagnostics(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, struct {
						Run         store.Run             `json:"run"`
						Diagnostics []pipeline.Diagnostic `json:"diagnostics"`
					}{Run: run, Diagnostics: nonNilDiagnostics(diagnostics)})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Status)
				if run.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", run.Error)
				}
				if len(diagnostics) == 0 {
					fmt.Fprintln(out, "No diagnostics")
					return nil
				}
				fmt.Fprintln(out, renderDiagnostics(out, diagnostics))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run identifier (defaults to the latest run)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print diagnostics as JSON")
	return cmd
}

func renderDiagnostics(out io.Writer, diagnostics []pipeline.Diagnostic) string {
	rows := make([][]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		generator := d.Generator
		if generator == "" {
			generator = "-"
		}
		rows = append(rows, []string{d.Identity, generator, d.Kind, string(d.Severity), d.Message})
	}
	return renderTable(out,
		[]string{"Identity", "Generator", "Kind", "Severity", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

func nonNilDiagnostics(values []pipeline.Diagnostic) []pipeline.Diagnostic {
	if values == nil {
		return []pipeline.Diagnostic{}
	}
	return values
}
