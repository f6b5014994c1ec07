package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"passfuse/internal/pipeline"
	"passfuse/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var targetsPath string
	var outDir string
	var answers bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate, fuse and rank candidates for every identity in a targets file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report, err := runner.Run(cmd.Context(), cfg, runner.Options{
				TargetsPath: targetsPath,
				OutputDir:   outDir,
				Answers:     answers,
				LogLevel:    ctx.logLevel(),
				Console:     cmd.ErrOrStderr(),
			})
			if err != nil {
				if report.RunID != "" {
					return fmt.Errorf("run %s: %w", report.RunID, err)
				}
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printRunReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetsPath, "targets", "t", "", "Targets file, one identity per line")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (defaults to paths.output_dir)")
	cmd.Flags().BoolVar(&answers, "answers", false, "Also write the <END>-separated answer file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")
	_ = cmd.MarkFlagRequired("targets")
	return cmd
}

func printRunReport(out io.Writer, report runner.Report) {
	summary := report.Summary
	fmt.Fprintf(out, "Run %s finished in %s\n", report.RunID, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Identities: %d (ok %d, empty %d)\n",
		summary.Identities, summary.Count(pipeline.StatusOK), summary.Count(pipeline.StatusEmpty))
	fmt.Fprintf(out, "Candidates selected: %d\n", summary.Selected)
	fmt.Fprintf(out, "Candidates: %s\n", report.TSVPath)
	if report.AnswersPath != "" {
		fmt.Fprintf(out, "Answers: %s\n", report.AnswersPath)
		if report.SkippedAnswers > 0 {
			fmt.Fprintf(out, "Answers skipped (not representable): %d\n", report.SkippedAnswers)
		}
	}
	if len(summary.Diagnostics) == 0 {
		fmt.Fprintln(out, "No diagnostics")
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderDiagnostics(out, summary.Diagnostics))
}
