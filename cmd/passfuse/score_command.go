package main

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"passfuse/internal/strength"
)

type scoreResult struct {
	Password string  `json:"password"`
	Entropy  float64 `json:"entropy"`
	Accepted bool    `json:"accepted"`
}

func newScoreCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "score PASSWORD...",
		Short: "Score passwords and check them against the configured strength bounds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			bounds := strength.Bounds{Min: cfg.Strength.Min, Max: cfg.Strength.Max}
			var scorer strength.Entropy

			results := make([]scoreResult, 0, len(args))
			for _, pw := range args {
				score := scorer.Score(pw)
				results = append(results, scoreResult{Password: pw, Entropy: score, Accepted: bounds.Contains(score)})
			}
			if jsonOutput {
				for i := range results {
					// JSON has no infinity.
					if math.IsInf(results[i].Entropy, 1) {
						results[i].Entropy = math.MaxFloat64
					}
				}
				return writeJSON(cmd, results)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Password, formatEntropy(r.Entropy), yesNo(r.Accepted)})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Password", "Entropy (bits)", "Within bounds"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "Bounds: [%s, %s]\n", formatEntropy(bounds.Min), formatEntropy(bounds.Max))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print scores as JSON")
	return cmd
}

func formatEntropy(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
