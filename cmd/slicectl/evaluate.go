package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Aashish23092/slice-receipts/app"
	"github.com/Aashish23092/slice-receipts/service"
)

func evaluateCmd() *cobra.Command {
	var (
		useHybrid bool
		output    string
	)
	cmd := &cobra.Command{
		Use:   "evaluate <dataset-dir>",
		Short: "Score item and total extraction against labelled receipts",
		Long: `Runs every image under <dataset-dir>/images through the scan pipeline and
compares the result with <dataset-dir>/labels/<name>.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			images, err := service.LabelledImages(dir)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), loadConfig(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			bar := progressbar.NewOptions(len(images),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Evaluating receipts"),
			)
			report, err := service.NewEvaluator(a.Receipts).Evaluate(cmd.Context(), dir, useHybrid, func(name string) {
				bar.Describe(name)
				_ = bar.Add(1)
			})
			_ = bar.Finish()
			if err != nil {
				return err
			}

			if output != "" {
				if err := service.WriteReport(output, report); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			s := report.Summary
			fmt.Fprintf(out, "\nmode: %s\n", s.Mode)
			fmt.Fprintf(out, "receipts: %d evaluated, %d skipped\n", s.ReceiptsEvaluated, s.ReceiptsSkipped)
			fmt.Fprintf(out, "items: precision %.2f%%  recall %.2f%%  f1 %.2f%%  (tp=%d fp=%d fn=%d)\n",
				s.PrecisionPct, s.RecallPct, s.F1Pct, s.TruePositives, s.FalsePositives, s.FalseNegatives)
			fmt.Fprintf(out, "quantity accuracy %.2f%%  cost accuracy %.2f%%  total match %.2f%%\n",
				s.QuantityAccuracyPct, s.CostAccuracyPct, s.TotalMatchRatePct)
			if cases := service.HardCaseSample(report); len(cases) > 0 {
				fmt.Fprintln(out, "hard cases:")
				for _, hc := range cases {
					fmt.Fprintf(out, "  %s: %s\n", hc.Image, hc.Reason)
				}
			}
			if output != "" {
				fmt.Fprintf(out, "report written to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&useHybrid, "hybrid", false, "allow the secondary extractor during evaluation")
	cmd.Flags().StringVarP(&output, "output", "o", "evaluation_report.json", "report path (empty to skip)")
	return cmd
}
