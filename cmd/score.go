package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/limpurb/fiscal-cli/internal/indicator"
	"github.com/limpurb/fiscal-cli/internal/model"
	"github.com/limpurb/fiscal-cli/internal/reconcile"
	"github.com/limpurb/fiscal-cli/internal/workbook"
)

var (
	scoreStart     string
	scoreEnd       string
	scoreExecution string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the contract indicators for a period",
	Long:  "Counts the period's collaborator records, resolves the plan execution percentage (flag override, saved value, or a fresh reconciliation) and prints the composed score with the payment discount.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		start, okStart := workbook.ParseDate(scoreStart)
		end, okEnd := workbook.ParseDate(scoreEnd)
		if !okStart || !okEnd || end.Before(start) {
			return eris.Errorf("invalid period %q..%q", scoreStart, scoreEnd)
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.CountPeriod(ctx, start, end)
		if err != nil {
			return eris.Wrap(err, "count period")
		}

		var execution float64
		switch {
		case scoreExecution != "":
			pct, ok := workbook.ParsePercent(scoreExecution)
			if !ok {
				return eris.Errorf("invalid --execucao value %q", scoreExecution)
			}
			execution = pct
		default:
			saved, err := st.GetPlanExecution(ctx, start, end)
			if err != nil {
				return eris.Wrap(err, "get saved execution")
			}
			if saved != nil {
				execution = *saved
			} else {
				scope := reconcile.Scope{Kind: reconcile.ScopePeriod, Start: start, End: end, Today: end.AddDate(0, 0, 1)}
				result, err := runAggregate(ctx, st, scope)
				if err != nil {
					return err
				}
				if pct := result.OverallSelimpPercent(); pct != nil {
					execution = *pct
				}
			}
		}

		score := indicator.Compose(execution, counts)
		zap.L().Info("score composed",
			zap.Float64("execution_percent", execution),
			zap.Int("total_points", score.Total),
			zap.Float64("discount_percent", score.Discount),
		)

		out := struct {
			PeriodStart      string             `json:"period_start"`
			PeriodEnd        string             `json:"period_end"`
			ExecutionPercent float64            `json:"execution_percent"`
			Counts           model.PeriodCounts `json:"counts"`
			Score            indicator.Score    `json:"score"`
		}{
			PeriodStart:      start.Format("2006-01-02"),
			PeriodEnd:        end.Format("2006-01-02"),
			ExecutionPercent: execution,
			Counts:           counts,
			Score:            score,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreStart, "inicio", "", "period start (YYYY-MM-DD, required)")
	scoreCmd.Flags().StringVar(&scoreEnd, "fim", "", "period end (YYYY-MM-DD, required)")
	scoreCmd.Flags().StringVar(&scoreExecution, "execucao", "", "override the plan execution percentage")
	_ = scoreCmd.MarkFlagRequired("inicio")
	_ = scoreCmd.MarkFlagRequired("fim")
	rootCmd.AddCommand(scoreCmd)
}
