package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/limpurb/fiscal-cli/internal/model"
	"github.com/limpurb/fiscal-cli/internal/reconcile"
	"github.com/limpurb/fiscal-cli/internal/store"
	"github.com/limpurb/fiscal-cli/internal/workbook"
)

var (
	reconcileStart string
	reconcileEnd   string
	reconcileAll   bool
	reconcileSave  bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile SELIMP and internal rows into per-plan reports",
	Long:  "Merges the two ingested sources into daily buckets, rolls them up per plan, region and service and prints the result as JSON. Without flags only the previous day is in view.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("reconcile"); err != nil {
			return err
		}

		scope, err := buildScope(reconcileStart, reconcileEnd, reconcileAll)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := runAggregate(ctx, st, scope)
		if err != nil {
			return err
		}

		if reconcileSave {
			if scope.Kind != reconcile.ScopePeriod {
				return eris.New("--salvar requires an explicit --inicio/--fim period")
			}
			pct := result.OverallSelimpPercent()
			if pct == nil {
				return eris.New("no SELIMP dispatches in the period, nothing to save")
			}
			if err := st.SavePlanExecution(ctx, scope.Start, scope.End, *pct); err != nil {
				return eris.Wrap(err, "save plan execution")
			}
			zap.L().Info("plan execution saved",
				zap.String("inicio", scope.Start.Format("2006-01-02")),
				zap.String("fim", scope.End.Format("2006-01-02")),
				zap.Float64("percent", *pct),
			)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// buildScope translates the date flags into a reconciliation scope.
func buildScope(start, end string, all bool) (reconcile.Scope, error) {
	today := time.Now().UTC()
	if all {
		return reconcile.Scope{Kind: reconcile.ScopeAll, Today: today}, nil
	}
	if start == "" && end == "" {
		return reconcile.Scope{Kind: reconcile.ScopePreviousDay, Today: today}, nil
	}

	s, okStart := workbook.ParseDate(start)
	e, okEnd := workbook.ParseDate(end)
	if !okStart || !okEnd || e.Before(s) {
		return reconcile.Scope{}, eris.Errorf("invalid period %q..%q", start, end)
	}
	return reconcile.Scope{Kind: reconcile.ScopePeriod, Start: s, End: e, Today: today}, nil
}

func runAggregate(ctx context.Context, st store.Store, scope reconcile.Scope) (*reconcile.Result, error) {
	selimp, err := st.ListRows(ctx, model.FileTypeSELIMP)
	if err != nil {
		return nil, eris.Wrap(err, "list selimp rows")
	}
	internal, err := st.ListRows(ctx, model.FileTypeInternal)
	if err != nil {
		return nil, eris.Wrap(err, "list internal rows")
	}
	schedule, err := st.ListSchedule(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list schedule")
	}

	return reconcile.Aggregate(
		reconcile.Input{Selimp: selimp, Internal: internal, Schedule: schedule},
		reconcile.Options{
			Scope:                 scope,
			ScheduledServices:     scheduledSet(),
			CrossRefToleranceDays: cfg.Reconcile.ToleranceDays,
		},
	), nil
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileStart, "inicio", "", "period start (YYYY-MM-DD)")
	reconcileCmd.Flags().StringVar(&reconcileEnd, "fim", "", "period end (YYYY-MM-DD)")
	reconcileCmd.Flags().BoolVar(&reconcileAll, "todos", false, "reconcile every observed day")
	reconcileCmd.Flags().BoolVar(&reconcileSave, "salvar", false, "save the period's execution percentage for scoring")
	rootCmd.AddCommand(reconcileCmd)
}
