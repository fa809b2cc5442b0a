package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/limpurb/fiscal-cli/internal/ingest"
	"github.com/limpurb/fiscal-cli/internal/model"
)

var scheduleSheetIndex int

var scheduleCmd = &cobra.Command{
	Use:   "schedule [arquivos...]",
	Short: "Load the one-off execution schedule workbook",
	Long:  "Shorthand for `ingest --tipo cronograma`: upserts the workbook rows and mirrors them into the schedule the reconciliation engine consults for scheduled services.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sheetIndex := scheduleSheetIndex
		if sheetIndex < 0 {
			sheetIndex = cfg.Ingest.SheetIndex
		}
		svc := ingest.New(st, sheetIndex)

		for _, path := range args {
			summary, err := svc.File(ctx, path, model.FileTypeSchedule)
			if err != nil {
				return err
			}
			zap.L().Info("schedule file loaded",
				zap.String("file", path),
				zap.Int("inserted", summary.Inserted),
				zap.Int("updated", summary.Updated),
			)
		}
		return nil
	},
}

func init() {
	scheduleCmd.Flags().IntVar(&scheduleSheetIndex, "sheet", -1, "sheet index (default from config)")
	rootCmd.AddCommand(scheduleCmd)
}
