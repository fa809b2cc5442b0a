package main

import (
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/limpurb/fiscal-cli/internal/ingest"
	"github.com/limpurb/fiscal-cli/internal/model"
)

var (
	ingestType       string
	ingestSheetIndex int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [arquivos...]",
	Short: "Ingest execution workbooks into the store",
	Long:  "Reads one or more XLSX files of the given type (selimp, interno or cronograma), detects the header row and upserts every data row.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		ft, ok := model.ParseFileType(ingestType)
		if !ok {
			return eris.Errorf("unknown file type %q (selimp, interno, cronograma)", ingestType)
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sheetIndex := ingestSheetIndex
		if sheetIndex < 0 {
			sheetIndex = cfg.Ingest.SheetIndex
		}
		svc := ingest.New(st, sheetIndex)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Ingest.Concurrency)

		var inserted, updated, failed atomic.Int64

		for _, path := range args {
			g.Go(func() error {
				log := zap.L().With(zap.String("file", path))

				summary, err := svc.File(gctx, path, ft)
				if err != nil {
					failed.Add(1)
					log.Error("ingest failed", zap.Error(err))
					return nil // don't abort the batch on individual failure
				}

				inserted.Add(int64(summary.Inserted))
				updated.Add(int64(summary.Updated))
				log.Info("file ingested",
					zap.Int("inserted", summary.Inserted),
					zap.Int("updated", summary.Updated),
					zap.Int("duplicates", summary.Duplicates),
					zap.Int("errors", summary.Errors),
				)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "ingest batch")
		}

		zap.L().Info("ingest complete",
			zap.Int("files", len(args)),
			zap.Int64("inserted", inserted.Load()),
			zap.Int64("updated", updated.Load()),
			zap.Int64("failed_files", failed.Load()),
		)
		if failed.Load() > 0 {
			return eris.Errorf("%d of %d files failed", failed.Load(), len(args))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestType, "tipo", "", "file type: selimp, interno or cronograma (required)")
	ingestCmd.Flags().IntVar(&ingestSheetIndex, "sheet", -1, "sheet index (default from config)")
	_ = ingestCmd.MarkFlagRequired("tipo")
	rootCmd.AddCommand(ingestCmd)
}
