// Package ingest orchestrates workbook ingestion: it turns a raw sheet
// grid into canonical rows, persists them through the store and reports
// an UploadSummary per file.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/limpurb/fiscal-cli/internal/model"
	"github.com/limpurb/fiscal-cli/internal/store"
	"github.com/limpurb/fiscal-cli/internal/workbook"
)

// Service runs uploads against a store.
type Service struct {
	store      store.Store
	sheetIndex int
}

// New creates an ingestion Service reading the given sheet index of
// each workbook.
func New(st store.Store, sheetIndex int) *Service {
	return &Service{store: st, sheetIndex: sheetIndex}
}

// File ingests one workbook from disk.
func (s *Service) File(ctx context.Context, path string, ft model.FileType) (model.UploadSummary, error) {
	grid, err := workbook.ReadXLSX(path, workbook.XLSXOptions{SheetIndex: s.sheetIndex})
	if err != nil {
		return model.UploadSummary{}, eris.Wrapf(err, "ingest: read %s", path)
	}
	return s.Grid(ctx, grid, ft)
}

// Bytes ingests one workbook from an in-memory buffer, as received on
// the upload endpoint.
func (s *Service) Bytes(ctx context.Context, data []byte, ft model.FileType) (model.UploadSummary, error) {
	grid, err := workbook.ReadXLSXBytes(data, workbook.XLSXOptions{SheetIndex: s.sheetIndex})
	if err != nil {
		return model.UploadSummary{}, eris.Wrap(err, "ingest: read workbook")
	}
	return s.Grid(ctx, grid, ft)
}

// Grid ingests an already-decoded sheet grid. Header detection failure
// is fatal for the whole file; per-row persistence failures are counted
// and the remaining rows still go through.
func (s *Service) Grid(ctx context.Context, grid [][]string, ft model.FileType) (model.UploadSummary, error) {
	rows, err := workbook.Extract(grid, ft)
	if err != nil {
		return model.UploadSummary{}, err
	}

	batchID := uuid.NewString()
	log := zap.L().With(zap.String("batch_id", batchID), zap.String("file_type", string(ft)))

	summary := model.UploadSummary{Total: len(rows), LastImport: time.Now().UTC()}
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.RecordKey]; dup {
			summary.Duplicates++
			continue
		}
		seen[row.RecordKey] = struct{}{}

		inserted, err := s.store.UpsertRow(ctx, row)
		if err != nil {
			log.Warn("row upsert failed", zap.String("record_key", row.RecordKey), zap.Error(err))
			summary.Errors++
			continue
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Updated++
		}
		summary.Processed++
	}

	if ft == model.FileTypeSchedule {
		if err := s.upsertSchedule(ctx, rows, log); err != nil {
			return summary, err
		}
	}

	log.Info("workbook ingested",
		zap.Int("total", summary.Total),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

// upsertSchedule mirrors schedule rows into the schedule_entries table,
// which the reconciliation engine treats as the authoritative calendar
// for scheduled services.
func (s *Service) upsertSchedule(ctx context.Context, rows []model.Row, log *zap.Logger) error {
	cfg, _ := workbook.ConfigFor(model.FileTypeSchedule)

	entries := make([]model.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		if row.RefDate == nil || row.Setor == "" {
			continue
		}
		entries = append(entries, model.ScheduleEntry{
			Service:      workbook.First(row.Raw, cfg.ServiceAliases),
			Setor:        row.Setor,
			ExpectedDate: *row.RefDate,
		})
	}
	if len(entries) == 0 {
		return nil
	}

	n, err := s.store.UpsertScheduleEntries(ctx, entries)
	if err != nil {
		return eris.Wrap(err, "ingest: upsert schedule entries")
	}
	log.Info("schedule entries upserted", zap.Int64("count", n))
	return nil
}
