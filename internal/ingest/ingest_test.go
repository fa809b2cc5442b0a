package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limpurb/fiscal-cli/internal/model"
	"github.com/limpurb/fiscal-cli/internal/store"
	"github.com/limpurb/fiscal-cli/internal/workbook"
)

func selimpGrid() [][]string {
	return [][]string{
		{"PREFEITURA MUNICIPAL"},
		{"Relatório de Execução - SELIMP"},
		{},
		{"Setor", "Serviço", "Data Execução", "% Execução", "Status"},
		{"CV10100LV0001", "Varrição", "03/03/2025", "95,5", "Executado"},
		{"CV10100LV0002", "Varrição", "03/03/2025", "80", "Executado"},
		{"CV10100LV0001", "Varrição", "03/03/2025", "95,5", "Executado"}, // duplicate of row 1
	}
}

func TestGridIngestsAndDedupes(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	svc := New(st, 0)

	summary, err := svc.Grid(context.Background(), selimpGrid(), model.FileTypeSELIMP)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 0, summary.Errors)
	assert.False(t, summary.LastImport.IsZero())

	rows, err := st.ListRows(context.Background(), model.FileTypeSELIMP)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGridReingestReportsUpdates(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	svc := New(st, 0)
	ctx := context.Background()

	_, err := svc.Grid(ctx, selimpGrid(), model.FileTypeSELIMP)
	require.NoError(t, err)

	summary, err := svc.Grid(ctx, selimpGrid(), model.FileTypeSELIMP)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Inserted)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 1, summary.Duplicates)
}

func TestGridHeaderDetectionFailureIsFatal(t *testing.T) {
	t.Parallel()
	svc := New(store.NewMemory(), 0)

	grid := [][]string{
		{"nothing", "recognizable"},
		{"still", "nothing"},
	}
	_, err := svc.Grid(context.Background(), grid, model.FileTypeSELIMP)
	require.Error(t, err)
	assert.ErrorIs(t, err, workbook.ErrNoHeader)
}

func TestGridScheduleMirrorsEntries(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	svc := New(st, 0)
	ctx := context.Background()

	grid := [][]string{
		{"Cronograma de Serviços"},
		{"ID", "Serviço", "Setor", "Data Prevista"},
		{"S-1", "Capinação", "CV10500CT0001", "20/03/2025"},
		{"S-2", "Capinação", "CV10500CT0002", "21/03/2025"},
		{"S-3", "Capinação", "", "22/03/2025"},   // no setor: stored but not scheduled
		{"S-4", "Capinação", "CV10500CT0003", ""}, // no date: stored but not scheduled
	}
	summary, err := svc.Grid(ctx, grid, model.FileTypeSchedule)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Inserted)

	entries, err := st.ListSchedule(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Capinação", entries[0].Service)
	assert.Equal(t, "CV10500CT0001", entries[0].Setor)
	assert.Equal(t, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), entries[0].ExpectedDate)
}

func TestFileReadsWorkbookFromDisk(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	svc := New(st, 0)

	path := writeTestXLSX(t, selimpGrid())
	summary, err := svc.File(context.Background(), path, model.FileTypeSELIMP)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
}
