package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limpurb/fiscal-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ingest_rows").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRow_InsertedThenUpdated(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	refDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	row := model.Row{
		FileType:  model.FileTypeSELIMP,
		RecordKey: "abc123",
		Setor:     "CV10500GO0015",
		RefDate:   &refDate,
		Raw:       map[string]string{"setor": "CV10500GO0015", "percentual_execucao": "95,5"},
	}

	mock.ExpectQuery("INSERT INTO ingest_rows").
		WithArgs("selimp", "abc123", "CV10500GO0015", &refDate, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(true))

	inserted, err := s.UpsertRow(ctx, row)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same key again: the store reports an update, not an insert.
	mock.ExpectQuery("INSERT INTO ingest_rows").
		WithArgs("selimp", "abc123", "CV10500GO0015", &refDate, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(false))

	inserted, err = s.UpsertRow(ctx, row)
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRows(t *testing.T) {
	s, mock := newMockStore(t)

	refDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT record_key, setor, ref_date, raw FROM ingest_rows").
		WithArgs("interno").
		WillReturnRows(pgxmock.NewRows([]string{"record_key", "setor", "ref_date", "raw"}).
			AddRow("R-0042", "CV10500GO0015", &refDate, []byte(`{"setor":"CV10500GO0015"}`)))

	rows, err := s.ListRows(context.Background(), model.FileTypeInternal)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.FileTypeInternal, rows[0].FileType)
	assert.Equal(t, "R-0042", rows[0].RecordKey)
	assert.Equal(t, "CV10500GO0015", rows[0].Raw["setor"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertScheduleEntries(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_schedule_entries"},
		[]string{"service", "setor", "expected_date"}).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO \"schedule_entries\"").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.UpsertScheduleEntries(context.Background(), []model.ScheduleEntry{
		{Service: "Lavagem de Vias", Setor: "CV10500LV0001", ExpectedDate: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSchedule(t *testing.T) {
	s, mock := newMockStore(t)

	d := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT service, setor, expected_date FROM schedule_entries").
		WillReturnRows(pgxmock.NewRows([]string{"service", "setor", "expected_date"}).
			AddRow("Lavagem de Vias", "CV10500LV0001", d))

	entries, err := s.ListSchedule(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "CV10500LV0001", entries[0].Setor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanExecutionRoundTrip(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO plan_execution").
		WithArgs(start, end, 87.5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.SavePlanExecution(ctx, start, end, 87.5))

	mock.ExpectQuery("SELECT percent FROM plan_execution").
		WithArgs(start, end).
		WillReturnRows(pgxmock.NewRows([]string{"percent"}).AddRow(87.5))

	got, err := s.GetPlanExecution(ctx, start, end)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 87.5, *got, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPlanExecutionMissing(t *testing.T) {
	s, mock := newMockStore(t)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT percent FROM plan_execution").
		WithArgs(start, end).
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetPlanExecution(context.Background(), start, end)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPeriod(t *testing.T) {
	s, mock := newMockStore(t)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT").
		WithArgs(start, end.AddDate(0, 0, 1)).
		WillReturnRows(pgxmock.NewRows([]string{"t", "ot", "i", "ik", "sr", "c"}).
			AddRow(100, 96, 50, 47, 200, 4))

	counts, err := s.CountPeriod(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 100, counts.TicketsTotal)
	assert.Equal(t, 96, counts.TicketsOnTime)
	assert.Equal(t, 50, counts.InspectionsTotal)
	assert.Equal(t, 47, counts.InspectionsOK)
	assert.Equal(t, 200, counts.ServicesRendered)
	assert.Equal(t, 4, counts.ComplaintsTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}
