package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/limpurb/fiscal-cli/internal/ingest"
	"github.com/limpurb/fiscal-cli/internal/model"
	"github.com/limpurb/fiscal-cli/internal/reconcile"
	"github.com/limpurb/fiscal-cli/internal/store"
)

func testServer(t *testing.T, st store.Store, opts Options) *httptest.Server {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC) }
	}
	srv := New(st, ingest.New(st, 0), opts)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func xlsxBytes(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Plan1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func selimpWorkbook(t *testing.T) []byte {
	return xlsxBytes(t, [][]string{
		{"Relatório SELIMP"},
		{"Setor", "Serviço", "Data Execução", "% Execução", "Status"},
		{"CV10100GO0001", "Varrição", "03/03/2025", "95,5", "Executado"},
		{"CV10100GO0002", "Varrição", "03/03/2025", "80", "Executado"},
	})
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts := testServer(t, store.NewMemory(), Options{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadWorkbook(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	ts := testServer(t, st, Options{})

	body, contentType := multipartBody(t, "arquivo", "selimp.xlsx", selimpWorkbook(t))
	resp, err := http.Post(ts.URL+"/api/upload/selimp", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary model.UploadSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 2, summary.Inserted)

	rows, err := st.ListRows(context.Background(), model.FileTypeSELIMP)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestUploadRawBody(t *testing.T) {
	t.Parallel()
	ts := testServer(t, store.NewMemory(), Options{})

	resp, err := http.Post(ts.URL+"/api/upload/selimp",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		bytes.NewReader(selimpWorkbook(t)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadUnknownType(t *testing.T) {
	t.Parallel()
	ts := testServer(t, store.NewMemory(), Options{})

	body, contentType := multipartBody(t, "arquivo", "x.xlsx", selimpWorkbook(t))
	resp, err := http.Post(ts.URL+"/api/upload/desconhecido", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadHeaderlessWorkbookRejected(t *testing.T) {
	t.Parallel()
	ts := testServer(t, store.NewMemory(), Options{})

	data := xlsxBytes(t, [][]string{{"nada", "reconhecível"}})
	body, contentType := multipartBody(t, "arquivo", "x.xlsx", data)
	resp, err := http.Post(ts.URL+"/api/upload/selimp", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUploadRateLimit(t *testing.T) {
	t.Parallel()
	ts := testServer(t, store.NewMemory(), Options{UploadPerMinute: 1})

	body, contentType := multipartBody(t, "arquivo", "selimp.xlsx", selimpWorkbook(t))
	resp, err := http.Post(ts.URL+"/api/upload/selimp", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, contentType = multipartBody(t, "arquivo", "selimp.xlsx", selimpWorkbook(t))
	resp, err = http.Post(ts.URL+"/api/upload/selimp", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestReconcilePreviousDay(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	ts := testServer(t, st, Options{})

	body, contentType := multipartBody(t, "arquivo", "selimp.xlsx", selimpWorkbook(t))
	resp, err := http.Post(ts.URL+"/api/upload/selimp", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Today is pinned to Mar 4; the uploaded rows are from Mar 3.
	resp, err = http.Get(ts.URL + "/api/reconcile")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result reconcile.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Len(t, result.Plans, 2)
	assert.Equal(t, 2, result.Comparison.OnlySelimp)
}

func TestReconcileBadRange(t *testing.T) {
	t.Parallel()
	ts := testServer(t, store.NewMemory(), Options{})

	resp, err := http.Get(ts.URL + "/api/reconcile?inicio=2025-03-10&fim=2025-03-01")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScoreWithOverride(t *testing.T) {
	t.Parallel()
	ts := testServer(t, store.NewMemory(), Options{})

	resp, err := http.Get(ts.URL + "/api/score?inicio=2025-03-01&fim=2025-03-31&execucao=92")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got scoreResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "override", got.ExecutionSource)
	assert.InDelta(t, 92.0, got.ExecutionPercent, 1e-9)
	require.Len(t, got.Score.Indicators, 4)
	// 92% execution alone is worth 40 points.
	assert.Equal(t, 40, got.Score.Indicators[0].Points)
}

func TestScoreUsesSavedExecution(t *testing.T) {
	t.Parallel()
	ts := testServer(t, store.NewMemory(), Options{})

	payload := `{"inicio":"2025-03-01","fim":"2025-03-31","percentual":85}`
	resp, err := http.Post(ts.URL+"/api/execucao", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/score?inicio=2025-03-01&fim=2025-03-31")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got scoreResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "saved", got.ExecutionSource)
	assert.InDelta(t, 85.0, got.ExecutionPercent, 1e-9)
}

func TestScoreComputesFromReconciliation(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	ts := testServer(t, st, Options{})

	body, contentType := multipartBody(t, "arquivo", "selimp.xlsx", selimpWorkbook(t))
	resp, err := http.Post(ts.URL+"/api/upload/selimp", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/score?inicio=2025-03-01&fim=2025-03-31")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got scoreResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "computed", got.ExecutionSource)
	// (95.5 + 80) / 2 dispatches.
	assert.InDelta(t, 87.75, got.ExecutionPercent, 1e-9)
}

func TestSaveExecutionValidation(t *testing.T) {
	t.Parallel()
	ts := testServer(t, store.NewMemory(), Options{})

	for _, payload := range []string{
		`not json`,
		`{"inicio":"2025-03-31","fim":"2025-03-01","percentual":85}`,
		`{"inicio":"2025-03-01","fim":"2025-03-31","percentual":140}`,
	} {
		resp, err := http.Post(ts.URL+"/api/execucao", "application/json", bytes.NewBufferString(payload))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}
