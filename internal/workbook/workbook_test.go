package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limpurb/fiscal-cli/internal/model"
)

func selimpGrid() [][]string {
	return [][]string{
		{"PREFEITURA MUNICIPAL"},
		{},
		{"Relatório SELIMP", "", "emitido em 02/03/2025"},
		{"Setor", "Subprefeitura", "Serviço", "Data Execução", "% Execução", "Status", "Equipamento"},
		{"CV10500GO0015", "CV", "Varrição Manual", "01/03/2025", "95,5", "Executado", "VM-102"},
		{"", "", "", "", "", "", ""},
		{"JT20101VR0031 - NOVO", "JT", "Coleta Domiciliar", "01/03/2025", "100", "Executado", "CD-007"},
	}
}

func TestDetectHeaderSkipsDecoration(t *testing.T) {
	t.Parallel()

	cfg, ok := ConfigFor(model.FileTypeSELIMP)
	require.True(t, ok)

	idx, header, err := DetectHeader(selimpGrid(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.Equal(t, "setor", header[0])
	assert.Equal(t, "data_execucao", header[3])
}

func TestDetectHeaderNoSignals(t *testing.T) {
	t.Parallel()

	cfg, _ := ConfigFor(model.FileTypeSELIMP)
	grid := [][]string{
		{"nada", "a ver"},
		{"1", "2"},
	}
	_, _, err := DetectHeader(grid, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestExtractSELIMP(t *testing.T) {
	t.Parallel()

	rows, err := Extract(selimpGrid(), model.FileTypeSELIMP)
	require.NoError(t, err)
	require.Len(t, rows, 2) // blank row dropped

	first := rows[0]
	assert.Equal(t, model.FileTypeSELIMP, first.FileType)
	assert.Equal(t, "CV10500GO0015", first.Setor)
	require.NotNil(t, first.RefDate)
	assert.Equal(t, "2025-03-01", first.RefDate.Format("2006-01-02"))
	assert.Equal(t, "95,5", first.Raw["execucao"])
	assert.NotEmpty(t, first.RecordKey)

	// Suffix normalization applies to the resolved sector.
	assert.Equal(t, "JT20101VR0031", rows[1].Setor)
}

func TestExtractRecordKeyStability(t *testing.T) {
	t.Parallel()

	a, err := Extract(selimpGrid(), model.FileTypeSELIMP)
	require.NoError(t, err)
	b, err := Extract(selimpGrid(), model.FileTypeSELIMP)
	require.NoError(t, err)

	assert.Equal(t, a[0].RecordKey, b[0].RecordKey)
	assert.NotEqual(t, a[0].RecordKey, a[1].RecordKey)
}

func TestExtractWiderDataThanHeader(t *testing.T) {
	t.Parallel()

	grid := [][]string{
		{"Setor", "Serviço", "Data Prevista"},
		{"CV10500GO0015", "Varrição Manual", "15/03/2025", "anotação solta"},
	}
	rows, err := Extract(grid, model.FileTypeSchedule)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "anotação solta", rows[0].Raw["col_03"])
}

func TestExtractUnknownType(t *testing.T) {
	t.Parallel()

	_, err := Extract(selimpGrid(), model.FileType("misterio"))
	assert.Error(t, err)
}

func TestExtractNaturalKey(t *testing.T) {
	t.Parallel()

	grid := [][]string{
		{"ID", "Setor", "Serviço", "Data Vistoria", "Percentual Executado"},
		{"R-0042", "CV10500GO0015", "Varrição Manual", "01/03/2025", "88"},
		{"", "MG10402GO0007", "Varrição Manual", "01/03/2025", "70"},
	}
	rows, err := Extract(grid, model.FileTypeInternal)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "R-0042", rows[0].RecordKey)
	// Missing natural key falls back to a content hash.
	assert.Len(t, rows[1].RecordKey, 64)
}
