package workbook

import (
	"bytes"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects which sheet of a workbook to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads one sheet of an XLSX file into a raw cell grid.
// No interpretation happens here; header detection and field mapping
// run over the returned grid.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "workbook: open file")
	}
	return sheetGrid(f, opts)
}

// ReadXLSXBytes reads one sheet from an in-memory XLSX payload, as
// delivered by the upload boundary.
func ReadXLSXBytes(data []byte, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "workbook: open payload")
	}
	return sheetGrid(f, opts)
}

// ReadXLSXReader drains r and parses it as an XLSX workbook.
func ReadXLSXReader(r io.Reader, opts XLSXOptions) ([][]string, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, eris.Wrap(err, "workbook: read payload")
	}
	return ReadXLSXBytes(buf.Bytes(), opts)
}

func sheetGrid(f *xlsx.File, opts XLSXOptions) ([][]string, error) {
	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}

	grid := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

func pickSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("workbook: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("workbook: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
