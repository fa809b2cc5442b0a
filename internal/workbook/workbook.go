// Package workbook turns noisy spreadsheet grids into canonical
// ingestion rows: it finds the real header row inside decorated
// sheets, maps inconsistent column names onto semantic fields per
// source type, and derives a stable dedupe key per row.
package workbook

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/limpurb/fiscal-cli/internal/model"
	"github.com/limpurb/fiscal-cli/internal/setor"
)

// headerScanLimit bounds how deep into a sheet the header may sit.
// The operators' sheets carry at most a title block and a few merged
// decoration rows above the table.
const headerScanLimit = 25

// ErrNoHeader marks a sheet in which no row scored any header
// signals. Ingestion of that file is fatal.
var ErrNoHeader = eris.New("workbook: header row not detected")

// DetectHeader scans the first rows of a grid and returns the index
// of the best-scoring header row plus its canonicalized cells. A row
// scores one point per signal alias present among its cells; the
// maximum above zero wins.
func DetectHeader(grid [][]string, cfg SourceConfig) (int, []string, error) {
	limit := len(grid)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	signals := make(map[string]bool, len(cfg.SignalAliases))
	for _, s := range cfg.SignalAliases {
		signals[s] = true
	}

	bestIdx, bestScore := -1, 0
	var bestCells []string
	for i := 0; i < limit; i++ {
		cells := make([]string, len(grid[i]))
		score := 0
		for j, cell := range grid[i] {
			cells[j] = Canonical(cell)
			if signals[cells[j]] {
				score++
			}
		}
		if score > bestScore {
			bestIdx, bestScore, bestCells = i, score, cells
		}
	}

	if bestIdx < 0 {
		return 0, nil, eris.Wrapf(ErrNoHeader, "source %s: no row in the first %d scored a header signal", cfg.Type, limit)
	}
	return bestIdx, bestCells, nil
}

// Extract parses a full sheet grid for one source type: header
// detection, then one model.Row per non-blank data row.
func Extract(grid [][]string, ft model.FileType) ([]model.Row, error) {
	cfg, ok := ConfigFor(ft)
	if !ok {
		return nil, eris.Errorf("workbook: unknown source type %q", ft)
	}

	headerIdx, header, err := DetectHeader(grid, cfg)
	if err != nil {
		return nil, err
	}

	var rows []model.Row
	for _, cells := range grid[headerIdx+1:] {
		if blankRow(cells) {
			continue
		}
		rows = append(rows, buildRow(cells, header, cfg))
	}
	return rows, nil
}

func buildRow(cells, header []string, cfg SourceConfig) model.Row {
	raw := make(map[string]string, len(cells))
	for j, cell := range cells {
		name := ""
		if j < len(header) {
			name = header[j]
		}
		if name == "" {
			// Data wider than the header keeps a positional name so
			// nothing is silently dropped.
			name = fmt.Sprintf("col_%02d", j)
		}
		raw[name] = strings.TrimSpace(cell)
	}

	row := model.Row{
		FileType:  cfg.Type,
		Raw:       raw,
		RecordKey: RecordKey(raw, cfg),
	}

	if s := First(raw, cfg.SectorAliases); s != "" {
		row.Setor = setor.Normalize(s)
	}
	for _, a := range cfg.DateAliases {
		if t, ok := ParseDate(raw[a]); ok {
			row.RefDate = &t
			break
		}
	}
	return row
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
