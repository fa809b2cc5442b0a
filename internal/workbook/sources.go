package workbook

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/limpurb/fiscal-cli/internal/model"
)

// SourceConfig describes how one spreadsheet source maps onto the
// semantic fields the reconciliation engine needs. Alias lists are
// tried in order; the first non-empty cell wins.
type SourceConfig struct {
	Type model.FileType

	// KeyAliases name columns that carry a natural record key. Empty
	// for sources without one (the key is hashed instead).
	KeyAliases []string

	SectorAliases    []string
	DateAliases      []string
	ServiceAliases   []string
	PercentAliases   []string
	StatusAliases    []string
	EquipmentAliases []string
	RegionAliases    []string

	// SignalAliases participate only in header detection: the row
	// containing the most of them is the header.
	SignalAliases []string
}

// sources is the fixed per-source-type mapping configuration. Loaded
// once, never mutated at runtime.
var sources = map[model.FileType]SourceConfig{
	model.FileTypeSELIMP: {
		Type:             model.FileTypeSELIMP,
		SectorAliases:    []string{"setor", "codigo_setor", "cod_setor", "plano"},
		DateAliases:      []string{"data_execucao", "data", "data_referencia", "dt_execucao"},
		ServiceAliases:   []string{"servico", "descricao_servico", "tipo_servico"},
		PercentAliases:   []string{"percentual_execucao", "percentual", "perc_execucao", "execucao"},
		StatusAliases:    []string{"status", "situacao"},
		EquipmentAliases: []string{"equipamento", "prefixo", "veiculo"},
		RegionAliases:    []string{"subprefeitura", "regiao", "sub"},
		SignalAliases:    []string{"setor", "servico", "percentual_execucao", "percentual", "data_execucao", "status"},
	},
	model.FileTypeInternal: {
		Type:             model.FileTypeInternal,
		KeyAliases:       []string{"id", "codigo", "registro"},
		SectorAliases:    []string{"setor", "cod_setor"},
		DateAliases:      []string{"data_vistoria", "data", "data_execucao"},
		ServiceAliases:   []string{"servico", "atividade"},
		PercentAliases:   []string{"percentual_executado", "percentual", "perc"},
		EquipmentAliases: []string{"equipamento", "prefixo"},
		RegionAliases:    []string{"subprefeitura", "regiao"},
		SignalAliases:    []string{"setor", "data_vistoria", "servico", "atividade", "percentual_executado"},
	},
	model.FileTypeSchedule: {
		Type:           model.FileTypeSchedule,
		KeyAliases:     []string{"id"},
		SectorAliases:  []string{"setor", "cod_setor"},
		DateAliases:    []string{"data_prevista", "previsao", "data"},
		ServiceAliases: []string{"servico"},
		SignalAliases:  []string{"setor", "servico", "data_prevista"},
	},
}

// ConfigFor returns the mapping configuration for a source type.
func ConfigFor(ft model.FileType) (SourceConfig, bool) {
	cfg, ok := sources[ft]
	return cfg, ok
}

// First returns the first non-empty cell among the aliased columns.
func First(raw map[string]string, aliases []string) string {
	for _, a := range aliases {
		if v := strings.TrimSpace(raw[a]); v != "" {
			return v
		}
	}
	return ""
}

// PercentCell locates the percentage cell for a row: the configured
// aliases first, then any column whose canonical name carries a
// "percent" or "execu" fragment.
func PercentCell(raw map[string]string, cfg SourceConfig) string {
	if v := First(raw, cfg.PercentAliases); v != "" {
		return v
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, "percent") || strings.Contains(k, "execu") {
			if v := strings.TrimSpace(raw[k]); v != "" {
				return v
			}
		}
	}
	return ""
}

// RecordKey derives the stable dedupe key for a row. The SELIMP
// report has no natural key, so two rows are the same record only
// when every identity-bearing field matches; the key is a hash over
// that ordered tuple. Other sources use their first natural-key
// column, falling back to a hash of the whole raw map.
func RecordKey(raw map[string]string, cfg SourceConfig) string {
	if cfg.Type == model.FileTypeSELIMP {
		tuple := []string{
			First(raw, cfg.SectorAliases),
			First(raw, cfg.RegionAliases),
			First(raw, cfg.ServiceAliases),
			First(raw, cfg.DateAliases),
			First(raw, cfg.PercentAliases),
			First(raw, cfg.StatusAliases),
			First(raw, cfg.EquipmentAliases),
		}
		return hashOf(tuple)
	}

	if v := First(raw, cfg.KeyAliases); v != "" {
		return v
	}
	return hashOf(flatten(raw))
}

func flatten(raw map[string]string) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(raw)*2)
	for _, k := range keys {
		out = append(out, k, raw[k])
	}
	return out
}

func hashOf(parts []string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
