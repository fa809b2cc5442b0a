// Package setor parses, normalizes and orders canonical plan
// identifiers ("setores") of the cleaning contract. A setor code is a
// fixed positional grammar: subprefeitura (2 letters), turno (1 digit),
// frequência (4 digits), serviço (2 letters), mapa (4 digits), e.g.
// CV10500GO0015.
package setor

import (
	"regexp"
	"strings"
)

// Regions are the four fixed subprefeitura prefixes a setor may carry.
var Regions = []string{"CV", "JT", "MG", "ST"}

var regionSet = map[string]bool{"CV": true, "JT": true, "MG": true, "ST": true}

// Setor holds the parsed fields of a canonical plan identifier.
type Setor struct {
	Region        string `json:"region"`
	Shift         string `json:"shift"`
	FrequencyCode string `json:"frequency_code"`
	ServiceCode   string `json:"service_code"`
	MapNumber     string `json:"map_number"`
}

// SortKey is the total-order key over setor codes: region, then
// service code, then map number. Turno and frequency never participate
// in ordering.
type SortKey struct {
	Region  string
	Service string
	Map     string
}

var (
	grammarRe = regexp.MustCompile(`^(CV|JT|MG|ST)(\d)(\d{4})([A-Z]{2})(\d{4})`)

	// Trailing annotations operators append by hand on the sheets.
	suffixRe  = regexp.MustCompile(`(?i)[\s-]*\b(novo|obs\b.*)\s*$`)
	weekdayRe = regexp.MustCompile(`(?i)[\s-]*\b(segunda|ter[cç]a|quarta|quinta|sexta|s[aá]bado|domingo)(-feira)?\s*$`)

	// Scavenging patterns for codes that fail the strict grammar.
	lastMapRe     = regexp.MustCompile(`(\d{4})\D*$`)
	serviceRunRe  = regexp.MustCompile(`([A-Z]{2})\d{4}`)
	leadRegionRe  = regexp.MustCompile(`^([A-Z]{2})`)
	unknownMapKey = "9999"
)

// Normalize strips the hand-written suffixes (" - NOVO", " - OBS ...",
// weekday names) a setor code accumulates on the spreadsheets, so that
// two rows differing only by such a suffix resolve to the same plan.
// Idempotent.
func Normalize(code string) string {
	s := strings.TrimSpace(code)
	s = suffixRe.ReplaceAllString(s, "")
	s = weekdayRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Parse matches the strict grammar against the upper-cased, trimmed
// input. Returns nil when the region prefix is unknown or the grammar
// does not match; there is no partial matching.
func Parse(code string) *Setor {
	s := strings.ToUpper(strings.TrimSpace(code))
	m := grammarRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return &Setor{
		Region:        m[1],
		Shift:         m[2],
		FrequencyCode: m[3],
		ServiceCode:   m[4],
		MapNumber:     m[5],
	}
}

// RegionOf returns the two-letter region prefix of a code when it is
// one of the known subprefeituras, else "".
func RegionOf(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	if len(s) >= 2 && regionSet[s[:2]] {
		return s[:2]
	}
	return ""
}

// Key derives the ordering key for an arbitrary string. Codes that
// parse use their exact fields; anything else falls back to regex
// scavenging so that every string still gets a total order. The
// fallback never fails.
func Key(code string) SortKey {
	s := strings.ToUpper(strings.TrimSpace(Normalize(code)))
	if p := Parse(s); p != nil {
		return SortKey{Region: p.Region, Service: p.ServiceCode, Map: p.MapNumber}
	}

	k := SortKey{Map: unknownMapKey}
	if m := lastMapRe.FindStringSubmatch(s); m != nil {
		k.Map = m[1]
	}
	if m := serviceRunRe.FindStringSubmatch(s); m != nil {
		k.Service = m[1]
	}
	if m := leadRegionRe.FindStringSubmatch(s); m != nil && regionSet[m[1]] {
		k.Region = m[1]
	}
	return k
}

// Compare orders two setor codes by (region, service, map). direction
// < 0 reverses the order. Returns <0, 0 or >0.
func Compare(a, b string, direction int) int {
	ka, kb := Key(a), Key(b)
	c := strings.Compare(ka.Region, kb.Region)
	if c == 0 {
		c = strings.Compare(ka.Service, kb.Service)
	}
	if c == 0 {
		c = strings.Compare(ka.Map, kb.Map)
	}
	if direction < 0 {
		return -c
	}
	return c
}
