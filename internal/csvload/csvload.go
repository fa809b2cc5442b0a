// Package csvload ingests the collaborator CSV exports (service
// tickets, inspection bulletins and citizen complaints) that feed the
// indicator counts.
package csvload

import (
	"context"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/limpurb/fiscal-cli/internal/model"
	"github.com/limpurb/fiscal-cli/internal/store"
	"github.com/limpurb/fiscal-cli/internal/workbook"
)

// Kind names a collaborator CSV source.
type Kind string

const (
	KindTickets     Kind = "chamados"
	KindInspections Kind = "vistorias"
	KindComplaints  Kind = "reclamacoes"
)

// KnownKinds lists every loadable CSV source.
var KnownKinds = []Kind{KindTickets, KindInspections, KindComplaints}

// ParseKind maps a user-facing source name to a Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range KnownKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Date wraps time.Time so gocsv can decode the export's mixed ISO and
// Brazilian date formats.
type Date struct {
	time.Time
}

// UnmarshalCSV implements gocsv's field decoding.
func (d *Date) UnmarshalCSV(cell string) error {
	if cell == "" {
		d.Time = time.Time{}
		return nil
	}
	t, ok := workbook.ParseDate(cell)
	if !ok {
		return eris.Errorf("csvload: unparseable date %q", cell)
	}
	d.Time = t
	return nil
}

type ticketRecord struct {
	Protocol   string `csv:"protocolo"`
	Service    string `csv:"servico"`
	OpenedAt   Date   `csv:"data_abertura"`
	ResolvedAt Date   `csv:"data_resolucao"`
	Deadline   Date   `csv:"prazo"`
}

type inspectionRecord struct {
	Bulletin    string `csv:"boletim"`
	Setor       string `csv:"setor"`
	InspectedAt Date   `csv:"data_vistoria"`
	Conform     string `csv:"conforme"`
}

type complaintRecord struct {
	Protocol     string `csv:"protocolo"`
	Service      string `csv:"servico"`
	RegisteredAt Date   `csv:"data_registro"`
}

// Loader ingests collaborator CSV files into the store.
type Loader struct {
	store store.Store
}

// New creates a Loader.
func New(st store.Store) *Loader {
	return &Loader{store: st}
}

// File loads one CSV file of the given kind and returns the number of
// records upserted.
func (l *Loader) File(ctx context.Context, path string, kind Kind) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "csvload: open %s", path)
	}
	defer f.Close()

	var n int64
	switch kind {
	case KindTickets:
		var recs []ticketRecord
		if err := gocsv.Unmarshal(f, &recs); err != nil {
			return 0, eris.Wrapf(err, "csvload: decode %s", path)
		}
		n, err = l.store.UpsertTickets(ctx, toTickets(recs))
	case KindInspections:
		var recs []inspectionRecord
		if err := gocsv.Unmarshal(f, &recs); err != nil {
			return 0, eris.Wrapf(err, "csvload: decode %s", path)
		}
		n, err = l.store.UpsertInspections(ctx, toInspections(recs))
	case KindComplaints:
		var recs []complaintRecord
		if err := gocsv.Unmarshal(f, &recs); err != nil {
			return 0, eris.Wrapf(err, "csvload: decode %s", path)
		}
		n, err = l.store.UpsertComplaints(ctx, toComplaints(recs))
	default:
		return 0, eris.Errorf("csvload: unknown kind %q", kind)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "csvload: persist %s", kind)
	}

	zap.L().Info("csv loaded", zap.String("kind", string(kind)), zap.String("path", path), zap.Int64("records", n))
	return n, nil
}

func toTickets(recs []ticketRecord) []model.Ticket {
	out := make([]model.Ticket, 0, len(recs))
	for _, r := range recs {
		tk := model.Ticket{
			Protocol: r.Protocol,
			Service:  r.Service,
			OpenedAt: r.OpenedAt.Time,
		}
		if !r.ResolvedAt.IsZero() {
			t := r.ResolvedAt.Time
			tk.ResolvedAt = &t
		}
		if !r.Deadline.IsZero() {
			t := r.Deadline.Time
			tk.Deadline = &t
		}
		out = append(out, tk)
	}
	return out
}

func toInspections(recs []inspectionRecord) []model.Inspection {
	out := make([]model.Inspection, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.Inspection{
			Bulletin:    r.Bulletin,
			Setor:       r.Setor,
			InspectedAt: r.InspectedAt.Time,
			Conform:     conform(r.Conform),
		})
	}
	return out
}

func toComplaints(recs []complaintRecord) []model.Complaint {
	out := make([]model.Complaint, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.Complaint{
			Protocol:     r.Protocol,
			Service:      r.Service,
			RegisteredAt: r.RegisteredAt.Time,
		})
	}
	return out
}

// conform interprets the export's yes/no column, which shows up as
// "sim"/"não", "s"/"n" or "1"/"0" depending on who generated the file.
func conform(cell string) bool {
	switch workbook.Canonical(cell) {
	case "sim", "s", "1", "conforme", "ok", "true":
		return true
	}
	return false
}
