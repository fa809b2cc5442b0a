package reconcile

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/limpurb/fiscal-cli/internal/calendar"
	"github.com/limpurb/fiscal-cli/internal/model"
	"github.com/limpurb/fiscal-cli/internal/setor"
	"github.com/limpurb/fiscal-cli/internal/workbook"
)

// planAcc is the mutable per-plan accumulator. The builder owns every
// accumulator and every bucket; nothing outside the package holds a
// reference into them.
type planAcc struct {
	setorCode string
	parsed    *setor.Setor
	region    string
	service   string
	equipment map[string]bool
	days      map[string]*DailyBucket
}

type builder struct {
	opts          Options
	plans         map[string]*planAcc
	scheduleDates map[string][]time.Time // normalized setor -> sorted expected dates
	internalDates map[string][]time.Time // normalized setor -> observed internal dates
}

// Aggregate runs the one-pass reconciliation: schedule seeding, the
// SELIMP merge, the internal merge, then scope filtering and rollups.
func Aggregate(in Input, opts Options) *Result {
	b := &builder{
		opts:          opts,
		plans:         make(map[string]*planAcc),
		scheduleDates: make(map[string][]time.Time),
		internalDates: make(map[string][]time.Time),
	}

	b.seedSchedule(in.Schedule)
	b.indexInternalDates(in.Internal)

	selimpCfg, _ := workbook.ConfigFor(model.FileTypeSELIMP)
	for i := range in.Selimp {
		b.mergeSelimp(&in.Selimp[i], selimpCfg)
	}

	internalCfg, _ := workbook.ConfigFor(model.FileTypeInternal)
	for i := range in.Internal {
		b.mergeInternal(&in.Internal[i], internalCfg)
	}

	return b.result()
}

// seedSchedule materializes a plan for every scheduled setor, so a
// planned-but-undispatched plan still shows up in the report.
func (b *builder) seedSchedule(entries []model.ScheduleEntry) {
	for _, e := range entries {
		code := setor.Normalize(e.Setor)
		if code == "" {
			continue
		}
		p := b.plan(code)
		if p.service == "" {
			p.service = strings.TrimSpace(e.Service)
		}
		b.scheduleDates[code] = append(b.scheduleDates[code], day(e.ExpectedDate))
	}
	for code := range b.scheduleDates {
		dates := b.scheduleDates[code]
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		b.scheduleDates[code] = dates
	}
}

func (b *builder) indexInternalDates(rows []model.Row) {
	for i := range rows {
		r := &rows[i]
		if r.Setor == "" || r.RefDate == nil {
			continue
		}
		code := setor.Normalize(r.Setor)
		b.internalDates[code] = append(b.internalDates[code], day(*r.RefDate))
	}
	for code := range b.internalDates {
		dates := b.internalDates[code]
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		b.internalDates[code] = dates
	}
}

func (b *builder) plan(code string) *planAcc {
	if p, ok := b.plans[code]; ok {
		return p
	}
	p := &planAcc{
		setorCode: code,
		parsed:    setor.Parse(code),
		equipment: make(map[string]bool),
		days:      make(map[string]*DailyBucket),
	}
	if p.parsed != nil {
		p.region = p.parsed.Region
	} else {
		p.region = setor.RegionOf(code)
	}
	b.plans[code] = p
	return p
}

func (b *builder) mergeSelimp(r *model.Row, cfg workbook.SourceConfig) {
	if r.Setor == "" {
		zap.L().Debug("selimp row without plan identifier skipped")
		return
	}
	pct, ok := workbook.ParsePercent(workbook.PercentCell(r.Raw, cfg))
	if !ok {
		zap.L().Debug("selimp row without percentage skipped", zap.String("setor", r.Setor))
		return
	}

	code := setor.Normalize(r.Setor)
	p := b.plan(code)
	b.backfill(p, r, cfg)

	d, estimated := b.resolveDate(p, r, cfg)
	bucket := b.bucket(p, d)
	bucket.SelimpSum += pct
	bucket.SelimpCount++
	bucket.SelimpDispatches++
	if estimated {
		bucket.Estimated++
	}
}

func (b *builder) mergeInternal(r *model.Row, cfg workbook.SourceConfig) {
	if r.Setor == "" {
		zap.L().Debug("internal row without plan identifier skipped")
		return
	}
	if r.RefDate == nil {
		// Inference applies only to the report source; an internal
		// row without a date has nothing to anchor on.
		zap.L().Debug("internal row without date skipped", zap.String("setor", r.Setor))
		return
	}
	pct, ok := workbook.ParsePercent(workbook.PercentCell(r.Raw, cfg))
	if !ok {
		zap.L().Debug("internal row without percentage skipped", zap.String("setor", r.Setor))
		return
	}

	code := setor.Normalize(r.Setor)
	p := b.plan(code)
	b.backfill(p, r, cfg)

	bucket := b.bucket(p, day(*r.RefDate))
	bucket.InternalSum += pct
	bucket.InternalCount++
	bucket.InternalDispatches++
}

// backfill fills plan fields the schedule seeding could not know and
// merges equipment codes.
func (b *builder) backfill(p *planAcc, r *model.Row, cfg workbook.SourceConfig) {
	if p.service == "" {
		p.service = workbook.First(r.Raw, cfg.ServiceAliases)
	}
	if p.region == "" {
		p.region = setor.RegionOf(workbook.First(r.Raw, cfg.RegionAliases))
	}
	if eq := workbook.First(r.Raw, cfg.EquipmentAliases); eq != "" {
		p.equipment[eq] = true
	}
}

// resolveDate applies the inference ladder for a report row: the
// row's own date, then the nearest internal observation for the same
// plan, then the calendar's previous expected run, then the scope
// reference as a last resort. Everything past the first step counts
// as estimated.
func (b *builder) resolveDate(p *planAcc, r *model.Row, cfg workbook.SourceConfig) (time.Time, bool) {
	flagged := needsEstimate(r, cfg)
	if r.RefDate != nil && !flagged {
		return day(*r.RefDate), false
	}

	ref := b.opts.Scope.Reference()

	if got, ok := calendar.Nearest(ref, b.internalDates[p.setorCode], b.opts.tolerance()); ok {
		return day(got), true
	}

	if p.parsed != nil {
		if calendar.IsExpected(p.parsed.FrequencyCode, ref) {
			return ref, true
		}
		if got, ok := calendar.PreviousExpected(p.parsed.FrequencyCode, ref); ok {
			return got, true
		}
	}

	return ref, true
}

func needsEstimate(r *model.Row, cfg workbook.SourceConfig) bool {
	status := workbook.Canonical(workbook.First(r.Raw, cfg.StatusAliases))
	return strings.Contains(status, "estim")
}

func (b *builder) bucket(p *planAcc, d time.Time) *DailyBucket {
	key := d.Format("2006-01-02")
	if bucket, ok := p.days[key]; ok {
		return bucket
	}
	bucket := &DailyBucket{Day: d}
	p.days[key] = bucket
	return bucket
}
