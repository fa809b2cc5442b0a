package reconcile

import (
	"sort"
	"time"

	"github.com/limpurb/fiscal-cli/internal/calendar"
	"github.com/limpurb/fiscal-cli/internal/setor"
)

func setorCompare(a, b string) int {
	return setor.Compare(a, b, 1)
}

func (b *builder) result() *Result {
	res := &Result{}

	codes := make([]string, 0, len(b.plans))
	for code := range b.plans {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		return setorCompare(codes[i], codes[j]) < 0
	})

	regionAcc := make(map[string]*rollupAcc)
	serviceAcc := make(map[string]*rollupAcc)

	for _, code := range codes {
		p := b.plans[code]
		if !b.visible(p) {
			continue
		}
		report := b.planReport(p)
		res.Plans = append(res.Plans, report)

		if report.Origin != OriginNone {
			res.Comparison.Total++
		}
		switch report.Origin {
		case OriginOnlySelimp:
			res.Comparison.OnlySelimp++
		case OriginOnlyInternal:
			res.Comparison.OnlyInternal++
		case OriginBoth:
			if report.SelimpPercent != nil && report.InternalPercent != nil {
				delta := *report.SelimpPercent - *report.InternalPercent
				if delta < 0 {
					delta = -delta
				}
				if delta >= DivergenceThreshold {
					res.Comparison.Divergent++
				}
			}
		}

		accumulateRollup(regionAcc, report.Region, report.SelimpPercent)
		accumulateRollup(serviceAcc, report.Service, report.SelimpPercent)
	}

	res.Regions = regionRollups(regionAcc)
	res.Services = serviceRollups(serviceAcc)
	return res
}

// inScope filters a plan's observed days down to the requested
// window.
func (b *builder) inScope(d time.Time) bool {
	s := b.opts.Scope
	switch s.Kind {
	case ScopePreviousDay:
		return d.Equal(s.yesterday())
	case ScopePeriod:
		return !d.Before(day(s.Start)) && !d.After(day(s.End))
	default:
		return true
	}
}

// visible applies the per-scope visibility rule: previous-day shows
// only plans expected yesterday; period shows plans with an in-range
// dispatch or an in-range expectation; all shows everything.
func (b *builder) visible(p *planAcc) bool {
	s := b.opts.Scope
	switch s.Kind {
	case ScopePreviousDay:
		return b.expectedOn(p, s.yesterday())
	case ScopePeriod:
		for _, bucket := range p.days {
			if b.inScope(bucket.Day) {
				return true
			}
		}
		for d := day(s.Start); !d.After(day(s.End)); d = d.AddDate(0, 0, 1) {
			if b.expectedOn(p, d) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// expectedOn answers "was this plan owed an execution on d": through
// the explicit schedule for scheduled services, through the frequency
// calendar otherwise.
func (b *builder) expectedOn(p *planAcc, d time.Time) bool {
	if b.isScheduled(p) {
		for _, sd := range b.scheduleDates[p.setorCode] {
			if sd.Equal(d) {
				return true
			}
		}
		return false
	}
	if p.parsed == nil {
		return false
	}
	return calendar.IsExpected(p.parsed.FrequencyCode, d)
}

func (b *builder) isScheduled(p *planAcc) bool {
	if len(b.scheduleDates[p.setorCode]) > 0 {
		return true
	}
	return p.parsed != nil && b.opts.scheduled()[p.parsed.ServiceCode]
}

func (b *builder) planReport(p *planAcc) PlanReport {
	report := PlanReport{
		Setor:   p.setorCode,
		Region:  p.region,
		Service: p.service,
	}
	if p.parsed != nil {
		report.Shift = p.parsed.Shift
		report.FrequencyCode = p.parsed.FrequencyCode
		report.MapNumber = p.parsed.MapNumber
		if report.Service == "" {
			report.Service = p.parsed.ServiceCode
		}
	}

	for eq := range p.equipment {
		report.Equipment = append(report.Equipment, eq)
	}
	sort.Strings(report.Equipment)

	keys := make([]string, 0, len(p.days))
	for k := range p.days {
		keys = append(keys, k)
	}
	sort.Strings(keys) // chronological: keys are ISO dates

	var selimpSum, internalSum float64
	for _, k := range keys {
		bucket := p.days[k]
		if !b.inScope(bucket.Day) {
			continue
		}

		dr := DayReport{
			Day:                bucket.Day,
			SelimpDispatches:   bucket.SelimpDispatches,
			InternalDispatches: bucket.InternalDispatches,
			Estimated:          bucket.Estimated,
		}
		if bucket.SelimpCount > 0 {
			mean := bucket.SelimpSum / float64(bucket.SelimpCount)
			dr.SelimpMean = &mean
		}
		if bucket.InternalCount > 0 {
			mean := bucket.InternalSum / float64(bucket.InternalCount)
			dr.InternalMean = &mean
		}
		report.Days = append(report.Days, dr)

		selimpSum += bucket.SelimpSum
		internalSum += bucket.InternalSum
		report.SelimpDispatches += bucket.SelimpDispatches
		report.InternalDispatches += bucket.InternalDispatches
		report.EstimatedDates += bucket.Estimated
	}

	// Plan-level percentage weights every dispatch equally: the sum
	// of daily sums over the dispatch count, so a ten-dispatch day is
	// not diluted down to the weight of a one-dispatch day.
	if report.SelimpDispatches > 0 {
		pct := selimpSum / float64(report.SelimpDispatches)
		report.SelimpPercent = &pct
	}
	if report.InternalDispatches > 0 {
		pct := internalSum / float64(report.InternalDispatches)
		report.InternalPercent = &pct
	}

	switch {
	case report.SelimpDispatches > 0 && report.InternalDispatches > 0:
		report.Origin = OriginBoth
	case report.SelimpDispatches > 0:
		report.Origin = OriginOnlySelimp
	case report.InternalDispatches > 0:
		report.Origin = OriginOnlyInternal
	default:
		report.Origin = OriginNone
	}

	ref := b.opts.Scope.Reference()
	report.NextExpected = b.nextExpected(p, ref)
	report.CalendarPreview = b.preview(p, ref)

	return report
}

func (b *builder) nextExpected(p *planAcc, ref time.Time) *time.Time {
	if b.isScheduled(p) {
		for _, sd := range b.scheduleDates[p.setorCode] {
			if sd.After(ref) {
				d := sd
				return &d
			}
		}
		return nil
	}
	if p.parsed == nil {
		return nil
	}
	if d, ok := calendar.NextExpected(p.parsed.FrequencyCode, ref); ok {
		return &d
	}
	return nil
}

// preview returns the five-day expectation window around the scope
// reference: two days before, the reference, two after.
func (b *builder) preview(p *planAcc, ref time.Time) []CalendarDay {
	out := make([]CalendarDay, 0, 5)
	for off := -2; off <= 2; off++ {
		d := ref.AddDate(0, 0, off)
		out = append(out, CalendarDay{Day: d, Expected: b.expectedOn(p, d)})
	}
	return out
}

type rollupAcc struct {
	plans int
	sum   float64
	withA int
}

func accumulateRollup(acc map[string]*rollupAcc, key string, selimpPct *float64) {
	a, ok := acc[key]
	if !ok {
		a = &rollupAcc{}
		acc[key] = a
	}
	a.plans++
	if selimpPct != nil {
		a.sum += *selimpPct
		a.withA++
	}
}

func regionRollups(acc map[string]*rollupAcc) []RegionRollup {
	keys := sortedKeys(acc)
	out := make([]RegionRollup, 0, len(keys))
	for _, k := range keys {
		r := RegionRollup{Region: k, Plans: acc[k].plans}
		if acc[k].withA > 0 {
			mean := acc[k].sum / float64(acc[k].withA)
			r.SelimpPercent = &mean
		}
		out = append(out, r)
	}
	return out
}

func serviceRollups(acc map[string]*rollupAcc) []ServiceRollup {
	keys := sortedKeys(acc)
	out := make([]ServiceRollup, 0, len(keys))
	for _, k := range keys {
		r := ServiceRollup{Service: k, Plans: acc[k].plans}
		if acc[k].withA > 0 {
			mean := acc[k].sum / float64(acc[k].withA)
			r.SelimpPercent = &mean
		}
		out = append(out, r)
	}
	return out
}

func sortedKeys(acc map[string]*rollupAcc) []string {
	keys := make([]string, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
