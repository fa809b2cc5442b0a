// Package indicator converts the reconciled execution percentages and
// the collaborator counts into the four contract performance scores
// and the payment discount they compose into.
package indicator

import (
	"github.com/shopspring/decimal"

	"github.com/limpurb/fiscal-cli/internal/model"
)

// bracket is one step of a score table: value >= From earns Points.
type bracket struct {
	From   float64
	Points int
}

// The four step tables are fixed contract constants. Each is ordered
// by descending From and is monotone non-decreasing in value.
var (
	// planExecutionTable scores the reconciled execution percentage
	// directly (0..100).
	planExecutionTable = []bracket{
		{90, 40}, {85, 38}, {80, 35}, {75, 30}, {70, 25},
		{60, 20}, {50, 15}, {40, 10}, {30, 5},
	}

	// The remaining indicators score a ratio scaled by 1000.
	ticketAttendanceTable = []bracket{
		{950, 20}, {900, 18}, {850, 15}, {800, 12}, {700, 8}, {600, 4},
	}
	inspectionConformityTable = []bracket{
		{950, 20}, {900, 18}, {850, 15}, {800, 12}, {700, 8}, {600, 4},
	}
	complaintAvoidanceTable = []bracket{
		{950, 20}, {900, 18}, {850, 15}, {800, 12}, {700, 8}, {600, 4},
	}
)

func lookup(table []bracket, value float64) int {
	for _, b := range table {
		if value >= b.From {
			return b.Points
		}
	}
	return 0
}

// Result is one indicator's outcome.
type Result struct {
	Name    string   `json:"name"`
	Value   float64  `json:"value"`
	Percent *float64 `json:"percent,omitempty"`
	Points  int      `json:"points"`
}

// ScorePlanExecution scores the plan-execution percentage (IEP). The
// value is the percentage itself, not a scaled ratio.
func ScorePlanExecution(percent float64) Result {
	p := percent
	return Result{
		Name:    "execucao_planos",
		Value:   percent,
		Percent: &p,
		Points:  lookup(planExecutionTable, percent),
	}
}

// ScoreTicketAttendance scores on-time service-request resolution.
// An empty period scores zero, not an error.
func ScoreTicketAttendance(onTime, total int) Result {
	return ratioResult("atendimento_solicitacoes", ticketAttendanceTable, onTime, total)
}

// ScoreInspectionConformity scores conform fiscalização bulletins.
func ScoreInspectionConformity(conform, total int) Result {
	return ratioResult("conformidade_vistorias", inspectionConformityTable, conform, total)
}

// ScoreComplaintAvoidance scores services rendered without a
// registered complaint.
func ScoreComplaintAvoidance(complaints, services int) Result {
	clean := services - complaints
	if clean < 0 {
		clean = 0
	}
	return ratioResult("ausencia_reclamacoes", complaintAvoidanceTable, clean, services)
}

func ratioResult(name string, table []bracket, num, den int) Result {
	if den <= 0 {
		return Result{Name: name}
	}
	value := float64(num) / float64(den) * 1000
	pct := value / 10
	return Result{
		Name:    name,
		Value:   value,
		Percent: &pct,
		Points:  lookup(table, value),
	}
}

// Score is the composed scoring-boundary output.
type Score struct {
	Indicators []Result `json:"indicators"`
	Total      int      `json:"total"`
	// Discount is the share of the contract value payable, in
	// percent (70..100).
	Discount float64 `json:"discount_percent"`
}

// Compose runs all four indicators and folds them into the discount
// curve. planExecutionPercent is the reconciled (or operator
// supplied) execution percentage; counts carry the collaborator
// tallies for the period.
func Compose(planExecutionPercent float64, counts model.PeriodCounts) Score {
	indicators := []Result{
		ScorePlanExecution(planExecutionPercent),
		ScoreTicketAttendance(counts.TicketsOnTime, counts.TicketsTotal),
		ScoreInspectionConformity(counts.InspectionsOK, counts.InspectionsTotal),
		ScoreComplaintAvoidance(counts.ComplaintsTotal, counts.ServicesRendered),
	}
	total := 0
	for _, r := range indicators {
		total += r.Points
	}
	return Score{
		Indicators: indicators,
		Total:      total,
		Discount:   Discount(total),
	}
}

// Discount maps a total point score onto the contract payment curve.
// Pure and total over the real line: every input yields a percentage
// between 70 and 100.
func Discount(totalPoints int) float64 {
	s := decimal.NewFromInt(int64(totalPoints))
	hundred := decimal.NewFromInt(100)

	switch {
	case totalPoints >= 90:
		return 100
	case totalPoints >= 70:
		// 0.20% per point below 90, never under 95%.
		v := hundred.Sub(decimal.NewFromFloat(0.20).Mul(decimal.NewFromInt(90).Sub(s)))
		return toPct(maxDec(v, decimal.NewFromInt(95)))
	case totalPoints >= 50:
		// 0.25% per point below 70, continuing from that bracket's
		// 70-point value, never under 90%.
		v := decimal.NewFromInt(96).Sub(decimal.NewFromFloat(0.25).Mul(decimal.NewFromInt(70).Sub(s)))
		return toPct(maxDec(v, decimal.NewFromInt(90)))
	case totalPoints >= 30:
		// 0.5% per point below 50, never under 80%.
		v := decimal.NewFromInt(91).Sub(decimal.NewFromFloat(0.5).Mul(decimal.NewFromInt(50).Sub(s)))
		return toPct(maxDec(v, decimal.NewFromInt(80)))
	default:
		return 70
	}
}

func maxDec(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func toPct(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
