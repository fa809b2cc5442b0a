package model

import "time"

// Ticket is a service-request record (CSV collaborator source),
// counted by the scorer's attendance indicator.
type Ticket struct {
	Protocol   string     `json:"protocol"`
	Service    string     `json:"service"`
	OpenedAt   time.Time  `json:"opened_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
}

// Inspection is one fiscalização bulletin, counted by the conformity
// indicator.
type Inspection struct {
	Bulletin    string    `json:"bulletin"`
	Setor       string    `json:"setor"`
	InspectedAt time.Time `json:"inspected_at"`
	Conform     bool      `json:"conform"`
}

// Complaint is one registered citizen complaint, counted by the
// complaint-avoidance indicator.
type Complaint struct {
	Protocol     string    `json:"protocol"`
	Service      string    `json:"service"`
	RegisteredAt time.Time `json:"registered_at"`
}

// PeriodCounts carries the collaborator tallies for one scoring
// period.
type PeriodCounts struct {
	TicketsTotal     int `json:"tickets_total"`
	TicketsOnTime    int `json:"tickets_on_time"`
	InspectionsTotal int `json:"inspections_total"`
	InspectionsOK    int `json:"inspections_ok"`
	ServicesRendered int `json:"services_rendered"`
	ComplaintsTotal  int `json:"complaints_total"`
}
