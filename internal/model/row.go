// Package model holds the shared domain types exchanged between
// ingestion, storage, reconciliation and scoring.
package model

import "time"

// FileType identifies which spreadsheet source a row came from.
type FileType string

const (
	// FileTypeSELIMP is the externally supplied execution report,
	// authoritative for percentage-of-execution values.
	FileTypeSELIMP FileType = "selimp"
	// FileTypeInternal is the fiscalização team's own tracking sheet,
	// used to cross-check the SELIMP report.
	FileTypeInternal FileType = "interno"
	// FileTypeSchedule is the maintained one-off execution schedule
	// for the services that do not follow a frequency code.
	FileTypeSchedule FileType = "cronograma"
)

// KnownFileTypes lists every ingestable spreadsheet source.
var KnownFileTypes = []FileType{FileTypeSELIMP, FileTypeInternal, FileTypeSchedule}

// ParseFileType maps a user-facing type name to a FileType.
func ParseFileType(s string) (FileType, bool) {
	for _, ft := range KnownFileTypes {
		if string(ft) == s {
			return ft, true
		}
	}
	return "", false
}

// Row is one ingested spreadsheet row: the canonicalized raw cell map
// plus the fields resolved at ingestion time. Rows are immutable once
// built; re-ingesting the same RecordKey overwrites the stored copy.
type Row struct {
	FileType  FileType          `json:"file_type"`
	RecordKey string            `json:"record_key"`
	Setor     string            `json:"setor,omitempty"`
	RefDate   *time.Time        `json:"ref_date,omitempty"`
	Raw       map[string]string `json:"raw"`
}

// ScheduleEntry is one authoritative expected execution: the services
// with a maintained one-off schedule declare, per setor, the exact
// dates on which execution is owed.
type ScheduleEntry struct {
	Service      string    `json:"service"`
	Setor        string    `json:"setor"`
	ExpectedDate time.Time `json:"expected_date"`
}

// UploadSummary is the upload boundary's per-file result.
type UploadSummary struct {
	Processed  int       `json:"processed"`
	Total      int       `json:"total"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Duplicates int       `json:"duplicates"`
	Errors     int       `json:"errors"`
	LastImport time.Time `json:"last_import_timestamp"`
}
