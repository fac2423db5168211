package idxmigrate

import "time"

// Service identifies a search service. Endpoint, when set, replaces the
// https://<Name>.search.windows.net default.
type Service struct {
	Name       string
	Endpoint   string
	APIKey     string
	APIVersion string
	Timeout    time.Duration
}

// Outcome classifies an index migration or a whole run.
type Outcome string

// Outcome constants.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
)

// RunSummary is the result of one run.
type RunSummary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Outcome  Outcome
	Synonyms SynonymResult
	Indexes  []IndexReport
	Error    string // set when the run aborted before finishing every index
}

// SynonymResult describes the synonym map copy.
type SynonymResult struct {
	Name    string
	Found   bool
	Created bool
	Errors  []string
}

// IndexReport describes what happened to one index.
type IndexReport struct {
	Index         string
	Stage         string // last stage reached
	Outcome       Outcome
	SourceCount   int64
	TargetCount   int64
	CountsMatch   bool
	PagesTotal    int
	PagesFailed   int
	DocsExported  int
	FilesStaged   int
	FilesImported int
	FilesFailed   int
	DocsRejected  int
	GeoWarnings   int
	Errors        []string
	Duration      time.Duration
}

// HealthStatus represents the aggregated health of both services and the stage.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}
