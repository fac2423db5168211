package domain

import "time"

// Outcome is the result classification of an index migration or a whole run.
type Outcome string

// Outcome values.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
)

// Stage is a step of the per-index state machine.
type Stage string

// Per-index stages in execution order.
const (
	StagePending         Stage = "pending"
	StageSchemaFetched   Stage = "schema_fetched"
	StageExtracting      Stage = "extracting"
	StageTargetRecreated Stage = "target_recreated"
	StageImporting       Stage = "importing"
	StageVerifying       Stage = "verifying"
	StageDone            Stage = "done"
)

// IndexReport records what happened to one index during a run.
type IndexReport struct {
	Index         string        `json:"index"`
	Stage         Stage         `json:"stage"`
	Outcome       Outcome       `json:"outcome"`
	SourceCount   int64         `json:"source_count"`
	TargetCount   int64         `json:"target_count"`
	CountsMatch   bool          `json:"counts_match"`
	PagesTotal    int           `json:"pages_total"`
	PagesFailed   int           `json:"pages_failed"`
	DocsExported  int           `json:"docs_exported"`
	FilesStaged   int           `json:"files_staged"`
	FilesImported int           `json:"files_imported"`
	FilesFailed   int           `json:"files_failed"`
	DocsRejected  int           `json:"docs_rejected"`
	GeoWarnings   int           `json:"geo_warnings"`
	Errors        []string      `json:"errors,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// AddError records a non-fatal error and downgrades the outcome to partial.
func (r *IndexReport) AddError(err error) {
	r.Errors = append(r.Errors, err.Error())
	if r.Outcome != OutcomeFailed {
		r.Outcome = OutcomePartial
	}
}

// Fail records a fatal error for this index.
func (r *IndexReport) Fail(err error) {
	r.Errors = append(r.Errors, err.Error())
	r.Outcome = OutcomeFailed
}

// SynonymResult records the synonym map copy.
type SynonymResult struct {
	Name    string   `json:"name"`
	Found   bool     `json:"found"`
	Created bool     `json:"created"`
	Errors  []string `json:"errors,omitempty"`
}

// RunSummary aggregates a whole run.
type RunSummary struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Synonyms SynonymResult `json:"synonyms"`
	Indexes  []IndexReport `json:"indexes"`
	Error    string        `json:"error,omitempty"`
}

// Outcome folds index outcomes: any failure or partial downgrades the run.
func (s RunSummary) Outcome() Outcome {
	if s.Error != "" {
		return OutcomeFailed
	}
	out := OutcomeSucceeded
	if len(s.Synonyms.Errors) > 0 {
		out = OutcomePartial
	}
	failed := 0
	for _, r := range s.Indexes {
		switch r.Outcome {
		case OutcomeFailed:
			failed++
			out = OutcomePartial
		case OutcomePartial:
			out = OutcomePartial
		}
	}
	if failed > 0 && failed == len(s.Indexes) {
		return OutcomeFailed
	}
	return out
}
