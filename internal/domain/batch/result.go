package batch

// FileStatus is the import outcome of a single staged file.
type FileStatus string

// Staged file status values.
const (
	StatusOK      FileStatus = "ok"
	StatusPartial FileStatus = "partial" // 207: some documents rejected
	StatusError   FileStatus = "error"
)

// Result is the outcome of importing one staged file.
type Result struct {
	name     string
	status   FileStatus
	docs     int
	rejected int
	err      error
}

// NewOK creates a result for a file whose documents were all accepted.
func NewOK(name string, docs int) Result {
	return Result{name: name, status: StatusOK, docs: docs}
}

// NewPartial creates a result for a file the service accepted with per-document rejections.
func NewPartial(name string, docs, rejected int) Result {
	return Result{name: name, status: StatusPartial, docs: docs, rejected: rejected}
}

// NewError creates a failed file result.
func NewError(name string, err error) Result {
	return Result{name: name, status: StatusError, err: err}
}

// Name returns the staged file name.
func (r Result) Name() string { return r.name }

// Status returns the import outcome.
func (r Result) Status() FileStatus { return r.status }

// Docs returns the number of documents sent.
func (r Result) Docs() int { return r.docs }

// Rejected returns the number of documents the service refused.
func (r Result) Rejected() int { return r.rejected }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
