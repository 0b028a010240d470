package pipeline

import "fmt"

// Phase names reported in PipelineError.
const (
	PhaseLoad   = "load"
	PhaseFilter = "filter"
	PhaseJoin   = "join"
	PhaseDerive = "derive"
)

// DataLoadError reports a source that could not be read, parsed or
// reprojected. It aborts the run; no partial result is returned.
type DataLoadError struct {
	Layer string
	Path  string
	Err   error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load %s layer from %s: %s", e.Layer, e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
