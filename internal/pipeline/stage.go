package pipeline

import "fmt"

// Stage is a state of the pipeline of one distribution.
type Stage string

const (
	StageResolvingVersions   Stage = "ResolvingVersions"
	StageCheckingIdempotency Stage = "CheckingIdempotency"
	StageFetching            Stage = "Fetching"
	StageExtracting          Stage = "Extracting"
	StageBuilding            Stage = "Building"
	StagePublishing          Stage = "Publishing"
	StageDone                Stage = "Done"
)

// StageError identifies the distribution and stage a run failed in.
type StageError struct {
	Distribution string
	Stage        Stage
	Err          error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: stage %s failed: %v", e.Distribution, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
