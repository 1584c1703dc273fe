package resolve

import (
	"fmt"
	"strings"
)

// ResolutionError reports that no usable upstream index or no unique
// matching artifact was found for an architecture.
type ResolutionError struct {
	Reason     Reason
	Arch       string   // Arch is the upstream architecture slug being resolved.
	Details    string   // Details describes what was searched for.
	Candidates []string // Candidates lists whatever matched, if anything did.
	Err        error
}

func (e *ResolutionError) Error() string {
	msg := string(e.Reason)
	if e.Arch != "" {
		msg += fmt.Sprintf(" [%s]", e.Arch)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if len(e.Candidates) > 0 {
		msg += fmt.Sprintf(" (found %d: %s)", len(e.Candidates), strings.Join(e.Candidates, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

type Reason string

const (
	ReasonNoIndex          Reason = "no valid index found"
	ReasonNoDatedDirectory Reason = "no dated directory found"
	ReasonNotExactlyOne    Reason = "expected exactly one matching artifact"
	ReasonNoRelease        Reason = "no release found"
	ReasonNoAsset          Reason = "no matching release asset found"
	ReasonUnexpectedName   Reason = "artifact name does not follow the expected schema"
	ReasonIncomplete       Reason = "resolution result incomplete"
)
