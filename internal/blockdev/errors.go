package blockdev

import (
	"fmt"
	"strings"
)

// ExtractionError reports a failure to attach, mount or read a disk image.
type ExtractionError struct {
	Reason     Reason
	Device     string
	Path       string
	Candidates []string
	Err        error
}

func (e *ExtractionError) Error() string {
	msg := string(e.Reason)
	if e.Device != "" {
		msg += " [" + e.Device + "]"
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Candidates != nil {
		msg += fmt.Sprintf(" (found %d: %s)", len(e.Candidates), strings.Join(e.Candidates, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type Reason string

const (
	ReasonNotRoot       Reason = "block device access requires root"
	ReasonAttach        Reason = "attaching image to block device failed"
	ReasonDetach        Reason = "detaching block device failed"
	ReasonMount         Reason = "mounting partition failed"
	ReasonUnmount       Reason = "unmounting partition failed"
	ReasonNotExactlyOne Reason = "expected exactly one non-rescue boot file"
	ReasonCopy          Reason = "copying boot file failed"
)
