package fetch

import "fmt"

// FetchError reports a failed download or decompression.
// Partial files are left on disk for inspection.
type FetchError struct {
	Reason Reason
	URL    string
	Path   string
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Reason, e.URL)
	if e.Path != "" {
		msg += " -> " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Reason string

const (
	ReasonTransfer               Reason = "download failed"
	ReasonHTTPStatus             Reason = "unexpected HTTP status"
	ReasonUnsupportedCompression Reason = "unsupported compression"
	ReasonDecompress             Reason = "decompression failed"
	ReasonFilesystem             Reason = "filesystem operation failed"
)
