package resolve

// Result is the outcome of resolving one architecture of a distribution.
type Result struct {
	Version           string
	SourceURL         string
	ArtifactFilename  string
	KernelFilename    string
	InitramfsFilename string
	// Compressed is set when the source must be decompressed after download.
	Compressed bool
}

// Validate makes sure that no partially populated result leaves a resolver.
func (r Result) Validate() error {
	fields := []struct{ name, value string }{
		{"version", r.Version},
		{"source url", r.SourceURL},
		{"artifact filename", r.ArtifactFilename},
		{"kernel filename", r.KernelFilename},
		{"initramfs filename", r.InitramfsFilename},
	}
	for _, f := range fields {
		if f.value == "" {
			return &ResolutionError{Reason: ReasonIncomplete, Details: f.name + " is empty"}
		}
	}

	return nil
}
