package containerdisk

import "context"

// Publisher builds every architecture image of a family and then pushes
// them together with one manifest list per tag.
type Publisher interface {
	Build(ctx context.Context, f *ImageFamily) error
	Push(ctx context.Context, f *ImageFamily) error
}

// Inspector looks up remote references.
type Inspector interface {
	// Inspect returns the raw manifest of ref, or nil if ref does not exist.
	Inspect(ctx context.Context, ref string) ([]byte, error)
}
