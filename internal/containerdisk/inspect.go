package containerdisk

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
)

var _ Inspector = (*RemoteInspector)(nil)

func NewRemoteInspector(opts ...RemoteInspectorOption) *RemoteInspector {
	var cfg RemoteInspectorConfig

	cfg.Option(opts...)
	cfg.Default()

	return &RemoteInspector{cfg: cfg}
}

type RemoteInspector struct {
	cfg RemoteInspectorConfig
}

type RemoteInspectorConfig struct {
	Log          logr.Logger
	CraneOptions []crane.Option
}

func (c *RemoteInspectorConfig) Option(opts ...RemoteInspectorOption) {
	for _, opt := range opts {
		opt.ConfigureRemoteInspector(c)
	}
}

func (c *RemoteInspectorConfig) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
}

type RemoteInspectorOption interface {
	ConfigureRemoteInspector(*RemoteInspectorConfig)
}

// Inspect fetches the manifest of ref.
// Unknown manifests and repositories are absent, and so are anonymous
// requests refused as unauthorized, which registries answer for
// repositories that do not exist yet.
func (i *RemoteInspector) Inspect(ctx context.Context, ref string) ([]byte, error) {
	opts := append(append([]crane.Option{}, i.cfg.CraneOptions...), crane.WithContext(ctx))

	manifest, err := crane.Manifest(ref, opts...)
	if err == nil {
		i.cfg.Log.Info("reference exists", "ref", ref)
		return manifest, nil
	}
	if absent(err) {
		i.cfg.Log.Info("reference absent", "ref", ref, "reason", err.Error())
		return nil, nil
	}

	return nil, &PublishError{Reason: ReasonInspect, Ref: ref, Err: err}
}

func absent(err error) bool {
	var terr *transport.Error
	if !errors.As(err, &terr) {
		return false
	}

	switch terr.StatusCode {
	case http.StatusNotFound, http.StatusUnauthorized:
		return true
	}
	for _, diag := range terr.Errors {
		switch diag.Code {
		case transport.ManifestUnknownErrorCode, transport.NameUnknownErrorCode, transport.UnauthorizedErrorCode:
			return true
		}
	}

	return false
}
