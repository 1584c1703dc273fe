package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveStage(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveStage("debian-bookworm", "Fetching", 2*time.Second, nil)
	r.ObserveStage("debian-bookworm", "Fetching", time.Second, nil)
	r.ObserveStage("debian-bookworm", "Extracting", time.Second, errors.New("boom"))

	assert.Equal(t, float64(2), testutil.ToFloat64(r.stageRuns.WithLabelValues("debian-bookworm", "Fetching", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.stageRuns.WithLabelValues("debian-bookworm", "Extracting", "failure")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.stageDuration))
}

func TestRecorder_UpToDateAndDownloads(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.SetUpToDate("fedora-39", true)
	r.ObserveDownload("fedora-39", "amd64", 1024)
	r.ObserveDownload("fedora-39", "amd64", 1024)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.upToDate.WithLabelValues("fedora-39")))
	assert.Equal(t, float64(2048), testutil.ToFloat64(r.downloadedBytes.WithLabelValues("fedora-39", "amd64")))

	r.SetUpToDate("fedora-39", false)
	assert.Equal(t, float64(0), testutil.ToFloat64(r.upToDate.WithLabelValues("fedora-39")))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveStage("rocky-8", "ResolvingVersions", time.Second, nil)

	path := filepath.Join(t.TempDir(), "containerdisk.prom")
	require.NoError(t, r.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `containerdisk_stage_runs_total{distribution="rocky-8",outcome="success",stage="ResolvingVersions"} 1`)
}
