package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"containerdisk.run/internal/blockdev"
	"containerdisk.run/internal/containerdisk"
	"containerdisk.run/internal/distro"
	"containerdisk.run/internal/fetch"
	"containerdisk.run/internal/resolve"
)

type fetcherMock struct{ mock.Mock }

func (m *fetcherMock) Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(fetch.Result), args.Error(1)
}

type extractorMock struct{ mock.Mock }

func (m *extractorMock) Extract(ctx context.Context, req blockdev.Request) (blockdev.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(blockdev.Result), args.Error(1)
}

type publisherMock struct{ mock.Mock }

func (m *publisherMock) Build(ctx context.Context, f *containerdisk.ImageFamily) error {
	return m.Called(ctx, f).Error(0)
}

func (m *publisherMock) Push(ctx context.Context, f *containerdisk.ImageFamily) error {
	return m.Called(ctx, f).Error(0)
}

type inspectorMock struct{ mock.Mock }

func (m *inspectorMock) Inspect(ctx context.Context, ref string) ([]byte, error) {
	args := m.Called(ctx, ref)
	manifest, _ := args.Get(0).([]byte)
	return manifest, args.Error(1)
}

type recordingOutputs map[string]string

func (r recordingOutputs) Set(name, value string) error {
	r[name] = value
	return nil
}

type recordingObserver struct {
	stages []string
}

func (r *recordingObserver) ObserveStage(_, stage string, _ time.Duration, err error) {
	if err != nil {
		stage += " failed"
	}
	r.stages = append(r.stages, stage)
}
func (r *recordingObserver) ObserveDownload(string, string, int64) {}
func (r *recordingObserver) SetUpToDate(string, bool)              {}

type testFamily struct {
	distro.Base
	err error
}

func (testFamily) Name() string { return "test" }
func (testFamily) Slug() string { return "test-1" }

func (f testFamily) Resolve(_ context.Context, arch distro.Arch) (resolve.Result, error) {
	if f.err != nil {
		return resolve.Result{}, f.err
	}

	return resolve.Result{
		Version:           "20240101",
		SourceURL:         "https://dl.test/" + arch.Slug,
		ArtifactFilename:  arch.Slug + ".qcow2",
		KernelFilename:    arch.Slug + ".vmlinuz",
		InitramfsFilename: arch.Slug + ".initramfs",
		Compressed:        arch.Slug == "x86_64",
	}, nil
}

type fixture struct {
	fetcher   *fetcherMock
	extractor *extractorMock
	publisher *publisherMock
	inspector *inspectorMock
	outputs   recordingOutputs
	observer  *recordingObserver
}

func newFixture() *fixture {
	return &fixture{
		fetcher:   &fetcherMock{},
		extractor: &extractorMock{},
		publisher: &publisherMock{},
		inspector: &inspectorMock{},
		outputs:   recordingOutputs{},
		observer:  &recordingObserver{},
	}
}

func (f *fixture) orchestrator(opts ...Option) *Orchestrator {
	return NewOrchestrator(append([]Option{
		WithFetcher{Fetcher: f.fetcher},
		WithExtractor{Extractor: f.extractor},
		WithPublisher{Publisher: f.publisher},
		WithInspector{Inspector: f.inspector},
		WithOutputs{Outputs: f.outputs},
		WithObserver{Observer: f.observer},
		WithWorkdir("/work"),
	}, opts...)...)
}

func newDistribution(family distro.Family) *distro.Distribution {
	return distro.New(family, distro.Refs{Base: "reg/"}, logr.Discard())
}

func TestOrchestrator_Run_UpToDate(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.inspector.On("Inspect", mock.Anything, "reg/test-cloud-kernel-kv:1-20240101").Return([]byte("{}"), nil)
	f.inspector.On("Inspect", mock.Anything, "reg/test-cloud-container-disk:1-20240101").Return([]byte("{}"), nil)

	out, err := f.orchestrator().Run(context.Background(), newDistribution(testFamily{Base: distro.Base{Release: "1"}}))
	require.NoError(t, err)

	assert.True(t, out.UpToDate)
	assert.Equal(t, StageDone, out.Stage)
	f.inspector.AssertExpectations(t)
	f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Build", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Push", mock.Anything, mock.Anything)

	assert.Equal(t, recordingOutputs{
		"uptodate":    "yes",
		"version":     "20240101",
		"tag_version": "1-20240101",
		"tag_latest":  "1-latest",
		"arm64_qcow2": "aarch64.qcow2",
		"amd64_qcow2": "x86_64.qcow2",
	}, f.outputs)
	assert.Equal(t, []string{"ResolvingVersions", "CheckingIdempotency"}, f.observer.stages)
}

func TestOrchestrator_Run_Full(t *testing.T) {
	t.Parallel()

	f := newFixture()
	// Only the kernel exists, so everything is rebuilt.
	f.inspector.On("Inspect", mock.Anything, "reg/test-cloud-kernel-kv:1-20240101").Return([]byte("{}"), nil)
	f.inspector.On("Inspect", mock.Anything, "reg/test-cloud-container-disk:1-20240101").Return(nil, nil)

	f.fetcher.On("Fetch", mock.Anything, fetch.Request{
		URL: "https://dl.test/aarch64", Destination: "/work/aarch64.qcow2",
	}).Return(fetch.Result{Bytes: 10}, nil).Once()
	f.fetcher.On("Fetch", mock.Anything, fetch.Request{
		URL: "https://dl.test/x86_64", Destination: "/work/x86_64.qcow2", Compressed: true,
	}).Return(fetch.Result{Bytes: 10}, nil).Once()

	var slots []int
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(blockdev.Result{}, nil).Run(func(args mock.Arguments) {
		slots = append(slots, args.Get(1).(blockdev.Request).Slot)
	})

	var built, pushed []containerdisk.Kind
	f.publisher.On("Build", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		built = append(built, args.Get(1).(*containerdisk.ImageFamily).Kind)
	})
	f.publisher.On("Push", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		pushed = append(pushed, args.Get(1).(*containerdisk.ImageFamily).Kind)
	})

	d := newDistribution(testFamily{Base: distro.Base{Release: "1"}})
	out, err := f.orchestrator().Run(context.Background(), d)
	require.NoError(t, err)

	assert.False(t, out.UpToDate)
	assert.Equal(t, StageDone, out.Stage)
	assert.Equal(t, "no", f.outputs["uptodate"])
	f.fetcher.AssertExpectations(t)
	assert.Equal(t, []int{DefaultFirstSlot, DefaultFirstSlot + 1}, slots)
	assert.Equal(t, []containerdisk.Kind{containerdisk.KindKernel, containerdisk.KindDisk}, built)
	assert.Equal(t, []containerdisk.Kind{containerdisk.KindKernel, containerdisk.KindDisk}, pushed)
	assert.Equal(t, []string{
		"ResolvingVersions", "CheckingIdempotency", "Fetching", "Extracting", "Building", "Publishing",
	}, f.observer.stages)

	f.extractor.AssertCalled(t, "Extract", mock.Anything, blockdev.Request{
		ImagePath:      "/work/x86_64.qcow2",
		Slot:           3,
		PartitionNum:   2,
		KernelGlobs:    []string{"vmlinuz-*"},
		InitramfsGlobs: []string{"initramfs-*"},
		KernelDest:     "/work/x86_64.vmlinuz",
		InitramfsDest:  "/work/x86_64.initramfs",
		Workdir:        "/work",
	})
}

func TestOrchestrator_Run_DryRun(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.inspector.On("Inspect", mock.Anything, mock.Anything).Return(nil, nil)

	out, err := f.orchestrator(WithDryRun(true)).Run(context.Background(), newDistribution(testFamily{}))
	require.NoError(t, err)

	assert.False(t, out.UpToDate)
	assert.Equal(t, StageCheckingIdempotency, out.Stage)
	require.Len(t, out.Families, 2)
	f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestOrchestrator_Run_Failures(t *testing.T) {
	t.Parallel()

	t.Run("resolution", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		boom := &resolve.ResolutionError{Reason: resolve.ReasonNoIndex}
		_, err := f.orchestrator().Run(context.Background(), newDistribution(testFamily{err: boom}))

		var serr *StageError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StageResolvingVersions, serr.Stage)
		assert.Equal(t, "test-1", serr.Distribution)
		require.ErrorIs(t, err, boom)
		f.inspector.AssertNotCalled(t, "Inspect", mock.Anything, mock.Anything)
	})

	t.Run("inspection", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		f.inspector.On("Inspect", mock.Anything, mock.Anything).Return(nil, errors.New("registry down"))

		_, err := f.orchestrator().Run(context.Background(), newDistribution(testFamily{}))

		var serr *StageError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StageCheckingIdempotency, serr.Stage)
		f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})

	t.Run("extraction", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		f.inspector.On("Inspect", mock.Anything, mock.Anything).Return(nil, nil)
		f.fetcher.On("Fetch", mock.Anything, mock.Anything).Return(fetch.Result{}, nil)
		f.extractor.On("Extract", mock.Anything, mock.Anything).
			Return(blockdev.Result{}, &blockdev.ExtractionError{Reason: blockdev.ReasonNotExactlyOne})

		_, err := f.orchestrator().Run(context.Background(), newDistribution(testFamily{}))

		var serr *StageError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StageExtracting, serr.Stage)
		var eerr *blockdev.ExtractionError
		require.ErrorAs(t, err, &eerr)
		f.extractor.AssertNumberOfCalls(t, "Extract", 1)
		f.publisher.AssertNotCalled(t, "Build", mock.Anything, mock.Anything)
		assert.Equal(t, []string{
			"ResolvingVersions", "CheckingIdempotency", "Fetching", "Extracting failed",
		}, f.observer.stages)
	})
}

func TestFamilies(t *testing.T) {
	t.Parallel()

	d := newDistribution(testFamily{Base: distro.Base{Release: "1"}})
	rel, err := d.ResolveVersions(context.Background())
	require.NoError(t, err)

	families := Families(d, rel)
	require.Len(t, families, 2)

	kernel, disk := families[0], families[1]
	assert.Equal(t, "reg/test-cloud-kernel-kv:1-latest", kernel.LatestRef())
	assert.Equal(t, []containerdisk.Payload{
		{Src: "aarch64.vmlinuz", Dest: "/boot/vmlinuz"},
		{Src: "aarch64.initramfs", Dest: "/boot/initrd"},
	}, kernel.Arches()[0].Payloads)
	assert.Equal(t, "amd64", disk.Arches()[1].DockerArch)
}
