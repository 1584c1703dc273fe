package blockdev

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"containerdisk.run/internal/shell"
	"containerdisk.run/internal/testutil"
)

const (
	workdir    = "/work"
	mountpoint = "/work/mnt-disk.qcow2"
)

func request() Request {
	return Request{
		ImagePath:      "/work/disk.qcow2",
		Slot:           2,
		PartitionNum:   1,
		BootDirPrefix:  "boot/",
		KernelGlobs:    []string{"vmlinuz-*"},
		InitramfsGlobs: []string{"initrd.img-*"},
		KernelDest:     "/work/disk.vmlinuz",
		InitramfsDest:  "/work/disk.initramfs",
		Workdir:        workdir,
	}
}

// bootFiles makes "mount" populate the mountpoint with the given files.
func bootFiles(fs afero.Fs, files map[string]string) func(testutil.Call) (string, error) {
	return func(c testutil.Call) (string, error) {
		if c.Cmd == "mount" {
			for name, content := range files {
				if err := fs.MkdirAll(path.Dir(mountpoint+"/"+name), 0o755); err != nil {
					return "", err
				}
				if err := afero.WriteFile(fs, mountpoint+"/"+name, []byte(content), 0o644); err != nil {
					return "", err
				}
			}
		}
		if c.Cmd == "umount" {
			return "", fs.RemoveAll(mountpoint + "/boot")
		}

		return "", nil
	}
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	runner := &testutil.RecordingRunner{}
	runner.Handler = bootFiles(fs, map[string]string{
		"boot/vmlinuz-6.1.0-18-amd64":         "kernel",
		"boot/vmlinuz-0-rescue-abc":           "rescue kernel",
		"boot/initrd.img-6.1.0-18-amd64":      "initrd",
		"boot/initrd.img-0-rescue-abc":        "rescue initrd",
		"boot/config-6.1.0-18-amd64":          "config",
		"boot/grub/vmlinuz-inside-a-subdir-x": "nope",
	})
	e := NewExtractor(WithRunner{Runner: runner}, WithFs{Fs: fs}, WithLog{Log: testutil.NewLogger(t)})

	res, err := e.Extract(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, Result{Kernel: "boot/vmlinuz-6.1.0-18-amd64", Initramfs: "boot/initrd.img-6.1.0-18-amd64"}, res)

	kernel, err := afero.ReadFile(fs, "/work/disk.vmlinuz")
	require.NoError(t, err)
	assert.Equal(t, "kernel", string(kernel))
	initrd, err := afero.ReadFile(fs, "/work/disk.initramfs")
	require.NoError(t, err)
	assert.Equal(t, "initrd", string(initrd))

	assert.Equal(t, []string{
		"udevadm settle",
		"qemu-nbd --read-only --connect=/dev/nbd2 /work/disk.qcow2",
		"partprobe /dev/nbd2",
		"fdisk -l /dev/nbd2",
		"lsblk -f /dev/nbd2",
		"mount /dev/nbd2p1 /work/mnt-disk.qcow2",
		"umount /work/mnt-disk.qcow2",
		"qemu-nbd --disconnect /dev/nbd2",
	}, runner.Lines())

	exists, err := afero.DirExists(fs, mountpoint)
	require.NoError(t, err)
	assert.False(t, exists, "mountpoint removed")

	// Outputs exist now, so nothing is attached again.
	res, err = e.Extract(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 1, runner.Count("qemu-nbd --read-only"))
}

func TestExtractor_Extract_Ambiguous(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	runner := &testutil.RecordingRunner{}
	runner.Handler = bootFiles(fs, map[string]string{
		"boot/vmlinuz-6.1.0-17-amd64":    "old",
		"boot/vmlinuz-6.1.0-18-amd64":    "new",
		"boot/initrd.img-6.1.0-18-amd64": "initrd",
	})
	e := NewExtractor(WithRunner{Runner: runner}, WithFs{Fs: fs})

	_, err := e.Extract(context.Background(), request())

	var eerr *ExtractionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, ReasonNotExactlyOne, eerr.Reason)
	assert.Equal(t, []string{"boot/vmlinuz-6.1.0-17-amd64", "boot/vmlinuz-6.1.0-18-amd64"}, eerr.Candidates)

	assert.Equal(t, 1, runner.Count("umount"))
	assert.Equal(t, 1, runner.Count("qemu-nbd --disconnect"))
	exists, err := afero.Exists(fs, "/work/disk.vmlinuz")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExtractor_Extract_NoMatch(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	runner := &testutil.RecordingRunner{}
	runner.Handler = bootFiles(fs, map[string]string{"boot/vmlinuz-0-rescue-abc": "rescue"})
	e := NewExtractor(WithRunner{Runner: runner}, WithFs{Fs: fs})

	_, err := e.Extract(context.Background(), request())

	var eerr *ExtractionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, ReasonNotExactlyOne, eerr.Reason)
	assert.Empty(t, eerr.Candidates)
}

func TestExtractor_Extract_MountFailureDetachesOnce(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	runner := &testutil.RecordingRunner{Handler: func(c testutil.Call) (string, error) {
		if c.Cmd == "mount" {
			return "", &shell.CommandError{Cmd: c.Cmd, Args: c.Args, ExitCode: 32, Stderr: "wrong fs type"}
		}
		return "", nil
	}}
	e := NewExtractor(WithRunner{Runner: runner}, WithFs{Fs: fs})

	_, err := e.Extract(context.Background(), request())

	var eerr *ExtractionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, ReasonMount, eerr.Reason)
	var cerr *shell.CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 32, cerr.ExitCode)

	assert.Equal(t, 0, runner.Count("umount"))
	assert.Equal(t, 1, runner.Count("qemu-nbd --disconnect /dev/nbd2"))
	exists, err := afero.DirExists(fs, mountpoint)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExtractor_Extract_PartitionRescanFailureDetaches(t *testing.T) {
	t.Parallel()

	runner := &testutil.RecordingRunner{Handler: func(c testutil.Call) (string, error) {
		if c.Cmd == "partprobe" {
			return "", errors.New("no partitions")
		}
		return "", nil
	}}
	e := NewExtractor(WithRunner{Runner: runner}, WithFs{Fs: afero.NewMemMapFs()})

	_, err := e.Extract(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, 1, runner.Count("qemu-nbd --disconnect"))
	assert.Equal(t, 0, runner.Count("mount"))
}

func TestExtractor_Extract_DiagnosticsAreBestEffort(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	files := bootFiles(fs, map[string]string{
		"boot/vmlinuz-6.1.0-18-amd64":    "kernel",
		"boot/initrd.img-6.1.0-18-amd64": "initrd",
	})
	runner := &testutil.RecordingRunner{Handler: func(c testutil.Call) (string, error) {
		if c.Cmd == "lsblk" || c.Cmd == "fdisk" {
			return "", errors.New("not installed")
		}
		return files(c)
	}}
	e := NewExtractor(WithRunner{Runner: runner}, WithFs{Fs: fs})

	_, err := e.Extract(context.Background(), request())
	require.NoError(t, err)
}

func TestExtractor_Extract_CanceledStillCleansUp(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	ctx, cancel := context.WithCancel(context.Background())
	files := bootFiles(fs, map[string]string{"boot/vmlinuz-1": "kernel"})
	runner := &testutil.RecordingRunner{Handler: func(c testutil.Call) (string, error) {
		if c.Cmd == "mount" {
			defer cancel()
		}
		return files(c)
	}}
	e := NewExtractor(WithRunner{Runner: runner}, WithFs{Fs: fs})

	// The initramfs lookup fails; cleanup must still run with a canceled context.
	_, err := e.Extract(ctx, request())
	require.Error(t, err)
	assert.Equal(t, 1, runner.Count("umount"))
	assert.Equal(t, 1, runner.Count("qemu-nbd --disconnect"))
}

func TestExtractor_Extract_RequiresRoot(t *testing.T) {
	t.Parallel()

	runner := &testutil.RecordingRunner{}
	e := NewExtractor(
		WithRunner{Runner: runner}, WithFs{Fs: afero.NewMemMapFs()},
		WithRequireRoot(true), WithGeteuid(func() int { return 1000 }),
	)

	_, err := e.Extract(context.Background(), request())

	var eerr *ExtractionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, ReasonNotRoot, eerr.Reason)
	assert.Empty(t, runner.Lines())
}

// createFailFs fails Create for names ending in suffix.
type createFailFs struct {
	afero.Fs
	suffix string
}

func (f createFailFs) Create(name string) (afero.File, error) {
	if strings.HasSuffix(name, f.suffix) {
		return nil, &os.PathError{Op: "create", Path: name, Err: syscall.ENOSPC}
	}

	return f.Fs.Create(name)
}

func extractableRunner(fs afero.Fs) *testutil.RecordingRunner {
	return &testutil.RecordingRunner{Handler: bootFiles(fs, map[string]string{
		"boot/vmlinuz-6.1.0-18-amd64":    "kernel",
		"boot/initrd.img-6.1.0-18-amd64": "initrd",
	})}
}

func TestExtractor_Extract_CopyFailureCleansUp(t *testing.T) {
	t.Parallel()

	mem := afero.NewMemMapFs()
	runner := extractableRunner(mem)
	e := NewExtractor(WithRunner{Runner: runner}, WithFs{Fs: createFailFs{Fs: mem, suffix: ".initramfs.tmp"}})

	_, err := e.Extract(context.Background(), request())

	var eerr *ExtractionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, ReasonCopy, eerr.Reason)
	assert.Equal(t, "/work/disk.initramfs", eerr.Path)
	require.ErrorIs(t, err, syscall.ENOSPC)

	assert.Equal(t, 1, runner.Count("umount /work/mnt-disk.qcow2"))
	assert.Equal(t, 1, runner.Count("qemu-nbd --disconnect /dev/nbd2"))
	exists, err := afero.DirExists(mem, mountpoint)
	require.NoError(t, err)
	assert.False(t, exists, "mountpoint removed")
	exists, err = afero.Exists(mem, "/work/disk.initramfs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExtractor_Extract_UnmountFailureKeepsMountpoint(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	files := bootFiles(fs, map[string]string{
		"boot/vmlinuz-6.1.0-18-amd64":    "kernel",
		"boot/initrd.img-6.1.0-18-amd64": "initrd",
	})
	runner := &testutil.RecordingRunner{Handler: func(c testutil.Call) (string, error) {
		if c.Cmd == "umount" {
			return "", &shell.CommandError{Cmd: c.Cmd, Args: c.Args, ExitCode: 32, Stderr: "target is busy"}
		}
		return files(c)
	}}
	e := NewExtractor(WithRunner{Runner: runner}, WithFs{Fs: fs})

	_, err := e.Extract(context.Background(), request())

	var eerr *ExtractionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, ReasonUnmount, eerr.Reason)
	assert.Equal(t, mountpoint, eerr.Path)

	assert.Equal(t, 1, runner.Count("umount"))
	assert.Equal(t, 1, runner.Count("qemu-nbd --disconnect /dev/nbd2"))
	// Still mounted, so neither the mountpoint nor anything below it is touched.
	kernel, err := afero.ReadFile(fs, mountpoint+"/boot/vmlinuz-6.1.0-18-amd64")
	require.NoError(t, err)
	assert.Equal(t, "kernel", string(kernel))
}

func TestExtractor_Extract_DetachFailure(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	files := bootFiles(fs, map[string]string{
		"boot/vmlinuz-6.1.0-18-amd64":    "kernel",
		"boot/initrd.img-6.1.0-18-amd64": "initrd",
	})
	runner := &testutil.RecordingRunner{Handler: func(c testutil.Call) (string, error) {
		if c.String() == "qemu-nbd --disconnect /dev/nbd2" {
			return "", &shell.CommandError{Cmd: c.Cmd, Args: c.Args, ExitCode: 1, Stderr: "device busy"}
		}
		return files(c)
	}}
	e := NewExtractor(WithRunner{Runner: runner}, WithFs{Fs: fs})

	_, err := e.Extract(context.Background(), request())

	var eerr *ExtractionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, ReasonDetach, eerr.Reason)
	assert.Equal(t, "/dev/nbd2", eerr.Device)
	var cerr *shell.CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "device busy", cerr.Stderr)

	assert.Equal(t, 1, runner.Count("umount"))
	assert.Equal(t, 1, runner.Count("qemu-nbd --disconnect"))
	// The copies finished before the detach failed.
	kernel, err := afero.ReadFile(fs, "/work/disk.vmlinuz")
	require.NoError(t, err)
	assert.Equal(t, "kernel", string(kernel))
}
