// Package blockdev attaches qcow2 images to network block devices and
// copies kernel and initramfs out of their boot partition.
package blockdev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/gobwas/glob"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"containerdisk.run/internal/shell"
)

// Request describes one extraction from one disk image.
type Request struct {
	ImagePath string
	// Slot selects the /dev/nbd<Slot> device and must be unique per
	// concurrently attached image.
	Slot           int
	PartitionNum   int
	BootDirPrefix  string
	KernelGlobs    []string
	InitramfsGlobs []string
	KernelDest     string
	InitramfsDest  string
	// Workdir holds the temporary mountpoint.
	Workdir string
}

// Result names the boot files that were copied, relative to the partition root.
type Result struct {
	Skipped   bool
	Kernel    string
	Initramfs string
}

// DevicePath returns the network block device of a slot.
func DevicePath(slot int) string {
	return fmt.Sprintf("/dev/nbd%d", slot)
}

func NewExtractor(opts ...Option) *Extractor {
	var cfg Config

	cfg.Option(opts...)
	cfg.Default()

	return &Extractor{cfg: cfg}
}

type Extractor struct {
	cfg Config
}

type Config struct {
	Log    logr.Logger
	Runner shell.Runner
	Fs     afero.Fs
	// RequireRoot fails extraction early for unprivileged processes.
	RequireRoot bool
	Geteuid     func() int
}

func (c *Config) Option(opts ...Option) {
	for _, opt := range opts {
		opt.ConfigureExtractor(c)
	}
}

func (c *Config) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
	if c.Runner == nil {
		c.Runner = shell.NewExecRunner(shell.WithLog{Log: c.Log})
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	if c.Geteuid == nil {
		c.Geteuid = unix.Geteuid
	}
}

type Option interface {
	ConfigureExtractor(*Config)
}

// Extract copies kernel and initramfs out of req.ImagePath.
// It is a no-op when both destinations exist. Once attached, the device is
// detached on every path out of Extract, and a mounted partition is
// unmounted before that.
func (e *Extractor) Extract(ctx context.Context, req Request) (res Result, err error) {
	log := e.cfg.Log.WithValues("image", req.ImagePath)

	done, err := e.bothExist(req.KernelDest, req.InitramfsDest)
	if err != nil {
		return Result{}, err
	}
	if done {
		log.Info("kernel and initramfs already extracted, skipping",
			"kernel", req.KernelDest, "initramfs", req.InitramfsDest)
		return Result{Skipped: true}, nil
	}

	if e.cfg.RequireRoot && e.cfg.Geteuid() != 0 {
		return Result{}, &ExtractionError{Reason: ReasonNotRoot}
	}

	dev := DevicePath(req.Slot)
	if err := e.attach(ctx, log, dev, req.ImagePath); err != nil {
		return Result{}, err
	}
	defer func() {
		err = errors.Join(err, e.detach(ctx, log, dev))
	}()

	mountpoint := filepath.Join(req.Workdir, "mnt-"+filepath.Base(req.ImagePath))
	partition := fmt.Sprintf("%sp%d", dev, req.PartitionNum)
	if err := e.mount(ctx, log, partition, mountpoint); err != nil {
		return Result{}, err
	}
	defer func() {
		err = errors.Join(err, e.unmount(ctx, log, partition, mountpoint))
	}()

	mp := afero.NewBasePathFs(e.cfg.Fs, mountpoint)
	if res.Kernel, err = e.globNonRescue(log, mp, req.BootDirPrefix, req.KernelGlobs); err != nil {
		return Result{}, err
	}
	if res.Initramfs, err = e.globNonRescue(log, mp, req.BootDirPrefix, req.InitramfsGlobs); err != nil {
		return Result{}, err
	}
	log.Info("found boot files", "kernel", res.Kernel, "initramfs", res.Initramfs)

	if err := e.copy(mp, res.Kernel, req.KernelDest); err != nil {
		return Result{}, err
	}
	if err := e.copy(mp, res.Initramfs, req.InitramfsDest); err != nil {
		return Result{}, err
	}

	return res, nil
}

func (e *Extractor) bothExist(paths ...string) (bool, error) {
	for _, p := range paths {
		ok, err := afero.Exists(e.cfg.Fs, p)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func (e *Extractor) attach(ctx context.Context, log logr.Logger, dev, image string) error {
	if _, err := e.cfg.Runner.Output(ctx, "udevadm", "settle"); err != nil {
		return &ExtractionError{Reason: ReasonAttach, Device: dev, Path: image, Err: err}
	}

	log.Info("connecting image", "device", dev)
	if _, err := e.cfg.Runner.Output(ctx, "qemu-nbd", "--read-only", "--connect="+dev, image); err != nil {
		return &ExtractionError{Reason: ReasonAttach, Device: dev, Path: image, Err: err}
	}

	if _, err := e.cfg.Runner.Output(ctx, "partprobe", dev); err != nil {
		return errors.Join(
			&ExtractionError{Reason: ReasonAttach, Device: dev, Path: image, Err: err},
			e.detach(ctx, log, dev),
		)
	}

	for _, diag := range [][]string{{"fdisk", "-l", dev}, {"lsblk", "-f", dev}} {
		out, err := e.cfg.Runner.Output(ctx, diag[0], diag[1:]...)
		if err != nil {
			log.Info("diagnostics failed", "cmd", diag[0], "error", err.Error())
			continue
		}
		log.V(1).Info("diagnostics", "cmd", diag[0], "output", out)
	}

	return nil
}

func (e *Extractor) detach(ctx context.Context, log logr.Logger, dev string) error {
	log.Info("disconnecting", "device", dev)
	if _, err := e.cfg.Runner.Output(context.WithoutCancel(ctx), "qemu-nbd", "--disconnect", dev); err != nil {
		return &ExtractionError{Reason: ReasonDetach, Device: dev, Err: err}
	}

	return nil
}

func (e *Extractor) mount(ctx context.Context, log logr.Logger, partition, mountpoint string) error {
	if err := e.cfg.Fs.MkdirAll(mountpoint, 0o755); err != nil {
		return &ExtractionError{Reason: ReasonMount, Device: partition, Path: mountpoint, Err: err}
	}

	log.Info("mounting", "partition", partition, "mountpoint", mountpoint)
	if _, err := e.cfg.Runner.Output(ctx, "mount", partition, mountpoint); err != nil {
		return errors.Join(
			&ExtractionError{Reason: ReasonMount, Device: partition, Path: mountpoint, Err: err},
			e.cfg.Fs.Remove(mountpoint),
		)
	}

	return nil
}

// unmount leaves the mountpoint in place if it could not be unmounted,
// so nothing below it is ever removed.
func (e *Extractor) unmount(ctx context.Context, log logr.Logger, partition, mountpoint string) error {
	log.Info("unmounting", "mountpoint", mountpoint)
	if _, err := e.cfg.Runner.Output(context.WithoutCancel(ctx), "umount", mountpoint); err != nil {
		return &ExtractionError{Reason: ReasonUnmount, Device: partition, Path: mountpoint, Err: err}
	}
	if err := e.cfg.Fs.Remove(mountpoint); err != nil && !os.IsNotExist(err) {
		return &ExtractionError{Reason: ReasonUnmount, Device: partition, Path: mountpoint, Err: err}
	}

	return nil
}

// globNonRescue returns the single file below prefix matching any of the
// patterns, ignoring rescue kernels and initramfs images.
func (e *Extractor) globNonRescue(log logr.Logger, mp afero.Fs, prefix string, patterns []string) (string, error) {
	dir := path.Clean("/" + prefix)
	entries, err := afero.ReadDir(mp, dir)
	if err != nil {
		return "", &ExtractionError{Reason: ReasonNotExactlyOne, Path: dir, Err: err}
	}

	var matches []string
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return "", fmt.Errorf("compiling pattern %q: %w", pattern, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !g.Match(entry.Name()) || strings.Contains(entry.Name(), "-rescue") {
				continue
			}
			matches = append(matches, prefix+entry.Name())
		}
	}
	sort.Strings(matches)

	if len(matches) != 1 {
		e.logListing(log, mp, "/")
		e.logListing(log, mp, dir)

		if matches == nil {
			matches = []string{}
		}
		return "", &ExtractionError{
			Reason:     ReasonNotExactlyOne,
			Path:       dir + " " + strings.Join(patterns, ","),
			Candidates: matches,
		}
	}

	return matches[0], nil
}

func (e *Extractor) logListing(log logr.Logger, mp afero.Fs, dir string) {
	entries, err := afero.ReadDir(mp, dir)
	if err != nil {
		log.Info("could not list directory", "dir", dir, "error", err.Error())
		return
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, fmt.Sprintf("%s %d", entry.Name(), entry.Size()))
	}
	log.Info("directory listing", "dir", dir, "entries", names)
}

func (e *Extractor) copy(mp afero.Fs, src, dest string) error {
	in, err := mp.Open(path.Clean("/" + src))
	if err != nil {
		return &ExtractionError{Reason: ReasonCopy, Path: src, Err: err}
	}
	defer in.Close()

	tmp := dest + ".tmp"
	out, err := e.cfg.Fs.Create(tmp)
	if err != nil {
		return &ExtractionError{Reason: ReasonCopy, Path: dest, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &ExtractionError{Reason: ReasonCopy, Path: dest, Err: err}
	}
	if err := out.Close(); err != nil {
		return &ExtractionError{Reason: ReasonCopy, Path: dest, Err: err}
	}
	if err := e.cfg.Fs.Rename(tmp, dest); err != nil {
		return &ExtractionError{Reason: ReasonCopy, Path: dest, Err: err}
	}

	return nil
}
