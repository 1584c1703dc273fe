package report

import (
	"fmt"

	"github.com/disiqueira/gotree"

	"containerdisk.run/internal/containerdisk"
	"containerdisk.run/internal/distro"
)

// PlanTree renders the resolved targets and the image families
// that a run publishes for a distribution.
func PlanTree(d *distro.Distribution, families []*containerdisk.ImageFamily) gotree.Tree {
	title := d.Slug()
	if rel, ok := d.Release(); ok {
		title = fmt.Sprintf("%s (version %s)", title, rel.Version)
	}
	root := gotree.New(title)

	sources := root.Add("sources")
	for _, t := range d.Targets() {
		arch := sources.Add(fmt.Sprintf("%s [%s]", t.DockerArch, t.Slug))
		if !t.Resolved() {
			arch.Add("unresolved")
			continue
		}
		arch.Add("url: " + t.SourceURL)
		arch.Add("artifact: " + t.ArtifactFilename)
		layout := t.BootLayout()
		arch.Add(fmt.Sprintf("boot: partition %d, %q", layout.PartitionNum, layout.DirPrefix))
	}

	for _, f := range families {
		node := root.Add(fmt.Sprintf("%s: %s, %s", f.Kind, f.VersionRef(), f.LatestRef()))
		for _, a := range f.Arches() {
			arch := node.Add(a.DockerArch)
			for _, pl := range a.Payloads {
				arch.Add(pl.Src + " -> " + pl.Dest)
			}
		}
	}

	return root
}

// TargetTable lists the resolution results of all targets of d.
func TargetTable(d *distro.Distribution) (headers []string, rows [][]string) {
	headers = []string{"Arch", "Version", "Artifact", "Kernel", "Initramfs"}
	for _, t := range d.Targets() {
		rows = append(rows, []string{t.DockerArch, t.Version, t.ArtifactFilename, t.KernelFilename, t.InitramfsFilename})
	}

	return headers, rows
}
