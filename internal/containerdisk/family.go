// Package containerdisk assembles and publishes the multi-architecture
// disk and kernel images of a distribution release.
package containerdisk

import "fmt"

// Kind distinguishes the two image families published per release.
type Kind string

const (
	KindDisk   Kind = "disk"
	KindKernel Kind = "kernel"
)

// OwnerID owns every payload file inside the images (the qemu user in KubeVirt).
const OwnerID = 107

// Payload is one local file and its path inside the image.
type Payload struct {
	// Src is relative to the build context directory.
	Src  string
	Dest string
}

// ArchImage is the single-architecture member of an ImageFamily.
type ArchImage struct {
	DockerArch  string
	Payloads    []Payload
	Description string
}

// ImageFamily is one registry reference with a version and latest tag,
// published as a manifest list over its architectures.
// Architectures keep insertion order.
type ImageFamily struct {
	Kind       Kind
	Ref        string
	TagVersion string
	TagLatest  string

	arches []ArchImage
}

func NewImageFamily(kind Kind, ref, tagVersion, tagLatest string) *ImageFamily {
	return &ImageFamily{Kind: kind, Ref: ref, TagVersion: tagVersion, TagLatest: tagLatest}
}

// AddDisk adds an architecture carrying a disk image under /disk/.
func (f *ImageFamily) AddDisk(arch, qcow2Filename string) {
	f.add(ArchImage{
		DockerArch: arch,
		Payloads:   []Payload{{Src: qcow2Filename, Dest: "/disk/" + qcow2Filename}},
		Description: fmt.Sprintf("Cloud containerDisk qcow2 version '%s' for arch %s containing /disk/%s",
			f.archTag(f.TagVersion, arch), arch, qcow2Filename),
	})
}

// AddKernel adds an architecture carrying a kernel and initramfs under /boot/.
func (f *ImageFamily) AddKernel(arch, kernelFilename, initramfsFilename string) {
	f.add(ArchImage{
		DockerArch: arch,
		Payloads: []Payload{
			{Src: kernelFilename, Dest: "/boot/vmlinuz"},
			{Src: initramfsFilename, Dest: "/boot/initrd"},
		},
		Description: fmt.Sprintf("Cloud image kernel and initrd image version '%s' for arch %s "+
			"containing %s as /boot/vmlinuz and %s as /boot/initrd",
			f.archTag(f.TagVersion, arch), arch, kernelFilename, initramfsFilename),
	})
}

// add replaces an existing entry for the same architecture in place.
func (f *ImageFamily) add(img ArchImage) {
	for i := range f.arches {
		if f.arches[i].DockerArch == img.DockerArch {
			f.arches[i] = img
			return
		}
	}
	f.arches = append(f.arches, img)
}

func (f *ImageFamily) Arches() []ArchImage { return f.arches }

func (f *ImageFamily) VersionRef() string { return f.Ref + ":" + f.TagVersion }
func (f *ImageFamily) LatestRef() string  { return f.Ref + ":" + f.TagLatest }

// ArchVersionRef is the version tagged reference of a single architecture image.
func (f *ImageFamily) ArchVersionRef(arch string) string {
	return f.Ref + ":" + f.archTag(f.TagVersion, arch)
}

// ArchLatestRef is the latest tagged reference of a single architecture image.
func (f *ImageFamily) ArchLatestRef(arch string) string {
	return f.Ref + ":" + f.archTag(f.TagLatest, arch)
}

func (f *ImageFamily) archTag(tag, arch string) string {
	return tag + "-" + arch
}

// tagRefs pairs a manifest list reference with its per-architecture members.
type tagRefs struct {
	list  string
	archs func(arch string) string
}

func (f *ImageFamily) tags() []tagRefs {
	return []tagRefs{
		{list: f.VersionRef(), archs: f.ArchVersionRef},
		{list: f.LatestRef(), archs: f.ArchLatestRef},
	}
}
