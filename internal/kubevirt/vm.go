// Package kubevirt renders example KubeVirt manifests booting published images.
package kubevirt

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/yaml"
)

var VirtualMachineGVK = schema.GroupVersionKind{
	Group:   "kubevirt.io",
	Version: "v1",
	Kind:    "VirtualMachine",
}

const (
	KernelPath = "/boot/vmlinuz"
	InitrdPath = "/boot/initrd"

	DefaultMemory = "2Gi"
	DefaultCores  = 2

	containerDiskVolume = "containerdisk"
	cloudInitVolume     = "cloudinitdisk"
)

// VirtualMachineParams selects the images and kernel arguments of an example VM.
type VirtualMachineParams struct {
	Name      string
	Namespace string
	// DiskImage is the full reference of the disk image, tag included.
	DiskImage string
	// KernelImage is the full reference of the kernel image, tag included.
	KernelImage   string
	KernelCmdline []string
	Memory        string
	Cores         int64
	// UserData is passed as NoCloud cloud-init user data when set.
	UserData string
}

func (p *VirtualMachineParams) Default() {
	if p.Memory == "" {
		p.Memory = DefaultMemory
	}
	if p.Cores == 0 {
		p.Cores = DefaultCores
	}
}

// VirtualMachine builds a VirtualMachine that boots the disk image directly
// with the kernel and initrd of the kernel image.
func VirtualMachine(p VirtualMachineParams) (*unstructured.Unstructured, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("virtual machine name must not be empty")
	}
	if p.DiskImage == "" || p.KernelImage == "" {
		return nil, fmt.Errorf("virtual machine %s: disk and kernel image are required", p.Name)
	}
	p.Default()

	disks := []interface{}{
		map[string]interface{}{
			"name": containerDiskVolume,
			"disk": map[string]interface{}{"bus": "virtio"},
		},
	}
	volumes := []interface{}{
		map[string]interface{}{
			"name": containerDiskVolume,
			"containerDisk": map[string]interface{}{
				"image":           p.DiskImage,
				"imagePullPolicy": "Always",
			},
		},
	}
	if p.UserData != "" {
		disks = append(disks, map[string]interface{}{
			"name": cloudInitVolume,
			"disk": map[string]interface{}{"bus": "virtio"},
		})
		volumes = append(volumes, map[string]interface{}{
			"name": cloudInitVolume,
			"cloudInitNoCloud": map[string]interface{}{
				"userData": p.UserData,
			},
		})
	}

	vm := &unstructured.Unstructured{}
	vm.SetGroupVersionKind(VirtualMachineGVK)
	vm.SetName(p.Name)
	if p.Namespace != "" {
		vm.SetNamespace(p.Namespace)
	}

	fields := []struct {
		value interface{}
		path  []string
	}{
		{"Always", []string{"spec", "runStrategy"}},
		{map[string]interface{}{"app": p.Name}, []string{"spec", "template", "metadata", "labels"}},
		{p.Cores, []string{"spec", "template", "spec", "domain", "cpu", "cores"}},
		{p.Memory, []string{"spec", "template", "spec", "domain", "resources", "requests", "memory"}},
		{disks, []string{"spec", "template", "spec", "domain", "devices", "disks"}},
		{map[string]interface{}{
			"kernelArgs": strings.Join(p.KernelCmdline, " "),
			"container": map[string]interface{}{
				"image":           p.KernelImage,
				"kernelPath":      KernelPath,
				"initrdPath":      InitrdPath,
				"imagePullPolicy": "Always",
			},
		}, []string{"spec", "template", "spec", "domain", "firmware", "kernelBoot"}},
		{volumes, []string{"spec", "template", "spec", "volumes"}},
	}
	for _, f := range fields {
		if err := unstructured.SetNestedField(vm.Object, f.value, f.path...); err != nil {
			return nil, fmt.Errorf("setting %s: %w", strings.Join(f.path, "."), err)
		}
	}

	return vm, nil
}

// Marshal renders obj as YAML.
func Marshal(obj *unstructured.Unstructured) ([]byte, error) {
	return yaml.Marshal(obj.Object)
}
