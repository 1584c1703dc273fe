package kubevirt

import (
	"containerdisk.run/internal/distro"
)

const defaultUserData = `#cloud-config
password: containerdisk
chpasswd: { expire: False }
ssh_pwauth: True
`

// ParamsFor returns the parameters of an example VM booting the latest
// published images of d.
func ParamsFor(d *distro.Distribution) VirtualMachineParams {
	tag := d.LatestTag()

	return VirtualMachineParams{
		Name:          d.Slug(),
		DiskImage:     d.DiskRef() + ":" + tag,
		KernelImage:   d.KernelRef() + ":" + tag,
		KernelCmdline: d.KernelCmdline(),
		UserData:      defaultUserData,
	}
}
