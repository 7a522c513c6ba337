//go:build linux || darwin

package main

import (
	"extmem/kernel/hal/mmio"
	"extmem/platform"
)

// openDevice maps the register file of desc. A device argument of "-" uses
// the device path of the description.
func openDevice(desc *platform.Description, device string) (*mmio.Device, error) {
	layout, path, offset, err := desc.MMIOLayout()
	if err != nil {
		return nil, err
	}
	if device != "-" {
		path = device
	}

	printVerbose("Mapping registers from %s at offset 0x%x\n", path, offset)
	return mmio.Open(path, offset, layout)
}
