//go:build !linux && !darwin

package main

import (
	"errors"

	"extmem/platform"
)

type noDevice struct {
	boardHAL
}

func (noDevice) Close() error { return nil }

func openDevice(_ *platform.Description, _ string) (*noDevice, error) {
	return nil, errors.New("register files are not supported on this platform")
}
