package platform

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Address is an address or size read from a description file. It accepts
// plain integers, hex strings ("0x3c000000") and sizes with a Kb/Mb suffix
// ("64Kb").
type Address uint64

// UnmarshalYAML implements yaml.Unmarshaler for Address.
func (a *Address) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected an address or size", value.Line)
	}

	parsed, err := ParseAddress(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*a = parsed
	return nil
}

// ParseAddress converts s to an Address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)

	multiplier := uint64(1)
	for _, suffix := range []struct {
		name  string
		scale uint64
	}{
		{"Kb", 1 << 10},
		{"KB", 1 << 10},
		{"Mb", 1 << 20},
		{"MB", 1 << 20},
	} {
		if strings.HasSuffix(s, suffix.name) {
			s, multiplier = strings.TrimSpace(strings.TrimSuffix(s, suffix.name)), suffix.scale
			break
		}
	}

	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(v * multiplier), nil
}

// String implements fmt.Stringer for Address.
func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}
