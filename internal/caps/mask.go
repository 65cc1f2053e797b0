package caps

import (
	"fmt"
	"math/bits"
	"strings"
)

// Codec is a bitmask over the codec types a descriptor applies to.
type Codec uint32

const (
	H264 Codec = 1 << iota
	HEVC
	VP9

	// CodecsAll is the wildcard mask used by rows that apply to every codec.
	CodecsAll = H264 | HEVC | VP9
)

var codecNames = []struct {
	c    Codec
	name string
}{
	{H264, "h264"},
	{HEVC, "hevc"},
	{VP9, "vp9"},
}

// String renders the mask as "h264|hevc".
func (c Codec) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for _, cn := range codecNames {
		if c&cn.c != 0 {
			parts = append(parts, cn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Single reports whether exactly one codec bit is set.
func (c Codec) Single() bool {
	return bits.OnesCount32(uint32(c)) == 1
}

// Count returns the number of codecs in the mask.
func (c Codec) Count() int {
	return bits.OnesCount32(uint32(c))
}

// ParseCodec accepts a codec name ("h264", "HEVC", "avc") or "all".
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h264", "avc":
		return H264, nil
	case "hevc", "h265":
		return HEVC, nil
	case "vp9":
		return VP9, nil
	case "all", "codecs_all":
		return CodecsAll, nil
	}
	return 0, fmt.Errorf("unknown codec %q", s)
}

// Domain is a bitmask over session directions.
type Domain uint32

const (
	Encoder Domain = 1 << iota
	Decoder

	DomainAll = Encoder | Decoder
)

func (d Domain) String() string {
	switch d {
	case Encoder:
		return "enc"
	case Decoder:
		return "dec"
	case DomainAll:
		return "enc|dec"
	case 0:
		return "none"
	}
	return fmt.Sprintf("domain(%#x)", uint32(d))
}

// Count returns the number of directions in the mask.
func (d Domain) Count() int {
	return bits.OnesCount32(uint32(d))
}

// ParseDomain accepts "enc", "encoder", "dec", "decoder".
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enc", "encoder":
		return Encoder, nil
	case "dec", "decoder":
		return Decoder, nil
	}
	return 0, fmt.Errorf("unknown domain %q", s)
}

// Flags describe how a capability behaves.
type Flags uint32

const (
	// FlagRoot marks a capability with no dependency inputs.
	FlagRoot Flags = 1 << iota
	// FlagOutputPort applies the control to the output (bitstream for
	// encoders) port.
	FlagOutputPort
	// FlagInputPort applies the control to the input port.
	FlagInputPort
	// FlagDynamicAllowed permits changes while the session is streaming.
	FlagDynamicAllowed
	// FlagMenu marks an enumerated domain: StepOrMask holds 1<<v for every
	// legal value v.
	FlagMenu
	// FlagBitmask marks a domain whose values are themselves flag bits:
	// a legal value is exactly one bit present in StepOrMask.
	FlagBitmask
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{FlagRoot, "ROOT"},
	{FlagOutputPort, "OUTPUT_PORT"},
	{FlagInputPort, "INPUT_PORT"},
	{FlagDynamicAllowed, "DYNAMIC_ALLOWED"},
	{FlagMenu, "MENU"},
	{FlagBitmask, "BITMASK"},
}

// Has reports whether all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

func (f Flags) String() string {
	if f == 0 {
		return "-"
	}
	var parts []string
	for _, fn := range flagNames {
		if f&fn.f != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseFlag resolves one flag name as written in capability tables.
func ParseFlag(s string) (Flags, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, fn := range flagNames {
		if fn.name == name {
			return fn.f, nil
		}
	}
	return 0, fmt.Errorf("unknown capability flag %q", s)
}

// Port selects which firmware port a property is written to.
type Port uint32

const (
	PortNone Port = iota
	PortInput
	PortOutput
)

func (p Port) String() string {
	switch p {
	case PortInput:
		return "input"
	case PortOutput:
		return "output"
	}
	return "none"
}
