package caps

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Bounds is a live inclusive interval.
type Bounds struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Contains reports whether v lies within the inclusive interval.
func (b Bounds) Contains(v int64) bool {
	return v >= b.Min && v <= b.Max
}

// Clamp pins v into the interval.
func (b Bounds) Clamp(v int64) int64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d]", b.Min, b.Max)
}

// MenuEntry names one legal value of a MENU or BITMASK capability.
type MenuEntry struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Descriptor is the static metadata for one capability row.
//
// A table may hold several descriptors for the same ID with different
// Codecs/Domain masks; the registry picks exactly one per session.
type Descriptor struct {
	ID           ID          `json:"id"`
	Domain       Domain      `json:"domain"`
	Codecs       Codec       `json:"codecs"`
	Min          int64       `json:"min"`
	Max          int64       `json:"max"`
	StepOrMask   int64       `json:"step_or_mask"`
	Default      int64       `json:"default"`
	ExternalID   uint32      `json:"external_id,omitempty"`
	HWPropertyID uint32      `json:"hw_property_id,omitempty"`
	Flags        Flags       `json:"flags"`
	Parents      []ID        `json:"parents,omitempty"`
	Children     []ID        `json:"children,omitempty"`
	Adjust       AdjustRule  `json:"adjust,omitempty"`
	Set          SetRule     `json:"set,omitempty"`
	Menu         []MenuEntry `json:"menu,omitempty"`

	// Line is the source line of the row, zero when built in code.
	Line int `json:"-"`
}

// Bounds returns the descriptor's static interval.
func (d *Descriptor) Bounds() Bounds {
	return Bounds{Min: d.Min, Max: d.Max}
}

// Enumerated reports whether the value domain is a menu or bitmask.
func (d *Descriptor) Enumerated() bool {
	return d.Flags&(FlagMenu|FlagBitmask) != 0
}

// Writable reports whether the capability accepts external set requests.
func (d *Descriptor) Writable() bool {
	return d.Set != ""
}

// Forwarded reports whether committing the capability produces a
// firmware property write.
func (d *Descriptor) Forwarded() bool {
	return d.Set != "" && d.HWPropertyID != 0
}

// Port derives the firmware port from the port flags.
func (d *Descriptor) Port() Port {
	switch {
	case d.Flags&FlagInputPort != 0:
		return PortInput
	case d.Flags&FlagOutputPort != 0:
		return PortOutput
	}
	return PortNone
}

// Member reports whether v is a legal member of the enumerated domain,
// ignoring live bounds.
func (d *Descriptor) Member(v int64) bool {
	switch {
	case d.Flags&FlagMenu != 0:
		if v < 0 || v > 62 {
			return false
		}
		return d.StepOrMask&(int64(1)<<uint(v)) != 0
	case d.Flags&FlagBitmask != 0:
		if v <= 0 || bits.OnesCount64(uint64(v)) != 1 {
			return false
		}
		return d.StepOrMask&v != 0
	}
	return true
}

// Check validates v against live bounds b. It returns an OUT_OF_RANGE
// error naming the violated constraint.
func (d *Descriptor) Check(v int64, b Bounds) error {
	if !b.Contains(v) {
		return &Error{
			Code:    CodeOutOfRange,
			Cap:     d.ID,
			Message: fmt.Sprintf("value %d outside %s", v, b),
			Details: map[string]string{"value": fmt.Sprint(v), "bounds": b.String()},
		}
	}
	if d.Enumerated() {
		if !d.Member(v) {
			return &Error{
				Code:    CodeOutOfRange,
				Cap:     d.ID,
				Message: fmt.Sprintf("value %d is not in mask %#x", v, d.StepOrMask),
				Details: map[string]string{"value": fmt.Sprint(v), "mask": fmt.Sprintf("%#x", d.StepOrMask)},
			}
		}
		return nil
	}
	if d.StepOrMask > 1 && (v-d.Min)%d.StepOrMask != 0 {
		return &Error{
			Code:    CodeOutOfRange,
			Cap:     d.ID,
			Message: fmt.Sprintf("value %d is not aligned to step %d from %d", v, d.StepOrMask, d.Min),
			Details: map[string]string{"value": fmt.Sprint(v), "step": fmt.Sprint(d.StepOrMask)},
		}
	}
	return nil
}

// MenuName returns the symbolic name of v, if the descriptor has one.
func (d *Descriptor) MenuName(v int64) (string, bool) {
	for _, m := range d.Menu {
		if m.Value == v {
			return m.Name, true
		}
	}
	return "", false
}

// MenuValue resolves a symbolic name, case-insensitively.
func (d *Descriptor) MenuValue(name string) (int64, bool) {
	for _, m := range d.Menu {
		if strings.EqualFold(m.Name, name) {
			return m.Value, true
		}
	}
	return 0, false
}

// FormatValue renders v using its menu name when one exists.
func (d *Descriptor) FormatValue(v int64) string {
	if name, ok := d.MenuName(v); ok {
		return name
	}
	return fmt.Sprint(v)
}

// ParseValue accepts a menu name or an integer literal ("20000000",
// "-12", "0x1e0000").
func (d *Descriptor) ParseValue(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, ok := d.MenuValue(s); ok {
		return v, nil
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, Errorf(CodeOutOfRange, d.ID, "cannot parse %q as a value", s)
	}
	return v, nil
}

// Matches reports whether the row applies to a (codec, domain) session.
func (d *Descriptor) Matches(codec Codec, domain Domain) bool {
	return d.Codecs&codec != 0 && d.Domain&domain != 0
}

// NarrowerThan reports whether d takes precedence over o when both rows
// match a session: a strictly smaller codec mask wins, and with equal codec
// masks a strictly smaller domain mask wins.
func (d *Descriptor) NarrowerThan(o *Descriptor) bool {
	if d.Codecs != o.Codecs {
		return d.Codecs&o.Codecs == d.Codecs
	}
	return d.Domain != o.Domain && d.Domain&o.Domain == d.Domain
}

// Clone returns a deep copy.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	c.Parents = append([]ID(nil), d.Parents...)
	c.Children = append([]ID(nil), d.Children...)
	c.Menu = append([]MenuEntry(nil), d.Menu...)
	return &c
}

// CoreCaps are the platform-wide limits from the core capability table.
type CoreCaps struct {
	EncCodecs             Codec `json:"enc_codecs"`
	DecCodecs             Codec `json:"dec_codecs"`
	MaxSessionCount       int64 `json:"max_session_count"`
	MaxSecureSessionCount int64 `json:"max_secure_session_count"`
	MaxMBPF               int64 `json:"max_mbpf"`
	MaxMBPS               int64 `json:"max_mbps"`
	MaxMBPFHQ             int64 `json:"max_mbpf_hq"`
	MaxMBPSHQ             int64 `json:"max_mbps_hq"`
	MaxMBPFBFrame         int64 `json:"max_mbpf_b_frame"`
	MaxMBPSBFrame         int64 `json:"max_mbps_b_frame"`
	NumVPPPipe            int64 `json:"num_vpp_pipe"`
	SWPowerCollapse       int64 `json:"sw_pc"`
	SWPowerCollapseDelay  int64 `json:"sw_pc_delay"`
	FWUnload              int64 `json:"fw_unload"`
	FWUnloadDelay         int64 `json:"fw_unload_delay"`
	HWResponseTimeout     int64 `json:"hw_response_timeout"`
	DebugTimeout          int64 `json:"debug_timeout"`
	PrefixBufCountPix     int64 `json:"prefix_buf_count_pix"`
	PrefixBufSizePix      int64 `json:"prefix_buf_size_pix"`
	PrefixBufCountNonPix  int64 `json:"prefix_buf_count_non_pix"`
	PrefixBufSizeNonPix   int64 `json:"prefix_buf_size_non_pix"`
	PagefaultNonFatal     int64 `json:"pagefault_non_fatal"`
	PagetableCaching      int64 `json:"pagetable_caching"`
	DCVS                  int64 `json:"dcvs"`
	DecodeBatch           int64 `json:"decode_batch"`
	DecodeBatchTimeout    int64 `json:"decode_batch_timeout"`
	AVSyncWindowSize      int64 `json:"av_sync_window_size"`
}

// Supports reports whether the platform handles codec in domain.
func (c CoreCaps) Supports(codec Codec, domain Domain) bool {
	switch domain {
	case Encoder:
		return c.EncCodecs&codec == codec
	case Decoder:
		return c.DecCodecs&codec == codec
	}
	return false
}

// UBWCConfig is the compressed-buffer layout the platform programs into
// the video core.
type UBWCConfig struct {
	MaxChannels    int64 `json:"max_channels"`
	MalLength      int64 `json:"mal_length"`
	HighestBankBit int64 `json:"highest_bank_bit"`
	BankSwzlLevel  int64 `json:"bank_swzl_level"`
	BankSwz2Level  int64 `json:"bank_swz2_level"`
	BankSwz3Level  int64 `json:"bank_swz3_level"`
	BankSpreading  int64 `json:"bank_spreading"`
}

// CSCConfig holds the custom colour-space conversion coefficients.
type CSCConfig struct {
	MatrixCoeff []int64 `json:"matrix_coeff,omitempty"`
	BiasCoeff   []int64 `json:"bias_coeff,omitempty"`
	LimitCoeff  []int64 `json:"limit_coeff,omitempty"`
}

// Platform is an immutable, fully loaded capability table.
type Platform struct {
	Name         string       `json:"name"`
	Core         CoreCaps     `json:"core"`
	Capabilities []Descriptor `json:"capabilities"`
	UBWC         UBWCConfig   `json:"ubwc"`
	CSC          CSCConfig    `json:"csc"`

	// Hash is the domain-separated content hash of the table.
	Hash string `json:"hash"`
}

// Rows returns every descriptor declared for id, in table order.
func (p *Platform) Rows(id ID) []*Descriptor {
	var out []*Descriptor
	for i := range p.Capabilities {
		if p.Capabilities[i].ID == id {
			out = append(out, &p.Capabilities[i])
		}
	}
	return out
}

// Select picks the row of id that applies to a (codec, domain) session. It
// returns nil when no row matches, and a CONFIG_ERROR when no matching row
// is narrower than every other match.
func (p *Platform) Select(id ID, codec Codec, domain Domain) (*Descriptor, error) {
	var matches []*Descriptor
	for _, d := range p.Rows(id) {
		if d.Matches(codec, domain) {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
outer:
	for _, d := range matches {
		for _, o := range matches {
			if o != d && !d.NarrowerThan(o) {
				continue outer
			}
		}
		return d, nil
	}
	e := Errorf(CodeConfigError, id, "%d rows match %s %s and none is narrower", len(matches), codec, domain)
	e.Details = map[string]string{"codec": codec.String(), "domain": domain.String()}
	return nil, e
}

// PayloadType tags the layout of an EncodedProperty payload. Values follow
// the firmware's HFI payload type numbering.
type PayloadType uint32

const (
	PayloadNone      PayloadType = 0
	PayloadU32       PayloadType = 1
	PayloadS32       PayloadType = 2
	PayloadU64       PayloadType = 3
	PayloadS64       PayloadType = 4
	PayloadStructure PayloadType = 5
	PayloadBlob      PayloadType = 6
	PayloadString    PayloadType = 7
	PayloadQ16       PayloadType = 8
	PayloadU32Enum   PayloadType = 9
	Payload32Packed  PayloadType = 10
)

var payloadNames = map[PayloadType]string{
	PayloadNone:      "none",
	PayloadU32:       "u32",
	PayloadS32:       "s32",
	PayloadU64:       "u64",
	PayloadS64:       "s64",
	PayloadStructure: "structure",
	PayloadBlob:      "blob",
	PayloadString:    "string",
	PayloadQ16:       "q16",
	PayloadU32Enum:   "u32_enum",
	Payload32Packed:  "32_packed",
}

func (t PayloadType) String() string {
	if s, ok := payloadNames[t]; ok {
		return s
	}
	return fmt.Sprintf("payload(%d)", uint32(t))
}

// Known reports whether t is a payload type the firmware accepts.
func (t PayloadType) Known() bool {
	_, ok := payloadNames[t]
	return ok && t != PayloadNone
}

// EncodedProperty is one firmware property write: an id plus an opaque
// payload produced by the capability's set strategy.
type EncodedProperty struct {
	Cap          ID          `json:"cap"`
	HWPropertyID uint32      `json:"hw_property_id"`
	Port         Port        `json:"port"`
	PayloadType  PayloadType `json:"payload_type"`
	Payload      []byte      `json:"payload"`
}

// U32Payload encodes v as four little-endian bytes.
func U32Payload(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// Uint32 decodes a four byte payload. It returns false for any other size.
func (p EncodedProperty) Uint32() (uint32, bool) {
	if len(p.Payload) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(p.Payload), true
}
