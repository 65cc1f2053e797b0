package table

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

//go:embed schema.cue
var schemaSource []byte

//go:embed platforms/waipio.cue
var waipioSource []byte

// DDR memory types reported by the SoC. LPDDR4 parts need a lower UBWC
// highest bank bit than the table default.
const (
	DDRTypeLPDDR4  uint32 = 0x6
	DDRTypeLPDDR4X uint32 = 0x7
	DDRTypeLPDDR5  uint32 = 0x8
	DDRTypeLPDDR5X uint32 = 0x9
)

const lpddr4HighestBankBit = 0xf

type options struct {
	ddrType uint32
}

// Option configures table compilation.
type Option func(*options)

// WithDDRType adjusts the UBWC layout for the memory type the platform
// booted with. Zero leaves the table default.
func WithDDRType(t uint32) Option {
	return func(o *options) {
		o.ddrType = t
	}
}

// rowDoc mirrors one #Cap row. Menus are read separately so that entry
// order survives.
type rowDoc struct {
	Cap      string   `json:"cap"`
	Domain   []string `json:"domain"`
	Codecs   []string `json:"codecs"`
	Min      int64    `json:"min"`
	Max      int64    `json:"max"`
	Value    int64    `json:"value"`
	Step     *int64   `json:"step"`
	CID      uint32   `json:"cid"`
	HFI      uint32   `json:"hfi"`
	Flags    []string `json:"flags"`
	Parents  []string `json:"parents"`
	Children []string `json:"children"`
	Adjust   string   `json:"adjust"`
	Set      string   `json:"set"`
}

type coreDoc struct {
	EncCodecs             []string `json:"enc_codecs"`
	DecCodecs             []string `json:"dec_codecs"`
	MaxSessionCount       int64    `json:"max_session_count"`
	MaxSecureSessionCount int64    `json:"max_secure_session_count"`
	MaxMBPF               int64    `json:"max_mbpf"`
	MaxMBPS               int64    `json:"max_mbps"`
	MaxMBPFHQ             int64    `json:"max_mbpf_hq"`
	MaxMBPSHQ             int64    `json:"max_mbps_hq"`
	MaxMBPFBFrame         int64    `json:"max_mbpf_b_frame"`
	MaxMBPSBFrame         int64    `json:"max_mbps_b_frame"`
	NumVPPPipe            int64    `json:"num_vpp_pipe"`
	SWPowerCollapse       int64    `json:"sw_pc"`
	SWPowerCollapseDelay  int64    `json:"sw_pc_delay"`
	FWUnload              int64    `json:"fw_unload"`
	FWUnloadDelay         int64    `json:"fw_unload_delay"`
	HWResponseTimeout     int64    `json:"hw_response_timeout"`
	DebugTimeout          int64    `json:"debug_timeout"`
	PrefixBufCountPix     int64    `json:"prefix_buf_count_pix"`
	PrefixBufSizePix      int64    `json:"prefix_buf_size_pix"`
	PrefixBufCountNonPix  int64    `json:"prefix_buf_count_non_pix"`
	PrefixBufSizeNonPix   int64    `json:"prefix_buf_size_non_pix"`
	PagefaultNonFatal     int64    `json:"pagefault_non_fatal"`
	PagetableCaching      int64    `json:"pagetable_caching"`
	DCVS                  int64    `json:"dcvs"`
	DecodeBatch           int64    `json:"decode_batch"`
	DecodeBatchTimeout    int64    `json:"decode_batch_timeout"`
	AVSyncWindowSize      int64    `json:"av_sync_window_size"`
}

// Waipio loads the built-in Waipio table.
func Waipio(opts ...Option) (*caps.Platform, error) {
	return Load("waipio.cue", waipioSource, opts...)
}

// WaipioSource returns a copy of the embedded Waipio table source.
func WaipioSource() []byte {
	return slices.Clone(waipioSource)
}

// LoadFile compiles and validates a table from disk.
func LoadFile(path string, opts ...Option) (*caps.Platform, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return Load(filepath.Base(path), src, opts...)
}

// Load compiles src and rejects it if validation reports any error. A
// rejected table is returned as ValidationErrors.
func Load(filename string, src []byte, opts ...Option) (*caps.Platform, error) {
	p, err := CompileBytes(filename, src, opts...)
	if err != nil {
		return nil, err
	}
	if errs := Validate(p); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return p, nil
}

// CompileBytes unifies src with the table schema and compiles the result.
func CompileBytes(filename string, src []byte, opts ...Option) (*caps.Platform, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(schema.Unify(v), opts...)
}

// Compile converts a unified CUE table into a Platform. The value must
// already carry the schema constraints.
func Compile(v cue.Value, opts ...Option) (*caps.Platform, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	p := &caps.Platform{}
	name, err := v.LookupPath(cue.ParsePath("platform")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	p.Name = name

	if p.Core, err = compileCore(v.LookupPath(cue.ParsePath("core"))); err != nil {
		return nil, err
	}

	rows, err := v.LookupPath(cue.ParsePath("caps")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for rows.Next() {
		d, err := compileRow(rows.Value())
		if err != nil {
			return nil, err
		}
		p.Capabilities = append(p.Capabilities, *d)
	}

	if ubwc := v.LookupPath(cue.ParsePath("ubwc")); ubwc.Exists() {
		if err := ubwc.Decode(&p.UBWC); err != nil {
			return nil, formatCUEError(err)
		}
	}
	switch o.ddrType {
	case DDRTypeLPDDR4, DDRTypeLPDDR4X:
		p.UBWC.HighestBankBit = lpddr4HighestBankBit
	}
	if csc := v.LookupPath(cue.ParsePath("csc")); csc.Exists() {
		if err := csc.Decode(&p.CSC); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if p.Hash, err = caps.TableHash(p); err != nil {
		return nil, err
	}
	return p, nil
}

func compileCore(v cue.Value) (caps.CoreCaps, error) {
	var doc coreDoc
	if err := v.Decode(&doc); err != nil {
		return caps.CoreCaps{}, formatCUEError(err)
	}
	enc, err := parseCodecs(doc.EncCodecs, v.LookupPath(cue.ParsePath("enc_codecs")).Pos(), "core.enc_codecs")
	if err != nil {
		return caps.CoreCaps{}, err
	}
	dec, err := parseCodecs(doc.DecCodecs, v.LookupPath(cue.ParsePath("dec_codecs")).Pos(), "core.dec_codecs")
	if err != nil {
		return caps.CoreCaps{}, err
	}
	return caps.CoreCaps{
		EncCodecs:             enc,
		DecCodecs:             dec,
		MaxSessionCount:       doc.MaxSessionCount,
		MaxSecureSessionCount: doc.MaxSecureSessionCount,
		MaxMBPF:               doc.MaxMBPF,
		MaxMBPS:               doc.MaxMBPS,
		MaxMBPFHQ:             doc.MaxMBPFHQ,
		MaxMBPSHQ:             doc.MaxMBPSHQ,
		MaxMBPFBFrame:         doc.MaxMBPFBFrame,
		MaxMBPSBFrame:         doc.MaxMBPSBFrame,
		NumVPPPipe:            doc.NumVPPPipe,
		SWPowerCollapse:       doc.SWPowerCollapse,
		SWPowerCollapseDelay:  doc.SWPowerCollapseDelay,
		FWUnload:              doc.FWUnload,
		FWUnloadDelay:         doc.FWUnloadDelay,
		HWResponseTimeout:     doc.HWResponseTimeout,
		DebugTimeout:          doc.DebugTimeout,
		PrefixBufCountPix:     doc.PrefixBufCountPix,
		PrefixBufSizePix:      doc.PrefixBufSizePix,
		PrefixBufCountNonPix:  doc.PrefixBufCountNonPix,
		PrefixBufSizeNonPix:   doc.PrefixBufSizeNonPix,
		PagefaultNonFatal:     doc.PagefaultNonFatal,
		PagetableCaching:      doc.PagetableCaching,
		DCVS:                  doc.DCVS,
		DecodeBatch:           doc.DecodeBatch,
		DecodeBatchTimeout:    doc.DecodeBatchTimeout,
		AVSyncWindowSize:      doc.AVSyncWindowSize,
	}, nil
}

func compileRow(v cue.Value) (*caps.Descriptor, error) {
	var row rowDoc
	if err := v.Decode(&row); err != nil {
		return nil, formatCUEError(err)
	}
	field := func(name string) token.Pos {
		return v.LookupPath(cue.ParsePath(name)).Pos()
	}

	id, err := caps.ParseID(row.Cap)
	if err != nil {
		return nil, &CompileError{Field: "cap", Message: err.Error(), Pos: field("cap")}
	}
	d := &caps.Descriptor{
		ID:           id,
		Min:          row.Min,
		Max:          row.Max,
		Default:      row.Value,
		ExternalID:   row.CID,
		HWPropertyID: row.HFI,
		Adjust:       caps.AdjustRule(row.Adjust),
		Set:          caps.SetRule(row.Set),
		Line:         v.Pos().Line(),
	}

	for _, s := range row.Domain {
		dom, err := caps.ParseDomain(s)
		if err != nil {
			return nil, &CompileError{Field: row.Cap + ".domain", Message: err.Error(), Pos: field("domain")}
		}
		d.Domain |= dom
	}
	if d.Codecs, err = parseCodecs(row.Codecs, field("codecs"), row.Cap+".codecs"); err != nil {
		return nil, err
	}
	for _, s := range row.Flags {
		f, err := caps.ParseFlag(s)
		if err != nil {
			return nil, &CompileError{Field: row.Cap + ".flags", Message: err.Error(), Pos: field("flags")}
		}
		d.Flags |= f
	}
	if d.Parents, err = parseEdges(row.Parents, field("parents"), row.Cap+".parents"); err != nil {
		return nil, err
	}
	if d.Children, err = parseEdges(row.Children, field("children"), row.Cap+".children"); err != nil {
		return nil, err
	}

	if menu := v.LookupPath(cue.ParsePath("menu")); menu.Exists() {
		it, err := menu.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for it.Next() {
			val, err := it.Value().Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			d.Menu = append(d.Menu, caps.MenuEntry{Name: it.Selector().Unquoted(), Value: val})
		}
	}

	switch {
	case row.Step != nil:
		d.StepOrMask = *row.Step
	case d.Flags&caps.FlagMenu != 0:
		for _, m := range d.Menu {
			if m.Value < 0 || m.Value > 62 {
				return nil, &CompileError{
					Field:   row.Cap + ".menu." + m.Name,
					Message: fmt.Sprintf("menu value %d does not fit a 63-bit mask", m.Value),
					Pos:     field("menu"),
				}
			}
			d.StepOrMask |= int64(1) << uint(m.Value)
		}
	case d.Flags&caps.FlagBitmask != 0:
		for _, m := range d.Menu {
			d.StepOrMask |= m.Value
		}
	default:
		d.StepOrMask = 1
	}
	return d, nil
}

func parseCodecs(names []string, pos token.Pos, field string) (caps.Codec, error) {
	var mask caps.Codec
	for _, s := range names {
		c, err := caps.ParseCodec(s)
		if err != nil {
			return 0, &CompileError{Field: field, Message: err.Error(), Pos: pos}
		}
		mask |= c
	}
	return mask, nil
}

func parseEdges(names []string, pos token.Pos, field string) ([]caps.ID, error) {
	var ids []caps.ID
	for _, s := range names {
		id, err := caps.ParseID(s)
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: pos}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
