package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/registry"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/table"
)

// Error code constants for failures outside the resolver itself. Resolver
// failures are reported with their own codes (OUT_OF_RANGE, ...).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeBadArgument = "E003" // Malformed codec, domain or assignment
	ErrCodeLoadFailed  = "E004" // CUE load or compile failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // Session graph could not be built
	ErrCodeWriteFailed = "E007" // File write error

	// ErrCodeCycle marks a dependency cycle found by cycle analysis. It
	// extends the table's E2xx validation codes.
	ErrCodeCycle = "E240"
)

// LoadError represents an error that occurred while loading a table or
// resolving command arguments against it.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// loadPlatform loads and validates the table at path, or the built-in
// Waipio table when path is empty.
func loadPlatform(path string) (*caps.Platform, error) {
	if path == "" {
		p, err := table.Waipio()
		if err != nil {
			return nil, convertTableError(err)
		}
		return p, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("table file not found: %s", path)}
	}
	p, err := table.LoadFile(path)
	if err != nil {
		return nil, convertTableError(err)
	}
	return p, nil
}

// convertTableError converts a table error to a LoadError with position
// info. A rejected table reports its first validation error.
func convertTableError(err error) *LoadError {
	var compileErr *table.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	var verrs table.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &LoadError{
			Code:    verrs[0].Code,
			Message: fmt.Sprintf("invalid table (%d error(s)), first: %s", len(verrs), verrs[0].Error()),
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// SessionFlags selects one (codec, domain) specialization.
type SessionFlags struct {
	Codec  string
	Domain string
}

func (f *SessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Codec, "codec", "h264", "codec (h264|hevc|vp9)")
	cmd.Flags().StringVar(&f.Domain, "domain", "enc", "session domain (enc|dec)")
}

func (f *SessionFlags) parse() (caps.Codec, caps.Domain, error) {
	codec, err := caps.ParseCodec(f.Codec)
	if err != nil {
		return 0, 0, &LoadError{Code: ErrCodeBadArgument, Message: fmt.Sprintf("--codec: %v", err)}
	}
	domain, err := caps.ParseDomain(f.Domain)
	if err != nil {
		return 0, 0, &LoadError{Code: ErrCodeBadArgument, Message: fmt.Sprintf("--domain: %v", err)}
	}
	return codec, domain, nil
}

// loadGraph loads the table named by the root options and builds the graph
// for the selected session. An unsupported pair keeps its CONFIG_ERROR code.
func loadGraph(opts *RootOptions, sf *SessionFlags) (*caps.Platform, *registry.Graph, error) {
	codec, domain, err := sf.parse()
	if err != nil {
		return nil, nil, err
	}
	p, err := loadPlatform(opts.Table)
	if err != nil {
		return nil, nil, err
	}
	g, err := registry.Build(p, codec, domain)
	if err != nil {
		return nil, nil, err
	}
	return p, g, nil
}

// assignment is one NAME=VALUE argument resolved against a graph. External
// is non-zero when the name was given as a control id ("0x009909ce=CBR").
type assignment struct {
	Raw      string
	Cap      caps.ID
	External uint32
	Value    int64
}

// parseAssignment resolves arg against g. Menu names are accepted as
// values. Unknown names fail with UNKNOWN_CAPABILITY and unparsable values
// with OUT_OF_RANGE.
func parseAssignment(g *registry.Graph, arg string) (assignment, error) {
	name, raw, ok := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return assignment{}, &LoadError{Code: ErrCodeBadArgument, Message: fmt.Sprintf("expected NAME=VALUE, got %q", arg)}
	}

	a := assignment{Raw: arg}
	var d *caps.Descriptor
	if strings.HasPrefix(strings.ToLower(name), "0x") {
		ext, err := strconv.ParseUint(name, 0, 32)
		if err != nil {
			return assignment{}, &LoadError{Code: ErrCodeBadArgument, Message: fmt.Sprintf("bad control id %q", name)}
		}
		a.External = uint32(ext)
		d, err = g.LookupExternal(a.External)
		if err != nil {
			return assignment{}, err
		}
	} else {
		var err error
		d, err = g.LookupName(name)
		if err != nil {
			return assignment{}, err
		}
	}
	a.Cap = d.ID

	v, err := d.ParseValue(raw)
	if err != nil {
		return assignment{}, err
	}
	a.Value = v
	return a, nil
}
