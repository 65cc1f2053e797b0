package table

import (
	"fmt"
	"strings"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// Validation error codes (E200-E299)
const (
	// Core table errors (E200-E209)
	ErrCoreSessionCount = "E200" // session limit missing or inconsistent
	ErrCoreCodecs       = "E201" // no codec for a domain

	// Row errors (E210-E229)
	ErrBoundsInverted    = "E210" // min > max
	ErrDefaultOutOfRange = "E211" // default outside [min,max] or off step
	ErrDefaultNotMember  = "E212" // default not in menu or bitmask
	ErrEmptyMenu         = "E213" // MENU/BITMASK row without entries
	ErrMenuConflict      = "E214" // menu entries collide or fall outside bounds
	ErrUnknownAdjust     = "E215" // adjust rule not implemented
	ErrUnknownSet        = "E216" // set rule not implemented
	ErrRootWithParents   = "E217" // ROOT row declares parents
	ErrPortConflict      = "E218" // both INPUT_PORT and OUTPUT_PORT
	ErrNegativeStep      = "E219" // negative step
	ErrDuplicateEdge     = "E220" // parent or child listed more than once

	// Table-wide errors (E230-E239)
	ErrAmbiguousRows = "E230" // overlapping rows with equal specificity
	ErrDanglingEdge  = "E231" // parent or child has no row for any shared session
)

// ValidationError represents a table validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is returned by Load when a table fails validation.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors:\n%s", len(es), strings.Join(msgs, "\n"))
}

// Unwrap exposes every error as a CONFIG_ERROR so callers can test the
// code with caps.IsCode.
func (es ValidationErrors) Unwrap() error {
	return &caps.Error{Code: caps.CodeConfigError, Message: es.Error()}
}

// Validate checks a compiled platform against the table rules.
// Returns all errors found (does not fail-fast).
func Validate(p *caps.Platform) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateCore(&p.Core)...)
	for i := range p.Capabilities {
		errs = append(errs, validateRow(&p.Capabilities[i])...)
	}
	errs = append(errs, validateOverlaps(p)...)
	errs = append(errs, validateEdges(p)...)
	return errs
}

func validateCore(c *caps.CoreCaps) []ValidationError {
	var errs []ValidationError
	if c.MaxSessionCount <= 0 {
		errs = append(errs, ValidationError{
			Field:   "core.max_session_count",
			Message: "must be positive",
			Code:    ErrCoreSessionCount,
		})
	}
	if c.MaxSecureSessionCount > c.MaxSessionCount {
		errs = append(errs, ValidationError{
			Field:   "core.max_secure_session_count",
			Message: fmt.Sprintf("%d exceeds max_session_count %d", c.MaxSecureSessionCount, c.MaxSessionCount),
			Code:    ErrCoreSessionCount,
		})
	}
	if c.EncCodecs == 0 && c.DecCodecs == 0 {
		errs = append(errs, ValidationError{
			Field:   "core",
			Message: "platform supports no codec in either domain",
			Code:    ErrCoreCodecs,
		})
	}
	return errs
}

func validateRow(d *caps.Descriptor) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   d.ID.String() + field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    d.Line,
		})
	}

	if d.Min > d.Max {
		add(".min", ErrBoundsInverted, "min %d exceeds max %d", d.Min, d.Max)
	}
	if d.StepOrMask < 0 {
		add(".step", ErrNegativeStep, "step %d is negative", d.StepOrMask)
	}

	if d.Enumerated() {
		if len(d.Menu) == 0 || d.StepOrMask == 0 {
			add(".menu", ErrEmptyMenu, "%s row has no menu entries", d.Flags)
		}
		seen := make(map[int64]string, len(d.Menu))
		for _, m := range d.Menu {
			if prev, ok := seen[m.Value]; ok {
				add(".menu."+m.Name, ErrMenuConflict, "value %d already named %s", m.Value, prev)
			}
			seen[m.Value] = m.Name
			if !d.Bounds().Contains(m.Value) {
				add(".menu."+m.Name, ErrMenuConflict, "value %d outside %s", m.Value, d.Bounds())
			}
		}
	}

	if d.Min <= d.Max {
		switch {
		case !d.Bounds().Contains(d.Default):
			add(".value", ErrDefaultOutOfRange, "default %d outside %s", d.Default, d.Bounds())
		case d.Enumerated() && !d.Member(d.Default):
			add(".value", ErrDefaultNotMember, "default %d is not a member of mask %#x", d.Default, d.StepOrMask)
		case !d.Enumerated() && d.StepOrMask > 1 && (d.Default-d.Min)%d.StepOrMask != 0:
			add(".value", ErrDefaultOutOfRange, "default %d is not aligned to step %d", d.Default, d.StepOrMask)
		}
	}

	if !d.Adjust.Known() {
		add(".adjust", ErrUnknownAdjust, "unknown adjust rule %q", d.Adjust)
	}
	if !d.Set.Known() {
		add(".set", ErrUnknownSet, "unknown set rule %q", d.Set)
	}
	if d.Flags.Has(caps.FlagRoot) && len(d.Parents) > 0 {
		add(".parents", ErrRootWithParents, "ROOT capability declares %d parents", len(d.Parents))
	}
	if d.Flags.Has(caps.FlagInputPort | caps.FlagOutputPort) {
		add(".flags", ErrPortConflict, "INPUT_PORT and OUTPUT_PORT are exclusive")
	}
	for _, dup := range repeated(d.Parents) {
		add(".parents", ErrDuplicateEdge, "%s listed twice", dup)
	}
	for _, dup := range repeated(d.Children) {
		add(".children", ErrDuplicateEdge, "%s listed twice", dup)
	}
	return errs
}

// repeated returns each ID that occurs more than once in ids.
func repeated(ids []caps.ID) []caps.ID {
	seen := make(map[caps.ID]int, len(ids))
	var out []caps.ID
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			out = append(out, id)
		}
	}
	return out
}

// validateOverlaps reports rows of one capability that both match some
// session without either being narrower.
func validateOverlaps(p *caps.Platform) []ValidationError {
	var errs []ValidationError
	for _, id := range caps.AllIDs() {
		rows := p.Rows(id)
		for i := 0; i < len(rows); i++ {
			for j := i + 1; j < len(rows); j++ {
				a, b := rows[i], rows[j]
				if a.Codecs&b.Codecs == 0 || a.Domain&b.Domain == 0 {
					continue
				}
				if a.NarrowerThan(b) || b.NarrowerThan(a) {
					continue
				}
				msg := fmt.Sprintf("rows at lines %d and %d overlap on %s %s with equal specificity",
					a.Line, b.Line, a.Codecs&b.Codecs, a.Domain&b.Domain)
				errs = append(errs, ValidationError{
					Field:   id.String(),
					Message: msg,
					Code:    ErrAmbiguousRows,
					Line:    b.Line,
				})
			}
		}
	}
	return errs
}

// validateEdges reports parents and children that no row provides for any
// session the declaring row applies to.
func validateEdges(p *caps.Platform) []ValidationError {
	var errs []ValidationError
	for i := range p.Capabilities {
		d := &p.Capabilities[i]
		check := func(kind string, targets []caps.ID) {
			for _, t := range targets {
				if !overlapsAny(p.Rows(t), d) {
					errs = append(errs, ValidationError{
						Field:   d.ID.String() + "." + kind,
						Message: fmt.Sprintf("%s has no row for %s %s", t, d.Codecs, d.Domain),
						Code:    ErrDanglingEdge,
						Line:    d.Line,
					})
				}
			}
		}
		check("parents", d.Parents)
		check("children", d.Children)
	}
	return errs
}

func overlapsAny(rows []*caps.Descriptor, d *caps.Descriptor) bool {
	for _, r := range rows {
		if r.Codecs&d.Codecs != 0 && r.Domain&d.Domain != 0 {
			return true
		}
	}
	return false
}
