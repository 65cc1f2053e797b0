package cli

import (
	"fmt"
	"log/slog"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/registry"
)

// CapsOptions holds flags for the caps command.
type CapsOptions struct {
	*RootOptions
	Session     SessionFlags
	CommitOrder bool
}

// CapRow is one capability as a freshly opened session sees it.
type CapRow struct {
	Name         string    `json:"name"`
	Value        int64     `json:"value"`
	Display      string    `json:"display"`
	Min          int64     `json:"min"`
	Max          int64     `json:"max"`
	Default      int64     `json:"default"`
	Flags        string    `json:"flags"`
	Writable     bool      `json:"writable"`
	ExternalID   uint32    `json:"external_id,omitempty"`
	HWPropertyID uint32    `json:"hw_property_id,omitempty"`
	Parents      []caps.ID `json:"parents,omitempty"`
	Children     []caps.ID `json:"children,omitempty"`
}

// CapsResult is the capability listing of one session.
type CapsResult struct {
	Platform     string   `json:"platform"`
	Codec        string   `json:"codec"`
	Domain       string   `json:"domain"`
	MaxSessions  int64    `json:"max_sessions"`
	MaxMBPS      int64    `json:"max_mbps"`
	Capabilities []CapRow `json:"capabilities"`
}

// NewCapsCommand creates the caps command.
func NewCapsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CapsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "caps [NAME...]",
		Short: "List the capabilities of one codec/domain session",
		Long: `List every capability a session resolves for --codec and --domain, with
the value and live bounds it holds right after open (the initial adjust pass
has run). Names restrict the listing to those capabilities.

Examples:
  vidcaps caps --codec hevc --domain enc
  vidcaps caps BIT_RATE BITRATE_MODE LTR_COUNT
  vidcaps caps --commit-order --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCaps(opts, args, cmd)
		},
	}

	opts.Session.register(cmd)
	cmd.Flags().BoolVar(&opts.CommitOrder, "commit-order", false, "list in commit order instead of id order")

	return cmd
}

func runCaps(opts *CapsOptions, names []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	p, g, err := loadGraph(opts.RootOptions, &opts.Session)
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}

	ids := g.IDs()
	if opts.CommitOrder {
		ids = g.CommitOrder()
	}
	if len(names) > 0 {
		ids = make([]caps.ID, 0, len(names))
		for _, name := range names {
			d, err := g.LookupName(name)
			if err != nil {
				return fail(formatter, ExitFailure, err)
			}
			ids = append(ids, d.ID)
		}
	}

	sess, err := engine.Open(g, engine.WithLogger(slog.Default()))
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}
	defer sess.Close()

	result := CapsResult{
		Platform:     p.Name,
		Codec:        g.Codec().String(),
		Domain:       g.Domain().String(),
		MaxSessions:  p.Core.MaxSessionCount,
		MaxMBPS:      p.Core.MaxMBPS,
		Capabilities: make([]CapRow, 0, len(ids)),
	}
	for _, id := range ids {
		row, err := capRow(g, sess, id)
		if err != nil {
			return fail(formatter, ExitCommandError, err)
		}
		result.Capabilities = append(result.Capabilities, row)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputCapsText(formatter, result)
}

func capRow(g *registry.Graph, sess *engine.Session, id caps.ID) (CapRow, error) {
	d, err := g.Lookup(id)
	if err != nil {
		return CapRow{}, err
	}
	inst, err := sess.Get(id)
	if err != nil {
		return CapRow{}, err
	}
	return CapRow{
		Name:         id.String(),
		Value:        inst.Value,
		Display:      displayValue(d, inst.Value),
		Min:          inst.Bounds.Min,
		Max:          inst.Bounds.Max,
		Default:      d.Default,
		Flags:        d.Flags.String(),
		Writable:     d.Writable(),
		ExternalID:   d.ExternalID,
		HWPropertyID: d.HWPropertyID,
		Parents:      g.Parents(id),
		Children:     g.Children(id),
	}, nil
}

// displayValue renders v for people: menu names, bitrates in SI units,
// Q16 frame rates in whole frames per second, large counts with
// separators.
func displayValue(d *caps.Descriptor, v int64) string {
	if _, ok := d.MenuName(v); ok {
		return d.FormatValue(v)
	}
	switch d.ID {
	case caps.BitRate:
		return humanize.SIWithDigits(float64(v), 2, "bps")
	case caps.FrameRate, caps.OperatingRate:
		return fmt.Sprintf("%d fps", v>>16)
	case caps.MBPF, caps.MBPS, caps.LosslessMBPF, caps.BatchMBPF, caps.SecureMBPF, caps.PowerSaveMBPS:
		return humanize.Comma(v)
	}
	return strconv.FormatInt(v, 10)
}

func outputCapsText(formatter *OutputFormatter, result CapsResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "%s %s/%s: %d capabilities (max %d sessions, %s MB/s)\n\n",
		result.Platform, result.Codec, result.Domain, len(result.Capabilities),
		result.MaxSessions, humanize.Comma(result.MaxMBPS))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVALUE\tBOUNDS\tFLAGS")
	for _, row := range result.Capabilities {
		access := "ro"
		if row.Writable {
			access = "rw"
		}
		fmt.Fprintf(tw, "%s\t%s\t[%d, %d]\t%s %s\n", row.Name, row.Display, row.Min, row.Max, access, row.Flags)
		if formatter.Verbose && (len(row.Parents) > 0 || len(row.Children) > 0) {
			fmt.Fprintf(tw, "\tparents=%v children=%v\t\t\n", row.Parents, row.Children)
		}
	}
	return tw.Flush()
}
