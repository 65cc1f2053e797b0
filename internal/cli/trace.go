package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/firmware"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/registry"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Kind     string // optional - filter to one event kind
	Packets  bool
}

// TraceEvent is one journal event in the timeline.
type TraceEvent struct {
	Seq         int64     `json:"seq"`
	Kind        string    `json:"kind"`
	Cap         caps.ID   `json:"cap,omitempty"`
	External    uint32    `json:"external_id,omitempty"`
	Value       string    `json:"value,omitempty"`
	Changed     []caps.ID `json:"changed,omitempty"`
	HWProperty  uint32    `json:"hw_property_id,omitempty"`
	PayloadType string    `json:"payload_type,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// TracePacket is one property write re-serialized as a firmware packet.
type TracePacket struct {
	PacketID    uint32 `json:"packet_id"`
	PropertyID  uint32 `json:"property_id"`
	PayloadType string `json:"payload_type"`
	Port        uint32 `json:"port"`
	Size        uint32 `json:"size"`
	Value       uint32 `json:"value"`
}

// TraceResult holds the complete trace output of one session.
type TraceResult struct {
	Session  store.SessionRecord `json:"session"`
	Codec    string              `json:"codec"`
	Domain   string              `json:"domain"`
	Timeline []TraceEvent        `json:"timeline"`
	Packets  []TracePacket       `json:"packets,omitempty"`
	Stats    map[string]int      `json:"stats"`
}

// SessionListing is one row of the session list.
type SessionListing struct {
	ID        string `json:"id"`
	Codec     string `json:"codec"`
	Domain    string `json:"domain"`
	OpenedSeq int64  `json:"opened_seq"`
	ClosedSeq int64  `json:"closed_seq,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a session journal",
		Long: `Read back a journal written by "vidcaps set --db".

Without --session, lists every journaled session. With --session, shows the
session's events in seq order: opens, set requests with their changed lists,
starts, property writes, rejections and the close. --packets re-serializes
the accepted property writes into firmware packets and decodes them again.

Examples:
  vidcaps trace --db ./vidcaps.db
  vidcaps trace --db ./vidcaps.db --session 0192... --kind set
  vidcaps trace --db ./vidcaps.db --session 0192... --packets --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to trace")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind (open|set|start|write|reject|close)")
	cmd.Flags().BoolVar(&opts.Packets, "packets", false, "decode property writes as firmware packets")

	return cmd
}

// openJournal opens an existing journal. Opening a missing path would
// create an empty database, so it is checked first.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", path)}
	}
	return store.Open(path)
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	switch engine.EventKind(opts.Kind) {
	case "", engine.EventOpen, engine.EventSet, engine.EventStart, engine.EventWrite, engine.EventReject, engine.EventClose:
	default:
		return fail(formatter, ExitCommandError, &LoadError{Code: ErrCodeBadArgument, Message: fmt.Sprintf("--kind: unknown event kind %q", opts.Kind)})
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}
	defer st.Close()

	if opts.Session == "" {
		return listSessions(ctx, st, formatter)
	}

	rec, err := st.ReadSession(ctx, opts.Session)
	if errors.Is(err, sql.ErrNoRows) {
		return fail(formatter, ExitCommandError, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("session not found: %s", opts.Session)})
	}
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}
	events, err := st.ReadEvents(ctx, opts.Session)
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}

	// Menu names need the session graph. Without a usable table the
	// values are shown as integers.
	var g *registry.Graph
	if p, loadErr := loadPlatform(opts.Table); loadErr == nil {
		g, _ = registry.Build(p, rec.Codec, rec.Domain)
	}

	result := TraceResult{
		Session:  rec,
		Codec:    rec.Codec.String(),
		Domain:   rec.Domain.String(),
		Timeline: buildTimeline(events, g, engine.EventKind(opts.Kind)),
		Stats:    make(map[string]int),
	}
	for _, e := range events {
		result.Stats[string(e.Kind)]++
	}

	if opts.Packets {
		result.Packets, err = tracePackets(ctx, st, rec)
		if err != nil {
			return fail(formatter, ExitCommandError, err)
		}
	}

	if opts.Format == "json" {
		return formatter.Report(result, rec.ID, "", "")
	}
	return outputTraceText(formatter, result)
}

func listSessions(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	records, err := st.ListSessions(ctx)
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}
	listing := make([]SessionListing, 0, len(records))
	for _, r := range records {
		listing = append(listing, SessionListing{
			ID:        r.ID,
			Codec:     r.Codec.String(),
			Domain:    r.Domain.String(),
			OpenedSeq: r.OpenedSeq,
			ClosedSeq: r.ClosedSeq,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(listing)
	}
	if len(listing) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions found in database.")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tCODEC\tDOMAIN\tOPENED\tCLOSED")
	for _, l := range listing {
		closed := "-"
		if l.ClosedSeq != 0 {
			closed = fmt.Sprint(l.ClosedSeq)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", l.ID, l.Codec, l.Domain, l.OpenedSeq, closed)
	}
	return tw.Flush()
}

// buildTimeline converts journal events to timeline entries, keeping only
// kind when it is set.
func buildTimeline(events []engine.Event, g *registry.Graph, kind engine.EventKind) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	for _, e := range events {
		if kind != "" && e.Kind != kind {
			continue
		}
		te := TraceEvent{
			Seq:      e.Seq,
			Kind:     string(e.Kind),
			Cap:      e.Cap,
			External: e.External,
			Changed:  e.Changed,
			Error:    e.Err,
		}
		if e.Kind == engine.EventSet {
			te.Value = fmt.Sprint(e.Value)
			if g != nil {
				if d, err := g.Lookup(e.Cap); err == nil {
					te.Value = displayValue(d, e.Value)
				}
			}
		}
		if e.Property != nil {
			te.Cap = e.Property.Cap
			te.HWProperty = e.Property.HWPropertyID
			te.PayloadType = e.Property.PayloadType.String()
		}
		timeline = append(timeline, te)
	}
	return timeline
}

// tracePackets replays the journaled writes of rec through a packet writer
// and decodes the resulting queue.
func tracePackets(ctx context.Context, st *store.Store, rec store.SessionRecord) ([]TracePacket, error) {
	writes, err := st.ReadWrites(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	w := firmware.NewPacketWriter(rec.Domain, commandQueueSize)
	var packets []TracePacket
	flush := func() error {
		decoded, err := firmware.Decode(w.Drain())
		if err != nil {
			return err
		}
		for _, p := range decoded {
			v, _ := p.Uint32()
			packets = append(packets, TracePacket{
				PacketID:    p.PacketID,
				PropertyID:  p.PropertyID,
				PayloadType: p.PayloadType.String(),
				Port:        p.Port,
				Size:        p.Size,
				Value:       v,
			})
		}
		return nil
	}
	for _, p := range writes {
		err := w.WriteProperty(ctx, p)
		if errors.Is(err, firmware.ErrQueueFull) {
			if err = flush(); err == nil {
				err = w.WriteProperty(ctx, p)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("packet for %s: %w", p.Cap, err)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return packets, nil
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "Session %s (%s/%s)\n", result.Session.ID, result.Codec, result.Domain)
	fmt.Fprintf(w, "%d set, %d write, %d reject events\n\n",
		result.Stats[string(engine.EventSet)], result.Stats[string(engine.EventWrite)], result.Stats[string(engine.EventReject)])

	for _, e := range result.Timeline {
		switch engine.EventKind(e.Kind) {
		case engine.EventSet:
			name := e.Cap.String()
			if e.External != 0 {
				name = fmt.Sprintf("%s (0x%08x)", name, e.External)
			}
			fmt.Fprintf(w, "[%d] set %s = %s -> %v\n", e.Seq, name, e.Value, e.Changed)
		case engine.EventWrite:
			fmt.Fprintf(w, "[%d] write %s -> 0x%08x %s\n", e.Seq, e.Cap, e.HWProperty, e.PayloadType)
		case engine.EventReject:
			fmt.Fprintf(w, "[%d] reject %s: %s\n", e.Seq, e.Cap, e.Error)
		default:
			fmt.Fprintf(w, "[%d] %s\n", e.Seq, e.Kind)
		}
	}

	if len(result.Packets) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PACKET\tPROPERTY\tTYPE\tPORT\tVALUE")
		for _, p := range result.Packets {
			fmt.Fprintf(tw, "%d\t0x%08x\t%s\t0x%x\t0x%08x\n", p.PacketID, p.PropertyID, p.PayloadType, p.Port, p.Value)
		}
		return tw.Flush()
	}
	return nil
}
