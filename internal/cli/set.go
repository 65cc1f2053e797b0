package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/firmware"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/store"
)

// commandQueueSize bounds the packet queue of one CLI commit.
const commandQueueSize = 64 << 10

// SetOptions holds flags for the set command.
type SetOptions struct {
	*RootOptions
	Session  SessionFlags
	Database string
	Stream   bool
	Commit   bool

	// IDs allows overriding the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs engine.IDGenerator
}

// SetStepResult is the outcome of one NAME=VALUE argument.
type SetStepResult struct {
	Assignment string    `json:"assignment"`
	Cap        caps.ID   `json:"cap,omitempty"`
	Value      string    `json:"value,omitempty"`
	Changed    []caps.ID `json:"changed,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// CommitSummary describes one commit into the packet queue.
type CommitSummary struct {
	Phase     string    `json:"phase"` // "initial" or "final"
	Committed []caps.ID `json:"committed"`
	Internal  []caps.ID `json:"internal,omitempty"`
	Packets   int       `json:"packets"`
	Bytes     int       `json:"bytes"`
	Rejected  caps.ID   `json:"rejected,omitempty"`
}

// SetResult holds the overall set result.
type SetResult struct {
	Session   string          `json:"session"`
	Codec     string          `json:"codec"`
	Domain    string          `json:"domain"`
	Streaming bool            `json:"streaming"`
	Steps     []SetStepResult `json:"steps"`
	Commits   []CommitSummary `json:"commits,omitempty"`
	Dirty     []caps.ID       `json:"dirty"`
	StateHash string          `json:"state_hash,omitempty"`
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set NAME=VALUE...",
		Short: "Apply set requests to a fresh session",
		Long: `Open a session for --codec and --domain and apply each NAME=VALUE in order.

NAME is a capability name or a control id in hex (0x009909ce). VALUE is an
integer literal or a menu name. Each request reports the capabilities whose
value or bounds changed; the first rejected request stops the run.

With --stream the initial configuration is committed and the session started
before the requests, so only dynamically settable capabilities are accepted.
With --commit the dirty capabilities are committed into a firmware packet
queue after the requests. With --db every event is appended to a SQLite
journal that trace and replay can read back.

Exit codes:
  0 - Every request and commit succeeded
  1 - A request or commit was rejected
  2 - Command error (bad flags, table or database problems)

Examples:
  vidcaps set BITRATE_MODE=CBR LTR_COUNT=0
  vidcaps set --commit 0x009909ce=VBR LTR_COUNT=2
  vidcaps set --stream --db ./vidcaps.db BIT_RATE=4000000`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(opts, args, cmd)
		},
	}

	opts.Session.register(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "append the session journal to this SQLite database")
	cmd.Flags().BoolVar(&opts.Stream, "stream", false, "commit and start the session before the requests")
	cmd.Flags().BoolVar(&opts.Commit, "commit", false, "commit dirty capabilities after the requests")

	return cmd
}

func runSet(opts *SetOptions, args []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	p, g, err := loadGraph(opts.RootOptions, &opts.Session)
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}

	managerOpts := []engine.Option{engine.WithLogger(slog.Default())}
	if opts.IDs != nil {
		managerOpts = append(managerOpts, engine.WithIDGenerator(opts.IDs))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return fail(formatter, ExitCommandError, err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		last, err := st.LastSeq(ctx)
		if err != nil {
			return fail(formatter, ExitCommandError, err)
		}
		formatter.VerboseLog("Appending to %s after seq %d", opts.Database, last)
		managerOpts = append(managerOpts, engine.WithJournal(st), engine.WithClock(engine.NewClockAt(last)))
	}

	manager := engine.NewManager(p, managerOpts...)
	sess, err := manager.Open(g.Codec(), g.Domain())
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}
	defer sess.Close()

	result := &SetResult{
		Session: sess.ID(),
		Codec:   g.Codec().String(),
		Domain:  g.Domain().String(),
		Steps:   make([]SetStepResult, 0, len(args)),
	}
	writer := firmware.NewPacketWriter(g.Domain(), commandQueueSize)

	runErr := applySet(ctx, opts, sess, writer, args, result)

	result.Streaming = sess.State() == engine.StateStreaming
	result.Dirty = sess.Dirty()
	if hash, err := sess.StateHash(); err == nil {
		result.StateHash = hash
	}
	if err := sess.Close(); err != nil && runErr == nil {
		runErr = err
	}

	code, message := "", ""
	if runErr != nil {
		code, message = errorCode(runErr), runErr.Error()
	}
	if opts.Format == "json" {
		if err := formatter.Report(result, result.Session, code, message); err != nil {
			return err
		}
	} else {
		outputSetText(formatter, result)
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, code, runErr)
	}
	return nil
}

// applySet runs the optional streaming prelude, the requests and the
// optional final commit, recording each outcome in result.
func applySet(ctx context.Context, opts *SetOptions, sess *engine.Session, writer *firmware.PacketWriter, args []string, result *SetResult) error {
	commit := func(phase string) error {
		report, err := sess.Commit(ctx, writer)
		summary := CommitSummary{Phase: phase, Packets: writer.Len()}
		summary.Bytes = len(writer.Drain())
		if report != nil {
			summary.Committed = report.Committed
			summary.Internal = report.Internal
		}
		var ce *engine.CommitError
		if errors.As(err, &ce) {
			summary.Rejected = ce.Cap
		}
		result.Commits = append(result.Commits, summary)
		return err
	}

	if opts.Stream {
		if err := commit("initial"); err != nil {
			return err
		}
		if err := sess.Start(); err != nil {
			return err
		}
	}

	for _, arg := range args {
		step := SetStepResult{Assignment: arg}
		a, err := parseAssignment(sess.Graph(), arg)
		if err != nil {
			step.Error = errorCode(err)
			result.Steps = append(result.Steps, step)
			return err
		}
		step.Cap = a.Cap
		if d, lookupErr := sess.Graph().Lookup(a.Cap); lookupErr == nil {
			step.Value = displayValue(d, a.Value)
		}

		var changed []caps.ID
		if a.External != 0 {
			changed, err = sess.SetExternal(a.External, a.Value)
		} else {
			changed, err = sess.Set(a.Cap, a.Value)
		}
		if err != nil {
			step.Error = errorCode(err)
			result.Steps = append(result.Steps, step)
			return err
		}
		step.Changed = changed
		result.Steps = append(result.Steps, step)
	}

	if opts.Commit {
		return commit("final")
	}
	return nil
}

func outputSetText(formatter *OutputFormatter, result *SetResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "session %s (%s/%s)\n", result.Session, result.Codec, result.Domain)

	for _, step := range result.Steps {
		if step.Error != "" {
			fmt.Fprintf(w, "  ✗ %s: %s\n", step.Assignment, step.Error)
			continue
		}
		fmt.Fprintf(w, "  ✓ %s = %s -> changed %v\n", step.Cap, step.Value, step.Changed)
	}

	for _, c := range result.Commits {
		fmt.Fprintf(w, "%s commit: %d committed, %d internal, %d packets (%s)\n",
			c.Phase, len(c.Committed), len(c.Internal), c.Packets, humanize.Bytes(uint64(c.Bytes)))
		if c.Rejected != caps.InvalidID {
			fmt.Fprintf(w, "  ✗ rejected at %s\n", c.Rejected)
		}
	}

	if result.Streaming {
		fmt.Fprintln(w, "state: streaming")
	}
	if len(result.Dirty) == 0 {
		fmt.Fprintln(w, "dirty: none")
	} else {
		fmt.Fprintf(w, "dirty: %d capabilities\n", len(result.Dirty))
		formatter.VerboseLog("dirty: %v", result.Dirty)
	}
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
