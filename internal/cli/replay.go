package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session       string `json:"session"`
	Codec         string `json:"codec"`
	Domain        string `json:"domain"`
	Sets          int    `json:"sets"`
	Writes        int    `json:"writes"`
	Streaming     bool   `json:"streaming"`
	StateHash     string `json:"state_hash,omitempty"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	AllConsistent bool                  `json:"all_consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay journaled sessions and verify them",
		Long: `Rebuild every journaled session (or --session) against the capability table.

Each session is opened fresh and its set and start events are re-run in seq
order. Every set must reproduce the changed list the journal recorded, and
two independent replays must reach the same state hash.

Exit codes:
  0 - All sessions replay consistently
  1 - A replay diverged from the journal or was not deterministic
  2 - Command error (database not found, etc.)

Examples:
  vidcaps replay --db ./vidcaps.db
  vidcaps replay --db ./vidcaps.db --session 0192...
  vidcaps replay --db ./vidcaps.db --table ./board.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	p, err := loadPlatform(opts.Table)
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}
	defer st.Close()

	var ids []string
	if opts.Session != "" {
		if _, err := st.ReadSession(ctx, opts.Session); errors.Is(err, sql.ErrNoRows) {
			return fail(formatter, ExitCommandError, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("session not found: %s", opts.Session)})
		} else if err != nil {
			return fail(formatter, ExitCommandError, err)
		}
		ids = []string{opts.Session}
	} else {
		records, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		for _, r := range records {
			ids = append(ids, r.ID)
		}
	}

	if len(ids) == 0 {
		if opts.Format == "json" {
			return formatter.Report(ReplayResult{Sessions: []ReplaySessionResult{}, AllConsistent: true}, "", "", "")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in database.")
		return nil
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(ids)),
		TotalSessions: len(ids),
		AllConsistent: true,
	}
	for _, id := range ids {
		formatter.VerboseLog("Replaying session %s", id)
		r, err := replayAndVerify(ctx, st, p, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", id), err)
		}
		result.Sessions = append(result.Sessions, r)
		if !r.Deterministic || r.Error != "" {
			result.AllConsistent = false
		}
	}

	if opts.Format == "json" {
		code, message := "", ""
		if !result.AllConsistent {
			code, message = "E_REPLAY", "replay verification failed"
		}
		if err := formatter.Report(result, "", code, message); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllConsistent {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// replayAndVerify replays one session twice. A divergence from the journal
// or a request the table now rejects is reported on the result; only
// journal access failures are returned as errors.
func replayAndVerify(ctx context.Context, st *store.Store, p *caps.Platform, id string) (ReplaySessionResult, error) {
	out := ReplaySessionResult{Session: id}

	first, err := st.Replay(ctx, p, id, engine.WithLogger(slog.Default()))
	if err != nil {
		if errors.Is(err, store.ErrReplayDiverged) || caps.CodeOf(err) != "" {
			out.Error = err.Error()
			return out, nil
		}
		return out, err
	}
	second, err := st.Replay(ctx, p, id, engine.WithLogger(slog.Default()))
	if err != nil {
		return out, err
	}

	out.Codec = first.Session.Codec.String()
	out.Domain = first.Session.Domain.String()
	out.Sets = first.Sets
	out.Writes = first.Writes
	out.Streaming = first.Streaming

	h1, err := caps.Hash(caps.HashDomainState, first.State)
	if err != nil {
		return out, err
	}
	h2, err := caps.Hash(caps.HashDomainState, second.State)
	if err != nil {
		return out, err
	}
	out.StateHash = h1
	out.Deterministic = h1 == h2
	return out, nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Deterministic || s.Error != "" {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, s.Session)

		if s.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", s.Error)
			fmt.Fprintln(w)
			continue
		}
		fmt.Fprintf(w, "  %s/%s: %d sets, %d writes\n", s.Codec, s.Domain, s.Sets, s.Writes)
		if formatter.Verbose {
			fmt.Fprintf(w, "  Streaming: %v\n", s.Streaming)
			fmt.Fprintf(w, "  State hash: %s\n", s.StateHash)
		}
		if !s.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
		}
		fmt.Fprintln(w)
	}

	if result.AllConsistent {
		fmt.Fprintln(w, "✓ All sessions replay consistently")
		return
	}
	fmt.Fprintln(w, "✗ Replay verification failed")
}
