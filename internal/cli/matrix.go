package cli

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/firmware"
)

// MatrixOptions holds flags for the matrix command.
type MatrixOptions struct {
	*RootOptions

	// IDs allows overriding the session id generator (for testing).
	IDs engine.IDGenerator
}

// MatrixRow is the first-commit summary of one (codec, domain) pair.
type MatrixRow struct {
	Codec        string `json:"codec"`
	Domain       string `json:"domain"`
	Supported    bool   `json:"supported"`
	Session      string `json:"session,omitempty"`
	Capabilities int    `json:"capabilities,omitempty"`
	Writes       int    `json:"writes,omitempty"`
	Internal     int    `json:"internal,omitempty"`
	QueueBytes   int    `json:"queue_bytes,omitempty"`
	StateHash    string `json:"state_hash,omitempty"`
	Error        string `json:"error,omitempty"`
}

// MatrixResult holds the overall matrix result.
type MatrixResult struct {
	Platform string      `json:"platform"`
	Rows     []MatrixRow `json:"rows"`
	Failed   int         `json:"failed"`
}

// NewMatrixCommand creates the matrix command.
func NewMatrixCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatrixOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Open and commit every supported codec/domain session",
		Long: `Open one session per supported codec and domain, commit each session's full
initial configuration into its own firmware packet queue, and summarize the
result. Sessions are committed in parallel, in batches no larger than the
platform's session limit.

Exit codes:
  0 - Every supported session committed
  1 - At least one session failed
  2 - Command error (table problems)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatrix(opts, cmd)
		},
	}

	return cmd
}

type sessionKey struct {
	codec  caps.Codec
	domain caps.Domain
}

func runMatrix(opts *MatrixOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	p, err := loadPlatform(opts.Table)
	if err != nil {
		return fail(formatter, ExitCommandError, err)
	}

	var supported []sessionKey
	rows := make(map[sessionKey]*MatrixRow)
	var order []sessionKey
	for _, domain := range []caps.Domain{caps.Encoder, caps.Decoder} {
		for _, codec := range []caps.Codec{caps.H264, caps.HEVC, caps.VP9} {
			k := sessionKey{codec, domain}
			order = append(order, k)
			rows[k] = &MatrixRow{Codec: codec.String(), Domain: domain.String(), Supported: p.Core.Supports(codec, domain)}
			if rows[k].Supported {
				supported = append(supported, k)
			}
		}
	}

	managerOpts := []engine.Option{engine.WithLogger(slog.Default())}
	if opts.IDs != nil {
		managerOpts = append(managerOpts, engine.WithIDGenerator(opts.IDs))
	}
	manager := engine.NewManager(p, managerOpts...)

	batch := int(p.Core.MaxSessionCount)
	if batch < 1 {
		batch = 1
	}
	for start := 0; start < len(supported); start += batch {
		end := min(start+batch, len(supported))
		formatter.VerboseLog("Committing %d session(s)", end-start)
		commitBatch(ctx, manager, supported[start:end], rows)
	}

	result := MatrixResult{Platform: p.Name, Rows: make([]MatrixRow, 0, len(order))}
	for _, k := range order {
		if rows[k].Error != "" {
			result.Failed++
		}
		result.Rows = append(result.Rows, *rows[k])
	}

	if opts.Format == "json" {
		code, message := "", ""
		if result.Failed > 0 {
			code, message = string(caps.CodePropertyRejected), fmt.Sprintf("%d session(s) failed", result.Failed)
		}
		if err := formatter.Report(result, "", code, message); err != nil {
			return err
		}
	} else if err := outputMatrixText(formatter, result); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d session(s) failed", result.Failed))
	}
	return nil
}

// commitBatch opens one session per key, commits them all in parallel and
// closes them again. Failures are recorded on the rows.
func commitBatch(ctx context.Context, manager *engine.Manager, keys []sessionKey, rows map[sessionKey]*MatrixRow) {
	defer func() {
		if err := manager.CloseAll(); err != nil {
			slog.Warn("closing matrix sessions", "error", err)
		}
	}()

	writers := make(map[string]*firmware.PacketWriter, len(keys))
	bySession := make(map[string]sessionKey, len(keys))
	for _, k := range keys {
		sess, err := manager.Open(k.codec, k.domain)
		if err != nil {
			rows[k].Error = errorCode(err)
			continue
		}
		writers[sess.ID()] = firmware.NewPacketWriter(k.domain, commandQueueSize)
		bySession[sess.ID()] = k
		rows[k].Session = sess.ID()
		rows[k].Capabilities = sess.Graph().Len()
	}

	reports, err := manager.CommitAll(ctx, func(s *engine.Session) firmware.PropertyEncoder {
		return writers[s.ID()]
	})
	if err != nil {
		slog.Warn("matrix commit failed", "error", err)
	}

	for id, k := range bySession {
		row := rows[k]
		sess, ok := manager.Session(id)
		if !ok {
			row.Error = string(caps.CodeSessionClosed)
			continue
		}
		report := reports[id]
		if report != nil {
			row.Writes = len(report.Writes)
			row.Internal = len(report.Internal)
		}
		if dirty := sess.Dirty(); len(dirty) > 0 {
			row.Error = fmt.Sprintf("%s: %d capabilities left dirty", caps.CodePropertyRejected, len(dirty))
			continue
		}

		queue := writers[id].Bytes()
		row.QueueBytes = len(queue)
		packets, decodeErr := firmware.Decode(queue)
		if decodeErr != nil {
			row.Error = decodeErr.Error()
			continue
		}
		if len(packets) != row.Writes {
			row.Error = fmt.Sprintf("queue holds %d packets for %d writes", len(packets), row.Writes)
			continue
		}
		if hash, hashErr := sess.StateHash(); hashErr == nil {
			row.StateHash = hash
		}
	}
}

func outputMatrixText(formatter *OutputFormatter, result MatrixResult) error {
	fmt.Fprintf(formatter.Writer, "%s session matrix\n\n", result.Platform)

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODEC\tDOMAIN\tCAPS\tWRITES\tINTERNAL\tQUEUE\tSTATE")
	for _, row := range result.Rows {
		if !row.Supported {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\tunsupported\n", row.Codec, row.Domain)
			continue
		}
		state := "✓ " + shortHash(row.StateHash)
		if row.Error != "" {
			state = "✗ " + row.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			row.Codec, row.Domain, row.Capabilities, row.Writes, row.Internal,
			humanize.Bytes(uint64(row.QueueBytes)), state)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if result.Failed > 0 {
		fmt.Fprintf(formatter.Writer, "\n✗ %d session(s) failed\n", result.Failed)
		return nil
	}
	fmt.Fprintln(formatter.Writer, "\n✓ All supported sessions committed")
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
