package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/Zuo-Peng/vmon/internal/archive"
	"github.com/Zuo-Peng/vmon/internal/replay"
	"github.com/Zuo-Peng/vmon/internal/schedule"
)

func replayCmd(g *globals) *cobra.Command {
	var format string
	var record, fromArchive bool

	cmd := &cobra.Command{
		Use:   "replay <sessionId>",
		Short: "Stream a session recording to stdout",
		Long: `Fetches the first recording chunk, then keeps tailing new chunks while the
visitor is still on the site. Tailing stops after tail_idle_ceiling empty polls.

Output is one line per recorded event (--format text) or NDJSON (--format ndjson).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := replay.ParseFormat(format)
			if err != nil {
				return err
			}
			if record && fromArchive {
				return errors.New("--record and --from-archive are exclusive")
			}

			e, err := g.setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			var fetcher replay.ChunkFetcher
			factory := replay.WriterFactory(os.Stdout, f)
			opts := replay.DialogOptions{
				Delay:       e.cfg.TailDelay.Duration,
				IdleCeiling: e.cfg.TailIdleCeiling,
			}

			if record || fromArchive {
				db, err := archive.OpenDB(e.cfg.ArchiveDB)
				if err != nil {
					return err
				}
				defer db.Close()
				if fromArchive {
					// a stored recording is complete: one empty page ends it
					fetcher = db
					opts.Delay, opts.IdleCeiling = 0, 1
				} else {
					factory = replay.Tee(factory, db.Factory())
				}
			}
			if fetcher == nil {
				client, err := newClient(e.cfg)
				if err != nil {
					return err
				}
				fetcher = client
			}

			return streamReplay(e.ctx, fetcher, factory, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text/ndjson)")
	cmd.Flags().BoolVar(&record, "record", false, "Also store the recording in the archive database")
	cmd.Flags().BoolVar(&fromArchive, "from-archive", false, "Replay a stored recording instead of the live one")

	return cmd
}

func streamReplay(ctx context.Context, fetcher replay.ChunkFetcher, factory replay.EngineFactory, opts replay.DialogOptions, sessionID string) error {
	sched := schedule.New(ctx)
	defer sched.Stop()

	dialog := replay.NewDialog(fetcher, factory, sched, opts)
	if err := dialog.Open(ctx, sessionID); err != nil {
		if errors.Is(err, replay.ErrNoRecording) {
			return fmt.Errorf("session %s has no recording data", sessionID)
		}
		return err
	}
	defer func() {
		if err := dialog.Close(); err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "close replay"})
		}
	}()

	stats, err := dialog.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Info(ctx,
		log.KV{K: "msg", V: "replay finished"},
		log.KV{K: "session", V: sessionID},
		log.KV{K: "chunks", V: stats.Chunks + 1},
		log.KV{K: "tailed", V: stats.Events},
		log.KV{K: "reason", V: string(stats.Reason)},
	)
	return nil
}
