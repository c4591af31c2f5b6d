package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/Zuo-Peng/vmon/internal/api"
	"github.com/Zuo-Peng/vmon/internal/archive"
	"github.com/Zuo-Peng/vmon/internal/monitor"
	"github.com/Zuo-Peng/vmon/internal/reconcile"
	"github.com/Zuo-Peng/vmon/internal/render"
	"github.com/Zuo-Peng/vmon/internal/replay"
	"github.com/Zuo-Peng/vmon/internal/schedule"
	"github.com/Zuo-Peng/vmon/internal/tui"
)

func liveCmd(g *globals) *cobra.Command {
	var filter string
	var plain, once, record bool

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Watch visitors currently on the site",
		Long: `Opens the live board when stdout is a terminal. Otherwise, or with --plain,
prints a TSV snapshot on every poll:
  sessionId, status, country, device, visitor, lastActive, url, events`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := reconcile.ParseFilter(filter)
			if err != nil {
				return err
			}
			interactive := !plain && !once && stdoutIsTerminal()

			e, err := g.setup(interactive)
			if err != nil {
				return err
			}
			defer e.Close()

			client, err := newClient(e.cfg)
			if err != nil {
				return err
			}

			sched := schedule.New(e.ctx)
			defer sched.Stop()

			opts := monitor.Options{
				PollInterval:    e.cfg.PollInterval.Duration,
				ArchivePoll:     e.cfg.ArchivePoll,
				ArchiveInterval: e.cfg.ArchivePollInterval.Duration,
				ArchiveQuery:    api.ArchiveQuery{Limit: e.cfg.ArchiveLimit},
				Filter:          f,
			}

			if !interactive {
				return runPlain(e, client, sched, opts, once)
			}

			var recorder replay.EngineFactory
			if record {
				db, err := archive.OpenDB(e.cfg.ArchiveDB)
				if err != nil {
					return err
				}
				defer db.Close()
				recorder = db.Factory()
			}

			app := tui.New(tui.Options{
				Backend: client,
				Runner:  sched,
				Replay: replay.DialogOptions{
					Delay:       e.cfg.TailDelay.Duration,
					IdleCeiling: e.cfg.TailIdleCeiling,
				},
				Archive:     recorder,
				ArchivePoll: e.cfg.ArchivePoll,
			})
			opts.OnState = app.PublishState
			opts.OnNotify = app.Notify
			mon := monitor.New(client, sched, opts)
			return app.Run(e.ctx, mon)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Filter (all/live/purchase/bounce)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print TSV snapshots instead of the live board")
	cmd.Flags().BoolVar(&once, "once", false, "Print one snapshot and exit")
	cmd.Flags().BoolVar(&record, "record", false, "Also store opened replays in the archive database")

	return cmd
}

// runPlain prints snapshots until the context ends, or once.
func runPlain(e *env, client *api.Client, sched *schedule.Scheduler, opts monitor.Options, once bool) error {
	if once {
		mon := monitor.New(client, sched, opts)
		if err := mon.Refresh(e.ctx); err != nil {
			return err
		}
		writeSnapshot(os.Stdout, mon.State(), time.Now())
		return nil
	}

	var mu sync.Mutex
	var last time.Time
	opts.OnState = func(st monitor.State) {
		mu.Lock()
		defer mu.Unlock()
		// selection and history changes republish the same poll
		if !st.Loaded() || !st.PolledAt.After(last) {
			return
		}
		last = st.PolledAt
		writeSnapshot(os.Stdout, st, time.Now())
	}
	opts.OnNotify = func(n reconcile.Notification) {
		fmt.Fprintf(os.Stderr, "# %s %s\n", n.At.Format(time.TimeOnly), n.Message)
	}
	mon := monitor.New(client, sched, opts)
	if err := mon.Start(); err != nil {
		return err
	}
	log.Info(e.ctx, log.KV{K: "msg", V: "watching"}, log.KV{K: "every", V: opts.PollInterval.String()})
	<-e.ctx.Done()
	return nil
}

func writeSnapshot(w io.Writer, st monitor.State, now time.Time) {
	fmt.Fprintf(w, "# %s  %d online (%d unique)  funnel %d/%d/%d  intent H%d M%d L%d  filter %s\n",
		st.PolledAt.Local().Format(time.TimeOnly),
		st.Count, st.UniqueCount,
		st.Funnel.Products, st.Funnel.Cart, st.Funnel.Checkout,
		st.Intent.High, st.Intent.Medium, st.Intent.Low,
		st.Filter,
	)
	for _, s := range st.Visible {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.Status,
			s.Country(),
			orDash(s.DeviceType),
			tsvField(render.VisitorName(s.Visitor, s.VisitorID)),
			render.Ago(s.LastActiveAt.Time, now),
			orDash(tsvField(s.LastURL())),
			render.Icons(s.Events, 5, true),
		)
	}
}

func tsvField(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
