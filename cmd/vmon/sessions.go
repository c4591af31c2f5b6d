package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/vmon/internal/api"
	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/render"
)

func sessionsCmd(g *globals) *cobra.Command {
	var search string
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List archived sessions (TSV)",
		Long: `Lists archived sessions, newest first. Output is TSV:
  sessionId, status, startTime, duration, visitor, purchase, intent, events, entryUrl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			client, err := newClient(e.cfg)
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = e.cfg.ArchiveLimit
			}
			sessions, err := client.ArchivedSessions(e.ctx, api.ArchiveQuery{Limit: limit, Search: search})
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(os.Stderr, "No sessions found.")
				return nil
			}
			for _, s := range sessions {
				end := s.LastActiveAt.Time
				if s.IsLive() {
					end = time.Now()
				}
				fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					s.ID,
					s.Status,
					s.StartTime.Local().Format(time.DateTime),
					render.Duration(s.StartTime.Time, end),
					tsvField(render.VisitorName(s.Visitor, s.VisitorID)),
					s.PurchaseStatus,
					s.IntentLabel,
					s.EventCount(),
					orDash(tsvField(s.EntryURL)),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Search term (url, visitor, session id)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = archive_limit from config)")

	return cmd
}

func visitorsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "visitors",
		Short: "List known visitors (TSV)",
		Long: `Lists visitors. Output is TSV:
  visitorId, label, country, lifecycle, sessions, ltv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			client, err := newClient(e.cfg)
			if err != nil {
				return err
			}
			visitors, err := client.Visitors(e.ctx)
			if err != nil {
				return err
			}
			for _, v := range visitors {
				fmt.Printf("%s\t%s\t%s\t%s\t%d\t%.2f\n",
					v.ID,
					orDash(tsvField(v.Label)),
					orDash(v.Country),
					v.Lifecycle,
					v.SessionCount,
					v.LTV,
				)
			}
			return nil
		},
	}
}

func historyCmd(g *globals) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "history <visitorId>",
		Short: "Show every session of a visitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			client, err := newClient(e.cfg)
			if err != nil {
				return err
			}
			sessions, err := client.VisitorSessions(e.ctx, args[0])
			if err != nil {
				return err
			}

			var v *model.Visitor
			if len(sessions) > 0 {
				v = sessions[0].Visitor
			}
			fmt.Print(render.History(v, sessions, render.Options{
				Width: terminalWidth(),
				Plain: plain || !stdoutIsTerminal(),
				Now:   time.Now(),
			}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "No colors")

	return cmd
}
