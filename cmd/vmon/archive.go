package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/vmon/internal/archive"
	"github.com/Zuo-Peng/vmon/internal/replay"
)

func archiveCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage replays stored with --record",
	}
	cmd.AddCommand(archiveListCmd(g))
	cmd.AddCommand(archiveShowCmd(g))
	cmd.AddCommand(archiveDeleteCmd(g))
	return cmd
}

// withArchive runs fn against the configured archive database.
func withArchive(g *globals, fn func(db *archive.DB) error) error {
	e, err := g.setup(false)
	if err != nil {
		return err
	}
	defer e.Close()

	db, err := archive.OpenDB(e.cfg.ArchiveDB)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func archiveListCmd(g *globals) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored recordings (TSV)",
		Long: `Lists stored recordings, most recently updated first. Output is TSV:
  sessionId, updatedAt, events, duration, complete`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(g, func(db *archive.DB) error {
				recs, err := db.List(limit)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(os.Stderr, "No stored recordings.")
					return nil
				}
				for _, r := range recs {
					fmt.Printf("%s\t%s\t%d\t%s\t%t\n",
						r.SessionID,
						r.UpdatedAt.Local().Format(time.DateTime),
						r.EventCount,
						r.Duration().Round(time.Second),
						r.Complete,
					)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Max results (0 = no limit)")

	return cmd
}

func archiveShowCmd(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <sessionId>",
		Short: "Print a stored recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := replay.ParseFormat(format)
			if err != nil {
				return err
			}
			return withArchive(g, func(db *archive.DB) error {
				rec, err := db.Get(args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("no stored recording for %s", args[0])
				}
				events, err := db.Events(rec.SessionID)
				if err != nil {
					return err
				}
				if f == replay.FormatText {
					fmt.Printf("# %s  %d events  %s  complete=%t\n",
						rec.SessionID, rec.EventCount, rec.Duration().Round(time.Second), rec.Complete)
				}
				engine, err := replay.WriterFactory(os.Stdout, f)(rec.SessionID, events)
				if err != nil {
					return err
				}
				return engine.Close()
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text/ndjson)")

	return cmd
}

func archiveDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <sessionId>...",
		Short: "Delete stored recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(g, func(db *archive.DB) error {
				for _, id := range args {
					if err := db.Delete(id); err != nil {
						return fmt.Errorf("delete %s: %w", id, err)
					}
				}
				fmt.Printf("deleted %d recording(s)\n", len(args))
				return nil
			})
		},
	}
}
