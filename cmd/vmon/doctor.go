package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/vmon/internal/api"
	"github.com/Zuo-Peng/vmon/internal/archive"
)

func doctorCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify config, back office, archive DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup(false)
			if err != nil {
				return err
			}
			defer e.Close()
			cfg := e.cfg

			fmt.Println("=== Config ===")
			fmt.Printf("  Base URL:      %s\n", cfg.BaseURL)
			fmt.Printf("  Token:         %s\n", mask(cfg.Token))
			fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration)
			fmt.Printf("  Tail:          every %s, stop after %d empty polls\n", cfg.TailDelay.Duration, cfg.TailIdleCeiling)
			if cfg.RequestsPerSecond > 0 {
				fmt.Printf("  Rate limit:    %.1f req/s\n", cfg.RequestsPerSecond)
			}
			fmt.Printf("  Log file:      %s\n", cfg.LogFile)

			fmt.Println("\n=== Back office ===")
			client, err := newClient(cfg)
			if err != nil {
				fmt.Printf("  client error: %v\n", err)
			} else {
				checkLive(e.ctx, client)
			}

			fmt.Println("\n=== Archive ===")
			fmt.Printf("  Path: %s\n", cfg.ArchiveDB)
			if _, err := os.Stat(cfg.ArchiveDB); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (created by 'vmon replay --record')")
				return nil
			}

			db, err := archive.OpenDB(cfg.ArchiveDB)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			recordings, err := db.RecordingCount()
			if err != nil {
				return fmt.Errorf("count recordings: %w", err)
			}
			events, err := db.EventCount()
			if err != nil {
				return fmt.Errorf("count events: %w", err)
			}
			fmt.Printf("  Recordings: %d\n", recordings)
			fmt.Printf("  Events:     %d\n", events)

			if info, err := os.Stat(cfg.ArchiveDB); err == nil {
				sizeMB := float64(info.Size()) / 1024 / 1024
				fmt.Printf("\n=== DB Size: %.1f MB ===\n", sizeMB)
			}
			return nil
		},
	}
}

func checkLive(ctx context.Context, client *api.Client) {
	start := time.Now()
	live, err := client.LiveSessions(ctx)
	elapsed := time.Since(start).Round(time.Millisecond)

	var se *api.StatusError
	switch {
	case errors.As(err, &se):
		fmt.Printf("  Status: HTTP %d (%s) in %s\n", se.StatusCode, se.Message, elapsed)
	case err != nil:
		fmt.Printf("  Status: UNREACHABLE (%v)\n", err)
	default:
		fmt.Printf("  Status: OK in %s\n", elapsed)
		fmt.Printf("  Live sessions: %d (%d unique visitors)\n", live.Count, live.UniqueCount)
	}
}

func mask(token string) string {
	switch {
	case token == "":
		return "(none)"
	case len(token) <= 8:
		return "****"
	default:
		return token[:4] + "****"
	}
}
