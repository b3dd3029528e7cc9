package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/vikingbridge/internal/outbox"
)

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drain the durable write queue",
	}
	cmd.AddCommand(outboxStatsCmd())
	cmd.AddCommand(outboxFlushCmd())
	cmd.AddCommand(outboxWatchCmd())
	return cmd
}

func outboxStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth and readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			stats, err := outbox.Inspect(cfg.OutboxPath())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			printOutboxStats(cfg.OutboxPath(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit stats as JSON")
	return cmd
}

func printOutboxStats(path string, s outbox.Stats) {
	fmt.Printf("outbox %s\n", path)
	fmt.Printf("  depth:        %d\n", s.Depth)
	fmt.Printf("  ready now:    %d\n", s.ReadyNow)
	if s.Depth > 0 {
		fmt.Printf("  oldest age:   %s\n", s.OldestAge.Round(time.Second))
		fmt.Printf("  max attempts: %d\n", s.MaxAttempts)
	}
	if s.NextReadyIn > 0 {
		fmt.Printf("  next ready:   in %s\n", s.NextReadyIn.Round(time.Second))
	}
}

func outboxFlushCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Drain the queue to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := newClient(cfg)
			mem := &cfg.Memory
			ob := outbox.New(outbox.Config{
				Path:          cfg.OutboxPath(),
				FlushInterval: time.Duration(mem.Outbox.FlushIntervalMs) * time.Millisecond,
				MaxBatchSize:  mem.Outbox.MaxBatchSize,
				RetryBase:     time.Duration(mem.Outbox.RetryBaseMs) * time.Millisecond,
				RetryMax:      time.Duration(mem.Outbox.RetryMaxMs) * time.Millisecond,
			}, func(ctx context.Context, item *outbox.Item) error {
				return client.AddEventsBatch(ctx, item.SessionID, item.Events)
			})
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := ob.Start(ctx); err != nil {
				return err
			}
			defer ob.Stop()

			if err := flushUntilDrained(ctx, ob); err != nil {
				return err
			}
			fmt.Println("outbox drained")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
	return cmd
}

// flushUntilDrained flushes repeatedly until the queue is empty, waiting out
// the earliest retry window between cycles instead of spinning.
func flushUntilDrained(ctx context.Context, ob *outbox.Outbox) error {
	for ob.Depth() > 0 {
		if err := ob.Flush(ctx); err != nil {
			return fmt.Errorf("flush: %w (depth %d)", err, ob.Depth())
		}
		if ob.Depth() == 0 {
			break
		}
		wait := ob.GetStats().NextReadyIn
		if wait <= 0 || wait > time.Second {
			wait = time.Second
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("flush timed out with depth %d", ob.Depth())
		case <-time.After(wait):
		}
	}
	return nil
}

func outboxWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the queue file and print stats on every change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := cfg.OutboxPath()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()
			// Watch the directory: the outbox replaces the file on every
			// persist, so a watch on the file itself goes stale.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return err
			}

			stats, err := outbox.Inspect(path)
			if err != nil {
				return err
			}
			printOutboxStats(path, stats)

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Name != path || !event.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
						continue
					}
					stats, err := outbox.Inspect(path)
					if err != nil {
						return err
					}
					fmt.Println()
					printOutboxStats(path, stats)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					return err
				}
			}
		},
	}
}
