package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var (
		asJSON bool
		system bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend, outbox, and store health",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, stop, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			snap := backend.Status(cmd.Context())
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			fmt.Printf("backend %s\n", snap.Backend)
			fmt.Printf("  %-12s %s\n", "endpoint:", snap.Endpoint)
			if snap.Healthy {
				fmt.Printf("  %-12s OK\n", "store:")
			} else {
				fmt.Printf("  %-12s UNREACHABLE (%s)\n", "store:", snap.Error)
			}
			fmt.Printf("  %-12s queued=%d commits=%d\n", "bridge:",
				snap.Bridge.EventsQueued, snap.Bridge.CommitEventsQueued)
			if snap.Bridge.LastCommitCause != "" {
				fmt.Printf("  %-12s %s (%s)\n", "last commit:", snap.Bridge.LastCommitCause, snap.Bridge.LastCommitMode)
			}
			if snap.Bridge.LastError != "" {
				fmt.Printf("  %-12s %s\n", "last error:", snap.Bridge.LastError)
			}
			if snap.Outbox != nil {
				fmt.Printf("  %-12s depth=%d ready=%d\n", "outbox:", snap.Outbox.Depth, snap.Outbox.ReadyNow)
				if snap.Outbox.NextReadyIn > 0 {
					fmt.Printf("  %-12s in %s\n", "next retry:", snap.Outbox.NextReadyIn.Round(time.Second))
				}
			}
			if snap.LastSearch != nil {
				fmt.Printf("  %-12s %d entries, %d chars injected\n", "last search:",
					snap.LastSearch.Layering.Entries, snap.LastSearch.Layering.InjectedChars)
			}

			if !system {
				return nil
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sys, err := newClient(cfg).ObserverSystem(cmd.Context())
			if err != nil {
				return fmt.Errorf("system observer: %w", err)
			}
			fmt.Println()
			if sys.IsHealthy {
				fmt.Println("  system:      OK")
			} else {
				fmt.Println("  system:      UNHEALTHY")
				for _, e := range sys.Errors {
					fmt.Printf("    %s\n", e)
				}
			}
			names := make([]string, 0, len(sys.Components))
			for name := range sys.Components {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				state := "OK"
				if !sys.Components[name].IsHealthy {
					state = "UNHEALTHY"
				}
				fmt.Printf("    %-12s %s\n", name+":", state)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit status as JSON")
	cmd.Flags().BoolVar(&system, "system", false, "include the store's per-component system report")
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Flush the outbox and wait for the store to settle",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, stop, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			if err := backend.Sync(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("synced")
			return nil
		},
	}
}
