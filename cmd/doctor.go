package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/vikingbridge/internal/config"
	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

func doctorCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check environment, configuration, and store health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "keep retrying the store health check up to this long")
	return cmd
}

func runDoctor(ctx context.Context, wait time.Duration) error {
	fmt.Println("vikingbridge doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return err
	}

	fmt.Println()
	fmt.Println("  Memory:")
	fmt.Printf("    %-12s %v\n", "Enabled:", cfg.Memory.Enabled)
	fmt.Printf("    %-12s %s\n", "Endpoint:", cfg.Memory.Endpoint)
	fmt.Printf("    %-12s %s\n", "Sessions:", cfg.SessionStorePath())
	fmt.Printf("    %-12s %s\n", "Outbox:", cfg.OutboxPath())
	if !cfg.Memory.Enabled {
		return nil
	}

	client := newClient(cfg)

	// Liveness, optionally retried until the store comes up.
	healthErr := client.Health(ctx)
	if healthErr != nil && wait > 0 {
		policy := backoff.WithContext(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(500*time.Millisecond),
			backoff.WithMaxElapsedTime(wait),
		), ctx)
		healthErr = backoff.Retry(func() error {
			return client.Health(ctx)
		}, policy)
	}
	fmt.Println()
	if healthErr != nil {
		fmt.Printf("  Store:    UNREACHABLE (%s)\n", healthErr)
		return healthErr
	}
	fmt.Println("  Store:    OK")

	// Component observers, probed concurrently.
	type probe struct {
		name string
		fn   func(context.Context) (*viking.ObserverStatus, error)
	}
	probes := []probe{
		{"queue", client.ObserverQueue},
		{"vikingdb", client.ObserverVikingDB},
		{"vlm", client.ObserverVLM},
		{"transaction", client.ObserverTransaction},
	}
	lines := make([]string, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range probes {
		i, p := i, p
		g.Go(func() error {
			status, err := p.fn(gctx)
			switch {
			case err != nil:
				lines[i] = fmt.Sprintf("    %-12s PROBE FAILED (%s)", p.name+":", err)
			case status.IsHealthy:
				lines[i] = fmt.Sprintf("    %-12s OK", p.name+":")
			default:
				lines[i] = fmt.Sprintf("    %-12s UNHEALTHY", p.name+":")
			}
			return nil
		})
	}
	_ = g.Wait()

	fmt.Println()
	fmt.Println("  Observers:")
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func newClient(cfg *config.Config) *viking.Client {
	mem := &cfg.Memory
	return viking.New(viking.Options{
		Endpoint:          mem.Endpoint,
		APIKey:            mem.APIKey,
		Headers:           mem.Headers,
		Timeout:           time.Duration(mem.TimeoutMs) * time.Millisecond,
		RequestsPerSecond: mem.RequestsPerSecond,
	})
}
