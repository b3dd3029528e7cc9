package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/vikingbridge/internal/bridge"
	"github.com/nextlevelbuilder/vikingbridge/internal/memory"
	"github.com/nextlevelbuilder/vikingbridge/internal/retrieve"
	"github.com/nextlevelbuilder/vikingbridge/internal/telemetry"
)

func searchCmd() *cobra.Command {
	var (
		maxResults int
		minScore   float64
		sessionKey string
		explain    bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run the retrieval pipeline against the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			backend, stop, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			opts := retrieve.SearchOptions{
				MaxResults: maxResults,
				SessionKey: sessionKey,
			}
			if cmd.Flags().Changed("min-score") {
				opts.MinScore = &minScore
			}
			results, err := backend.Search(cmd.Context(), query, opts)
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(results)
			}
			if len(results) == 0 {
				fmt.Println("no results")
			}
			for i, r := range results {
				fmt.Printf("%d. %s (score %.2f, %s)\n", i+1, r.Path, r.Score, r.Source)
				fmt.Printf("   %s\n", r.Snippet)
			}
			if explain {
				if snap, ok := backend.Pipeline().LastSnapshot(); ok {
					fmt.Println()
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(snap)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "cap emitted results")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "drop candidates below this score")
	cmd.Flags().StringVar(&sessionKey, "session", "", "scope the search to a linked session")
	cmd.Flags().BoolVar(&explain, "explain", false, "print retrieval diagnostics")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit results as JSON")
	return cmd
}

func readCmd() *cobra.Command {
	var (
		from  int
		lines int
	)
	cmd := &cobra.Command{
		Use:   "read <path-or-uri>",
		Short: "Read a store entry, optionally a line window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, stop, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			content, err := backend.ReadFile(cmd.Context(), args[0], from, lines)
			if err != nil {
				return err
			}
			fmt.Println(content.Text)
			return nil
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "first line, 1-indexed")
	cmd.Flags().IntVar(&lines, "lines", 0, "number of lines")
	return cmd
}

// openBackend loads config and wires a store backend (plus optional trace
// export) for one CLI invocation.
func openBackend(ctx context.Context) (*memory.VikingBackend, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	shutdownTraces, err := telemetry.Setup(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, nil, err
	}
	reg := bridge.NewRegistry()
	backend, err := memory.NewVikingBackend(ctx, cfg.Agent.ID, cfg, reg, retrieve.NewDiagnostics())
	if err != nil {
		_ = shutdownTraces(ctx)
		return nil, nil, err
	}
	stop := func() {
		reg.StopAll()
		_ = shutdownTraces(context.WithoutCancel(ctx))
	}
	return backend, stop, nil
}
