package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func packCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Export and import portable store packs",
	}
	cmd.AddCommand(packExportCmd())
	cmd.AddCommand(packImportCmd())
	return cmd
}

func packExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the store's contents as a pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			raw, err := newClient(cfg).PackExport(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return printJSON(raw)
			}
			if err := os.WriteFile(output, raw, 0o644); err != nil {
				return err
			}
			fmt.Println("exported to", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the pack to a file instead of stdout")
	return cmd
}

func packImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <pack-file>",
		Short: "Import a previously exported pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var body map[string]any
			if err := json.Unmarshal(data, &body); err != nil {
				return fmt.Errorf("parse pack %s: %w", args[0], err)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			raw, err := newClient(cfg).PackImport(cmd.Context(), body)
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}
