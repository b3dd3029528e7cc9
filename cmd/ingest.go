package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add resources and skills to the store",
	}
	cmd.AddCommand(ingestResourceCmd())
	cmd.AddCommand(ingestSkillCmd())
	return cmd
}

func ingestResourceCmd() *cobra.Command {
	var (
		target      string
		reason      string
		instruction string
		wait        bool
	)
	cmd := &cobra.Command{
		Use:   "resource <path>",
		Short: "Ingest a local file or directory as a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res, err := newClient(cfg).AddResource(cmd.Context(), viking.AddResourceRequest{
				Path:        args[0],
				Target:      target,
				Reason:      reason,
				Instruction: instruction,
				Wait:        wait,
			})
			if err != nil {
				return err
			}
			fmt.Printf("ingested %s -> %s\n", args[0], res.URI)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "target uri in the store")
	cmd.Flags().StringVar(&reason, "reason", "", "why this resource matters")
	cmd.Flags().StringVar(&instruction, "instruction", "", "processing instruction")
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the store has processed it")
	return cmd
}

func ingestSkillCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "skill <file>",
		Short: "Ingest a skill definition from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res, err := newClient(cfg).AddSkill(cmd.Context(), viking.AddSkillRequest{
				Data: string(data),
				Wait: wait,
			})
			if err != nil {
				return err
			}
			fmt.Printf("ingested skill -> %s\n", res.URI)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the store has processed it")
	return cmd
}
