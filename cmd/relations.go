package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func relationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relations <uri>",
		Short: "Inspect and edit the relation graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			entries, err := newClient(cfg).Relations(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no relations")
				return nil
			}
			for _, e := range entries {
				line := e.URI
				if e.ContextType != "" {
					line += "  (" + e.ContextType + ")"
				}
				if e.Reason != "" {
					line += "  " + e.Reason
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.AddCommand(relationsLinkCmd())
	cmd.AddCommand(relationsUnlinkCmd())
	return cmd
}

func relationsLinkCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "link <from-uri> <to-uri>",
		Short: "Link two uris in the relation graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := newClient(cfg).LinkRelation(cmd.Context(), args[0], args[1], reason); err != nil {
				return err
			}
			fmt.Printf("linked %s -> %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the uris are related")
	return cmd
}

func relationsUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <from-uri> <to-uri>",
		Short: "Remove a relation link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := newClient(cfg).UnlinkRelation(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("unlinked %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}
