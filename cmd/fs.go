package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/vikingbridge/internal/fspolicy"
	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

func fsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fs",
		Short: "Browse and mutate the store filesystem",
	}
	cmd.AddCommand(fsLsCmd())
	cmd.AddCommand(fsTreeCmd())
	cmd.AddCommand(fsStatCmd())
	cmd.AddCommand(fsMkdirCmd())
	cmd.AddCommand(fsRmCmd())
	cmd.AddCommand(fsMvCmd())
	return cmd
}

func fsLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <uri>",
		Short: "List a store directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			entries, err := newClient(cfg).FSLs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, e := range entries {
				printFSEntry(e, 0)
			}
			return nil
		},
	}
}

func fsTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <uri>",
		Short: "Show a store directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			entries, err := newClient(cfg).FSTree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, e := range entries {
				printFSEntry(e, 0)
			}
			return nil
		},
	}
}

func printFSEntry(e viking.FSEntry, depth int) {
	name := e.Name
	if name == "" {
		name = e.URI
	}
	marker := ""
	if e.IsDir {
		marker = "/"
	}
	fmt.Printf("%s%s%s\n", strings.Repeat("  ", depth), name, marker)
	for _, child := range e.Children {
		printFSEntry(child, depth+1)
	}
}

func fsStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <uri>",
		Short: "Stat a store entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			stat, err := newClient(cfg).FSStat(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("uri:      %s\n", stat.URI)
			fmt.Printf("dir:      %v\n", stat.IsDir)
			fmt.Printf("size:     %d\n", stat.Size)
			fmt.Printf("modified: %s\n", stat.Modified)
			return nil
		},
	}
}

func fsMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <uri>",
		Short: "Create a store directory (policy-gated)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			uri, err := fspolicy.NewGate(&cfg.Memory.FSWrite).CheckMkdir(args[0])
			if err != nil {
				return err
			}
			return newClient(cfg).FSMkdir(cmd.Context(), uri)
		},
	}
}

func fsRmCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm <uri>",
		Short: "Remove a store entry (policy-gated)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			uri, err := fspolicy.NewGate(&cfg.Memory.FSWrite).CheckRm(args[0], recursive)
			if err != nil {
				return err
			}
			return newClient(cfg).FSRm(cmd.Context(), uri, recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove directories recursively")
	return cmd
}

func fsMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <from-uri> <to-uri>",
		Short: "Move a store entry (policy-gated)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			from, to, err := fspolicy.NewGate(&cfg.Memory.FSWrite).CheckMv(args[0], args[1])
			if err != nil {
				return err
			}
			return newClient(cfg).FSMv(cmd.Context(), from, to)
		},
	}
}
