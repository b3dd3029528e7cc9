package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func grepCmd() *cobra.Command {
	var (
		uri             string
		caseInsensitive bool
	)
	cmd := &cobra.Command{
		Use:   "grep <pattern>",
		Short: "Search store content for a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			matches, err := newClient(cfg).Grep(cmd.Context(), uri, args[0], caseInsensitive)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, m := range matches {
				if m.Line > 0 {
					fmt.Printf("%s:%d: %s\n", m.URI, m.Line, m.Text)
				} else {
					fmt.Printf("%s: %s\n", m.URI, m.Text)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "viking://", "root uri to search under")
	cmd.Flags().BoolVarP(&caseInsensitive, "ignore-case", "i", false, "case-insensitive match")
	return cmd
}

func globCmd() *cobra.Command {
	var uri string
	cmd := &cobra.Command{
		Use:   "glob <pattern>",
		Short: "List store uris matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			uris, err := newClient(cfg).Glob(cmd.Context(), args[0], uri)
			if err != nil {
				return err
			}
			if len(uris) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, u := range uris {
				fmt.Println(u)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "viking://", "root uri to match under")
	return cmd
}
