package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage store sessions",
	}
	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsDeleteCmd())
	cmd.AddCommand(sessionsExtractCmd())
	cmd.AddCommand(sessionsMessageCmd())
	cmd.AddCommand(sessionsCommitCmd())
	return cmd
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List store sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sessions, err := newClient(cfg).ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("%s  events=%d  updated=%s\n", s.SessionID, s.Events, s.UpdatedAt)
			}
			return nil
		},
	}
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			raw, err := newClient(cfg).GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := newClient(cfg).DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("deleted", args[0])
			return nil
		},
	}
}

func sessionsExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <session-id>",
		Short: "Extract memories from a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			raw, err := newClient(cfg).ExtractSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func sessionsMessageCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "message <session-id> <content>",
		Short: "Append a message to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != "user" && role != "assistant" {
				return fmt.Errorf("invalid role %q: must be user or assistant", role)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return newClient(cfg).AddSessionMessage(cmd.Context(), args[0], role, args[1])
		},
	}
	cmd.Flags().StringVar(&role, "role", "user", "message role (user or assistant)")
	return cmd
}

func sessionsCommitCmd() *cobra.Command {
	var cause string
	cmd := &cobra.Command{
		Use:   "commit <session-id>",
		Short: "Commit a session's pending events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return newClient(cfg).CommitSession(cmd.Context(), args[0], cause)
		},
	}
	cmd.Flags().StringVar(&cause, "cause", "manual", "commit cause")
	return cmd
}

func printJSON(raw json.RawMessage) error {
	var buf any
	if err := json.Unmarshal(raw, &buf); err != nil {
		// Not JSON; print as-is.
		fmt.Println(string(raw))
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(buf)
}
