package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	dialogsJSON bool
	usersJSON   bool
)

func init() {
	dialogsCmd.Flags().BoolVar(&dialogsJSON, "json", false, "Output raw JSON")
	usersCmd.Flags().BoolVar(&usersJSON, "json", false, "Output raw JSON")
	rootCmd.AddCommand(dialogsCmd)
	rootCmd.AddCommand(usersCmd)
}

var dialogsCmd = &cobra.Command{
	Use:   "dialogs",
	Short: "List dialogs",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		dialogs, err := client.FetchDialogs(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if dialogsJSON {
			data, err := json.MarshalIndent(dialogs, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal dialogs: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if len(dialogs) == 0 {
			fmt.Println("No dialogs yet.")
			return nil
		}

		for _, d := range dialogs {
			unread := ""
			if d.UnreadCount > 0 {
				unread = fmt.Sprintf(" (%d unread)", d.UnreadCount)
			}
			preview := d.LastMessage
			if preview == "" {
				preview = "(no messages)"
			}
			fmt.Printf("  %s [%s]%s - %s\n", d.Title, d.ID, unread, preview)
		}
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users available for a new dialog",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		users, err := client.FetchUsers(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if usersJSON {
			data, err := json.MarshalIndent(users, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal users: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		for _, u := range users {
			fmt.Printf("  %s [%s]\n", u.Username, u.ID)
		}
		return nil
	},
}
