package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	privchat "github.com/privchat/privchat-go"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"whoami"},
	Short:   "Show current configuration and account status",
	Long:    "Display the current configuration, check whether the stored token is expired, and fetch live account info.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Print config summary.
		fmt.Println("Configuration:")
		fmt.Printf("  Server:   %s\n", valueOrDefault(cfg.Server.URL, "(not set)"))

		fmt.Println()
		fmt.Println("Auth:")
		if cfg.Auth.Username != "" {
			fmt.Printf("  Username: %s\n", cfg.Auth.Username)
			fmt.Printf("  User ID:  %s\n", cfg.Auth.UserID)
		} else {
			fmt.Println("  Username: (not logged in)")
		}

		// Check token expiry.
		tokenStatus := "none"
		if cfg.Auth.Token != "" {
			if cfg.Auth.TokenExpires != "" {
				expires, err := time.Parse(time.RFC3339, cfg.Auth.TokenExpires)
				if err == nil {
					if time.Now().Before(expires) {
						tokenStatus = fmt.Sprintf("valid (expires %s)", expires.Format(time.RFC3339))
					} else {
						tokenStatus = fmt.Sprintf("EXPIRED (expired %s)", expires.Format(time.RFC3339))
					}
				} else {
					tokenStatus = fmt.Sprintf("present (unparseable expiry: %s)", cfg.Auth.TokenExpires)
				}
			} else {
				tokenStatus = "present (no expiry set)"
			}
		}
		fmt.Printf("  Token:    %s\n", tokenStatus)

		// If fully configured, fetch live account info.
		if cfg.Server.URL != "" && cfg.Auth.Token != "" {
			fmt.Println()
			fmt.Println("Live status:")

			client := privchat.NewClient(cfg.Server.URL, privchat.WithToken(cfg.Auth.Token))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			self, err := client.FetchSelf(ctx)
			if err != nil {
				fmt.Printf("  Error fetching account info: %v\n", err)
				return nil
			}

			fmt.Printf("  Username: %s\n", self.Username)
			fmt.Printf("  User ID:  %s\n", self.ID)
		}

		return nil
	},
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
