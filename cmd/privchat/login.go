package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Store an access token",
	Long:  "Store the JWT issued by the chat backend and remember the identity encoded in it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Server.URL == "" {
			return fmt.Errorf("no server configured; run 'privchat init <server-url>' first")
		}

		cfg.Auth.Token = token

		// The token is only inspected locally for identity and expiry; the
		// server stays the authority on validity.
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
			if sub, err := claims.GetSubject(); err == nil && sub != "" {
				cfg.Auth.UserID = sub
			}
			if name, ok := claims["username"].(string); ok && name != "" {
				cfg.Auth.Username = name
			}
			if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
				cfg.Auth.TokenExpires = exp.Time.Format(time.RFC3339)
			}
		}

		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Println("Logged in.")
		if cfg.Auth.Username != "" {
			fmt.Printf("  Username: %s\n", cfg.Auth.Username)
		}
		if cfg.Auth.UserID != "" {
			fmt.Printf("  User ID:  %s\n", cfg.Auth.UserID)
		}
		if cfg.Auth.TokenExpires != "" {
			fmt.Printf("  Token expires: %s\n", cfg.Auth.TokenExpires)
		}
		return nil
	},
}
