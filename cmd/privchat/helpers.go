package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	privchat "github.com/privchat/privchat-go"
)

// requireConfig loads the config and exits when the CLI is not initialized.
func requireConfig() *Config {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Server.URL == "" {
		fmt.Fprintln(os.Stderr, "No server configured. Run 'privchat init <server-url>' first.")
		os.Exit(1)
	}
	return cfg
}

// requireAuth is requireConfig plus a stored token.
func requireAuth() *Config {
	cfg := requireConfig()
	if cfg.Auth.Token == "" {
		fmt.Fprintln(os.Stderr, "Not logged in. Run 'privchat login <token>' first.")
		os.Exit(1)
	}
	return cfg
}

// getClient creates an API client authenticated from the stored config.
func getClient() *privchat.Client {
	cfg := requireAuth()
	return privchat.NewClient(cfg.Server.URL, privchat.WithToken(cfg.Auth.Token))
}

// newLogger builds the CLI logger. Verbose switches to development output;
// otherwise only warnings and errors reach the terminal.
func newLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return zap.NewNop()
		}
		return logger
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
