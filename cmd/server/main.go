package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pingline/pingline/internal/config"
	"github.com/pingline/pingline/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "pingline",
	Short:   "Pingline chat server",
	Long:    "Pingline is a realtime chat server with human contacts, chatbot contacts, and websocket push delivery.",
	Version: version.GetInfo(),
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (defaults to CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
