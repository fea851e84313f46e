package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bencai/orderwatch/internal/credential"
	"github.com/bencai/orderwatch/internal/mailbox"
	"github.com/bencai/orderwatch/internal/model"
)

var configPath string

func main() {
	// Optional .env in the working directory, matching the deployment
	// convention for EMAIL/PASSWORD/IMAP_HOST/IMAP_PORT.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "orderwatch",
		Short:         "Scrape retail order emails from an IMAP mailbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(
		&configPath, "config", model.DefaultConfigPath(), "path to the config file",
	)

	root.AddCommand(
		newServeCmd(),
		newScrapeCmd(),
		newFoldersCmd(),
		newHistoryCmd(),
		newAuthCmd(),
		newConfigCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*model.AppConfig, error) {
	return model.LoadConfig(configPath)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// mailboxConfig builds the connection settings, resolving the password
// from config, keyring, or environment.
func mailboxConfig(cfg *model.AppConfig) (mailbox.Config, error) {
	password, err := credential.ResolvePassword(cfg.IMAP.Password)
	if err != nil {
		return mailbox.Config{}, err
	}
	if cfg.IMAP.Username == "" {
		return mailbox.Config{}, fmt.Errorf("no mailbox username configured: set imap.username or export EMAIL")
	}
	return mailbox.Config{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.IMAP.Username,
		Password: password,
		Timeout:  time.Duration(cfg.IMAP.TimeoutSec) * time.Second,
	}, nil
}
