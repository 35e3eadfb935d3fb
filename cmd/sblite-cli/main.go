// Command sblite-cli is a small command-line client for an sblite backend:
// sign in, inspect the session, publish and listen on realtime channels,
// and upload files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	sblite "github.com/markb/sblite-go"
	"github.com/markb/sblite-go/auth"
	"github.com/markb/sblite-go/internal/log"
)

// Version information set via ldflags at build time
var Version = "dev"

var (
	flagURL      string
	flagAPIKey   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:     "sblite-cli",
	Short:   "Command-line client for an sblite backend",
	Long:    `Sign in, publish and listen on realtime channels, and upload files against an sblite backend.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := log.DefaultConfig()
		cfg.Level = flagLogLevel
		log.Init(cfg)
	},
}

func init() {
	rootCmd.SetVersionTemplate("sblite-cli version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", os.Getenv("SBLITE_URL"), "backend base URL (env SBLITE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", os.Getenv("SBLITE_API_KEY"), "project API key (env SBLITE_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// newClient builds an sblite client backed by the session store in the
// user's config directory, so sign-ins survive across invocations.
func newClient() (*sblite.Client, error) {
	if flagURL == "" {
		return nil, fmt.Errorf("backend URL not set; use --url or SBLITE_URL")
	}
	if flagAPIKey == "" {
		return nil, fmt.Errorf("API key not set; use --api-key or SBLITE_API_KEY")
	}

	store, err := openSessionStore()
	if err != nil {
		return nil, err
	}
	return sblite.New(sblite.Config{
		BaseURL:      flagURL,
		APIKey:       flagAPIKey,
		SessionStore: store,
	})
}

func openSessionStore() (auth.Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".sblite")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	return auth.NewSQLiteStore(filepath.Join(dir, "session.db"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
