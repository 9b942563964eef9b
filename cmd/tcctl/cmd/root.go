package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pribylovaa/training-center/pkg/client"
)

var (
	serverURL   string
	sessionPath string
	loginURL    string
	adminScope  bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "tcctl",
	Short: "tcctl is a command line client of the training-center API",
	Long: `Sign in to a training-center server and call its API.
The session is kept in a local file and refreshed automatically when the access token expires.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("TCCTL_SERVER", "http://localhost:8080/api"), "API root URL")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session", envOr("TCCTL_SESSION", defaultSessionPath()), "session database file")
	rootCmd.PersistentFlags().StringVar(&loginURL, "login-url", "/login", "login page reported when the session ends")
	rootCmd.PersistentFlags().BoolVar(&adminScope, "admin", false, "use the admin token slot")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "session.db"
	}
	return filepath.Join(home, ".tcctl", "session.db")
}

// openClient opens the session file and builds a client on it. The returned
// func closes the file.
func openClient(cmd *cobra.Command, scope client.Scope) (*client.Client, func(), error) {
	if err := os.MkdirAll(filepath.Dir(sessionPath), 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating session dir: %w", err)
	}

	store, err := client.OpenBoltStore(sessionPath)
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if adminScope {
		scope = client.ScopeAdmin
	}

	c, err := client.New(client.Config{
		BaseURL:  serverURL,
		LoginURL: loginURL,
		Scope:    scope,
		Store:    store,
		Redirector: client.RedirectFunc(func(url string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "signed out, log in again (%s)\n", url)
		}),
		Timeout: 30 * time.Second,
		Logger:  logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	return c, func() { _ = store.Close() }, nil
}
