package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/authapp/internal/app"
	"github.com/me/authapp/internal/config"
	"github.com/me/authapp/internal/logging"
)

var (
	flagServer    string
	flagConfig    string
	flagState     string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger      *slog.Logger
	application *app.App
)

// NewRootCmd creates the root cobra command for the authapp CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "authapp",
		Short: "AuthApp user-management client",
		Long:  "AuthApp signs in to the user-management backend, keeps the session between runs, and manages user accounts.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			application = a
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", "", "API base URL (or AUTHAPP_API_BASE_URL env)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.authapp/config.yaml)")
	root.PersistentFlags().StringVar(&flagState, "state", "", "Session state database path (or AUTHAPP_STATE_PATH env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newPasswdCmd(),
		newValidateCmd(),
		newHealthCmd(),
		newUsersCmd(),
		newServeCmd(),
		newWatchCmd(),
	)

	return root
}

// Execute runs root and closes the application state afterwards.
func Execute(ctx context.Context, root *cobra.Command) error {
	defer closeApp()
	return root.ExecuteContext(ctx)
}

func closeApp() {
	if application == nil {
		return
	}
	if err := application.Close(); err != nil && logger != nil {
		logger.Error("close", "error", err)
	}
	application = nil
}

// loadConfig layers explicitly set flags over the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.APIBaseURL = flagServer
	}
	if flags.Changed("state") {
		cfg.StateBackend = config.BackendSQLite
		cfg.StatePath = flagState
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
