package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/internal/tui"
	"github.com/me/authapp/internal/ui"
)

func newServeCmd() *cobra.Command {
	var addr string
	var cfg ui.Config
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = application.Config.UIAddr
			}
			srv := ui.New(application, logging.Component(logger, "ui"), cfg)
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", addr)
			return srv.Serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config ui_addr)")
	cmd.Flags().BoolVar(&cfg.Secure, "secure", false, "Redirect to HTTPS and send HSTS headers")
	cmd.Flags().IntVar(&cfg.LoginRateLimit, "login-rate", 0, "Sign-in attempts per client per minute")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Show a live terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(cmd.Context(), application)
		},
	}
}
