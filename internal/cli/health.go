package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/authapp/internal/api"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show backend health and user statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := application.System.Initialize(cmd.Context())
			st := application.System.State()

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Status:    %s\n", st.HealthStatus())
			fmt.Fprintf(w, "Database:  %s\n", st.DatabaseInfo())
			fmt.Fprintf(w, "Users:     %s\n", humanize.Comma(st.TotalUsers()))
			if st.Stats != nil {
				fmt.Fprintf(w, "Admins:    %s\n", humanize.Comma(st.Stats.AdminUsers))
				fmt.Fprintf(w, "Regular:   %s\n", humanize.Comma(st.Stats.RegularUsers))
			}
			if st.Health != nil && st.Health.Message != "" {
				fmt.Fprintf(w, "Message:   %s\n", st.Health.Message)
			}
			if err != nil {
				return fmt.Errorf("backend check failed: %s", api.ErrorMessage(err))
			}
			return nil
		},
	}
}
