package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/authapp/internal/api"
	"github.com/me/authapp/pkg/model"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage user accounts",
	}
	cmd.AddCommand(
		newUsersListCmd(),
		newUsersGetCmd(),
		newUsersCreateCmd(),
		newUsersUpdateCmd(),
		newUsersDeleteCmd(),
		newUsersSeedCmd(),
	)
	return cmd
}

func newUsersListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := application.Users
			var err error
			if role != "" {
				r, perr := parseRole(role)
				if perr != nil {
					return perr
				}
				err = store.FetchUsersByRole(cmd.Context(), r)
			} else {
				err = store.FetchUsers(cmd.Context())
			}
			if err != nil {
				return errors.New(api.ErrorMessage(err))
			}

			users := store.State().Users
			w := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(w, "No users found.")
				return nil
			}
			fmt.Fprintf(w, "%-6s %-32s %-22s %-8s %s\n", "ID", "EMAIL", "ROLES", "ENABLED", "CREATED")
			fmt.Fprintf(w, "%-6s %-32s %-22s %-8s %s\n", "------", strings.Repeat("-", 32), strings.Repeat("-", 22), "--------", "-------")
			for _, u := range users {
				fmt.Fprintf(w, "%-6d %-32s %-22s %-8t %s\n",
					u.ID, u.Email, shortRoles(u.Roles), u.IsEnabled(), stamp(u.CreatedAt))
			}
			fmt.Fprintf(w, "\n%d user(s)\n", len(users))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Only list users with this role (admin, user)")
	return cmd
}

func newUsersGetCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one user by id or email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := application.Users
			var err error
			switch {
			case len(args) == 1:
				id, perr := parseID(args[0])
				if perr != nil {
					return perr
				}
				err = store.FetchUser(cmd.Context(), id)
			case email != "":
				err = store.FetchUserByEmail(cmd.Context(), email)
			default:
				return errors.New("give a user id or --email")
			}
			if err != nil {
				return errors.New(api.ErrorMessage(err))
			}
			printUser(cmd.OutOrStdout(), store.State().Selected)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Look the user up by email")
	return cmd
}

func newUsersCreateCmd() *cobra.Command {
	var email, password, role string
	var disabled bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, err := rolesFor(role)
			if err != nil {
				return err
			}
			enabled := !disabled
			in := model.UserInput{Email: email, Password: password, Roles: roles, Enabled: &enabled}
			if _, err := application.Users.CreateUser(cmd.Context(), in); err != nil {
				return errors.New(api.ErrorMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), application.Users.State().OperationSuccess)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (required)")
	cmd.Flags().StringVar(&role, "role", "user", "Role: user or admin")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the account disabled")
	return cmd
}

func newUsersUpdateCmd() *cobra.Command {
	var email, password, role string
	var enabled bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := model.UserInput{Email: email, Password: password}
			if cmd.Flags().Changed("role") {
				if in.Roles, err = rolesFor(role); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("enabled") {
				in.Enabled = &enabled
			}
			if _, err := application.Users.UpdateUser(cmd.Context(), id, in); err != nil {
				return errors.New(api.ErrorMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), application.Users.State().OperationSuccess)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().StringVar(&password, "password", "", "New password")
	cmd.Flags().StringVar(&role, "role", "", "New role: user or admin")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Enable or disable the account")
	return cmd
}

func newUsersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := application.Users.DeleteUser(cmd.Context(), id); err != nil {
				return errors.New(api.ErrorMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), application.Users.State().OperationSuccess)
			return nil
		},
	}
}

func newUsersSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the server's sample accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := application.Users.SeedSampleData(cmd.Context()); err != nil {
				return errors.New(api.ErrorMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), application.Users.State().OperationSuccess)
			return nil
		},
	}
}

func printUser(w io.Writer, u *model.UserRecord) {
	if u == nil {
		return
	}
	fmt.Fprintf(w, "ID:       %d\n", u.ID)
	fmt.Fprintf(w, "Email:    %s\n", u.Email)
	fmt.Fprintf(w, "Roles:    %s\n", joinRoles(u.Roles))
	fmt.Fprintf(w, "Enabled:  %t\n", u.IsEnabled())
	fmt.Fprintf(w, "Created:  %s\n", stamp(u.CreatedAt))
	fmt.Fprintf(w, "Updated:  %s\n", stamp(u.UpdatedAt))
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

func parseRole(s string) (model.Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMIN", string(model.RoleAdmin):
		return model.RoleAdmin, nil
	case "USER", string(model.RoleUser):
		return model.RoleUser, nil
	}
	return "", fmt.Errorf("unknown role %q (want user or admin)", s)
}

// rolesFor maps a role choice to the roles an account carries. Admins are
// also users.
func rolesFor(s string) ([]model.Role, error) {
	r, err := parseRole(s)
	if err != nil {
		return nil, err
	}
	if r == model.RoleAdmin {
		return []model.Role{model.RoleAdmin, model.RoleUser}, nil
	}
	return []model.Role{model.RoleUser}, nil
}

func shortRoles(roles []model.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = strings.TrimPrefix(string(r), "ROLE_")
	}
	return strings.Join(names, ",")
}

func stamp(t *model.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.Time(t.Time)
}
