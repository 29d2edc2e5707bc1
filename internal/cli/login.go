package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/authapp/internal/session"
	"github.com/me/authapp/pkg/model"
)

func newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if email == "" {
				if email, err = prompt(cmd, in, "Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd, in, "Password: "); err != nil {
					return err
				}
			}

			mgr := application.Session
			if !mgr.Login(cmd.Context(), model.Credentials{Email: email, Password: password}) {
				return errors.New(mgr.Status().Error)
			}
			st := mgr.Status()
			fmt.Fprintln(cmd.OutOrStdout(), st.SuccessMessage)
			printIdentity(cmd, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if empty)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if empty)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !application.Session.IsAuthenticated() {
				application.Logout(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), session.MsgNotSignedIn)
				return nil
			}
			ok := application.Logout(cmd.Context())
			st := application.Session.Status()
			if !ok {
				// Local state is gone either way; only the server call failed.
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: "+st.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), session.MsgLogoutSuccess)
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := application.Session
			mgr.ExpireIfStale(cmd.Context())
			st := mgr.Status()
			if st.State == session.Expired {
				return errors.New(session.MsgSessionExpired)
			}
			if _, err := mgr.RequireUser(); err != nil {
				return err
			}
			printIdentity(cmd, st)
			return nil
		},
	}
}

func newPasswdCmd() *cobra.Command {
	var current, next string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the signed-in user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := application.Session
			u, err := mgr.RequireUser()
			if err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			if current == "" {
				if current, err = prompt(cmd, in, "Current password: "); err != nil {
					return err
				}
			}
			if next == "" {
				if next, err = prompt(cmd, in, "New password: "); err != nil {
					return err
				}
			}
			change := model.PasswordChange{Email: u.Email, CurrentPassword: current, NewPassword: next}
			if !mgr.ChangePassword(cmd.Context(), change) {
				return errors.New(mgr.Status().Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), mgr.Status().SuccessMessage)
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "Current password (prompted if empty)")
	cmd.Flags().StringVar(&next, "new", "", "New password (prompted if empty)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Ask the server whether the session is still valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !application.Session.ValidateSession(cmd.Context()) {
				return errors.New("session is not valid")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session is valid")
			return nil
		},
	}
}

func printIdentity(cmd *cobra.Command, st session.Status) {
	w := cmd.OutOrStdout()
	if st.User == nil {
		return
	}
	fmt.Fprintf(w, "Email:   %s\n", st.User.Email)
	fmt.Fprintf(w, "Roles:   %s\n", joinRoles(st.User.Roles))
	if st.User.LastLogin != nil && !st.User.LastLogin.IsZero() {
		fmt.Fprintf(w, "Last login: %s\n", humanize.Time(st.User.LastLogin.Time))
	}
	if st.Session != nil {
		fmt.Fprintf(w, "Expires: %s (%s)\n",
			st.Session.Expiry.Format("2006-01-02 15:04:05"), humanize.Time(st.Session.Expiry))
	}
}

// prompt writes label to stderr and reads one line from in.
func prompt(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(strings.TrimSuffix(label, ": ")), err)
	}
	return strings.TrimSpace(line), nil
}

func joinRoles(roles []model.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
