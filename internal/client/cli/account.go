package cli

import (
	"bufio"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/client/services"
	"github.com/dmitrijs2005/sigauth/internal/common"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func newSignupCmd(o *globalOptions) *cobra.Command {
	var code, displayName string

	cmd := &cobra.Command{
		Use:   "signup USERNAME",
		Short: "Create an account with an invitation code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if displayName == "" {
				name, err := GetSimpleText(bufio.NewReader(cmd.InOrStdin()), "Display name", out)
				if err != nil {
					return oops.Code("INPUT_FAILED").With("field", "display name").Wrap(err)
				}
				displayName = name
			}

			password, err := GetNewPassword(out)
			if err != nil {
				return oops.Code("INPUT_FAILED").With("field", "password").Wrap(err)
			}
			defer common.WipeByteArray(password)

			svc, closeCache, err := o.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()

			fmt.Fprintln(out, "Deriving key credential...")
			created, err := svc.Signup(cmd.Context(), services.SignupInput{
				InvitationCode: code,
				DisplayName:    displayName,
				Username:       args[0],
				Password:       password,
			})
			if err != nil {
				return oops.Code("SIGNUP_FAILED").With("username", args[0]).Wrap(err)
			}

			fmt.Fprintf(out, "Created user %s\n", created.UserID)
			if created.Inviter.DisplayName != "" {
				fmt.Fprintf(out, "Invited by %s\n", created.Inviter.DisplayName)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "invitation code")
	cmd.Flags().StringVar(&displayName, "display-name", "", "name shown to other users")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func newLoginCmd(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login USERNAME",
		Short: "Log in and cache the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			password, err := GetPassword(out, "Password")
			if err != nil {
				return oops.Code("INPUT_FAILED").With("field", "password").Wrap(err)
			}
			defer common.WipeByteArray(password)

			svc, closeCache, err := o.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()

			s, err := svc.Login(cmd.Context(), args[0], password)
			if err != nil {
				return oops.Code("LOGIN_FAILED").With("username", args[0]).Wrap(err)
			}

			fmt.Fprintf(out, "Logged in as %s\n", s.Username)
			if !s.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "Session expires %s\n", s.ExpiresAt.Format(time.RFC3339))
			}
			fmt.Fprintln(out, s.Token)
			return nil
		},
	}
}

func newWhoamiCmd(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeCache, err := o.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()

			s, err := svc.Current(cmd.Context())
			if err != nil {
				return oops.Code("NOT_LOGGED_IN").Wrap(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Username)
			return nil
		},
	}
}

func newLogoutCmd(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeCache, err := o.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()

			if err := svc.Logout(cmd.Context()); err != nil {
				return oops.Code("LOGOUT_FAILED").Wrap(err)
			}
			cmd.Println("Logged out")
			return nil
		},
	}
}

func newPingCmd(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeCache, err := o.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()

			if err := svc.Ping(cmd.Context()); err != nil {
				return oops.Code("SERVER_UNAVAILABLE").With("server", o.server).Wrap(err)
			}
			cmd.Println("ok")
			return nil
		},
	}
}
