package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"dashchat/internal/credentials"
	apperrors "dashchat/internal/errors"
	"dashchat/pkg/chatapi"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const passwordEnv = "DASHCHAT_PASSWORD"

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return apperrors.NewValidationError("email", "", "is required")
			}
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			if password == "" {
				p, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				password = p
			}

			// login is anonymous; the token is stored only after it succeeds
			client := chatapi.NewClientWithLogger(a.server, nil, nil, a.logger)
			resp, err := client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			if err := a.store.SetToken(resp.Token); err != nil {
				return err
			}
			if err := a.store.Set(credentials.ServerKey, a.server); err != nil {
				return err
			}
			if err := a.store.Set(credentials.UserKey, resp.User.ID); err != nil {
				return err
			}

			a.logger.WithField("user_id", resp.User.ID).Debug("Stored credentials")
			printf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", resp.User.GetDisplayName(), resp.User.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (default is $"+passwordEnv+", then a prompt)")
	return cmd
}

// readPassword reads a password without echo from a terminal, or a single
// line from any other input.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		printf(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		printf(prompt, "\n")
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", apperrors.NewValidationError("password", "", "is required")
	}
	return password, nil
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Clear(); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Logged out\n")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity carried by the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := a.identity()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printf(out, "user:   %s\n", identity.UserID)
			printf(out, "role:   %s\n", identity.Role)
			printf(out, "server: %s\n", a.server)
			return nil
		},
	}
}
