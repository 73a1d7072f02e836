package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/h0rv/ghsync/internal/auth"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the connected GitHub account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			snap, err := rt.tracker().Check(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to check auth status: %w", err)
			}
			out := renderer{w: cmd.OutOrStdout(), format: rt.format}
			if rt.format == formatJSON {
				return out.json(snap.User)
			}
			if !snap.Authenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "Not connected. Run 'ghsync login' to connect your GitHub account.")
				return nil
			}
			u := snap.User
			out.keyValues([][2]string{
				{"Username", "@" + u.Username},
				{"Display Name", u.DisplayName},
				{"Status", u.Status},
				{"Connected At", u.ConnectedAt},
				{"Backend", rt.cfg.BaseURL},
			})
			return nil
		},
	}
}

func newLoginCmd() *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect a GitHub account through the backend",
		Long: `Start the backend's GitHub OAuth flow in a browser, then paste the
session cookie the backend set. The value may be the bare cookie value,
"name=value", or a whole Cookie header.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			w := cmd.OutOrStdout()
			authURL := rt.cfg.OAuthStartURL()
			if noBrowser {
				fmt.Fprintf(w, "Open this URL to connect your GitHub account:\n  %s\n", authURL)
			} else if err := openURL(authURL); err != nil {
				rt.logger.Warn("failed to open browser", "error", err)
				fmt.Fprintf(w, "Could not open a browser (%v). Open this URL instead:\n  %s\n", err, authURL)
			} else {
				fmt.Fprintf(w, "Opened %s in your browser.\n", authURL)
			}
			fmt.Fprintf(w, "Paste the %s cookie once you have signed in: ", rt.cfg.SessionCookieName)

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("failed to read session: %w", err)
			}
			value := auth.NormalizeCookie(rt.cfg.SessionCookieName, strings.TrimSpace(line))
			if value == "" {
				return errors.New("no session entered")
			}

			rt.client.SetSession(value)
			snap, err := rt.tracker().Check(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to check auth status: %w", err)
			}
			if !snap.Authenticated {
				return errors.New("the backend did not accept that session")
			}
			if err := rt.prefs.SetSession(value); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
			fmt.Fprintf(w, "\nConnected as @%s\n", snap.User.Username)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the sign-in URL instead of opening it")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Disconnect the GitHub account and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			tracker := rt.tracker()
			if err := tracker.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("failed to log out: %w", err)
			}
			tracker.Clear()
			rt.client.SetSession("")
			if err := rt.prefs.SetSession(""); err != nil {
				return fmt.Errorf("failed to forget session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Disconnected.")
			return nil
		},
	}
}
