package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"piawg/internal/config"
	"piawg/internal/prefs"
	"piawg/internal/session"
)

type loginOptions struct {
	Username string
	Password string
}

func NewLoginCommand(global *globalOptions) *cobra.Command {
	opts := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with PIA and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			store, closeStore := a.openPrefs()
			defer closeStore()

			in := bufio.NewReader(cmd.InOrStdin())
			user := opts.Username
			if user == "" {
				remembered := prefs.Load(ctx, store, a.log).Username
				if user, err = promptLine(cmd, in, "Username", remembered); err != nil {
					return err
				}
			}
			pass := opts.Password
			if pass == "" {
				pass = os.Getenv("PIA_PASSWORD")
			}
			if pass == "" {
				if pass, err = promptPassword(cmd, in); err != nil {
					return err
				}
			}

			creds, err := config.Credentials(config.Input{Username: user, Password: pass})
			if err != nil {
				return err
			}
			token, err := a.pipeline.Login(ctx, creds)
			if err != nil {
				return err
			}
			if err := a.sessions.Save(session.Session{Username: creds.Username, Token: token}); err != nil {
				return err
			}
			prefs.Remember(ctx, store, a.log, map[string]string{prefs.KeyUsername: creds.Username})

			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", creds.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Username, "username", "", "PIA username (p1234567)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "PIA password (or PIA_PASSWORD; prompted when omitted)")
	return cmd
}

func NewLogoutCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			if err := a.sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func promptLine(cmd *cobra.Command, in *bufio.Reader, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// promptPassword reads without echo from a terminal, or a plain line when
// stdin is redirected.
func promptPassword(cmd *cobra.Command, in *bufio.Reader) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
