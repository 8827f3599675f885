package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apperrors "algopilot-panel/internal/errors"
)

// addAuthCommands adds login/logout commands to the root command.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	var username, password string

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the trading engine",
		Long: `Log in to the trading engine and store the session token.

Credentials come from flags, then credentials.toml, then an interactive
prompt. The token is persisted so later invocations stay logged in until
the engine expires it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			user := username
			pass := password
			if user == "" {
				user = app.Config.Credentials.Username
			}
			if pass == "" {
				pass = app.Config.Credentials.Password
			}

			var err error
			if user == "" {
				if user, err = promptLine("Username: "); err != nil {
					return err
				}
			}
			if pass == "" {
				if pass, err = promptPassword("Password: "); err != nil {
					return err
				}
			}
			if user == "" || pass == "" {
				return fmt.Errorf("username and password are required")
			}

			if err := app.Engine.Login(cmd.Context(), user, pass); err != nil {
				if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
					out.Error("Login failed: invalid credentials.")
					return err
				}
				return reportError(out, err)
			}

			app.Logger.Info().Str("username", user).Msg("Logged in")
			if out.IsJSON() {
				return out.JSON(map[string]interface{}{"logged_in": true, "username": user})
			}
			out.Success("✓ Logged in as %s", user)
			return nil
		},
	}
	loginCmd.Flags().StringVarP(&username, "username", "u", "", "engine username")
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "engine password (prefer the prompt)")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Log out and discard the stored session",
		Long: `Log out of the trading engine.

The stored token is removed and any unsaved configuration edits are
discarded. Purely local: the engine keeps running whatever it was doing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			wasAuthenticated := app.Session.IsAuthenticated()
			app.Session.Invalidate()
			app.Editor.Discard()
			app.Logger.Info().Msg("Logged out")

			if out.IsJSON() {
				return out.JSON(map[string]interface{}{"logged_out": true})
			}
			if !wasAuthenticated {
				out.Dim("No active session.")
				return nil
			}
			out.Success("✓ Logged out")
			return nil
		},
	}

	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Show the current session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			authenticated := app.Session.IsAuthenticated()
			if out.IsJSON() {
				return out.JSON(map[string]interface{}{
					"authenticated": authenticated,
					"engine_url":    app.Config.Engine.BaseURL,
				})
			}
			if authenticated {
				out.Success("✓ Logged in")
			} else {
				out.Warning("Not logged in. Run 'panel login'.")
			}
			if app.Config.Engine.BaseURL != "" {
				out.Dim("Engine: %s", app.Config.Engine.BaseURL)
			} else {
				out.Warning("No engine URL configured (engine.base_url / ALGOPILOT_URL).")
			}
			return nil
		},
	}

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(authCmd)
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	return promptLine("")
}
