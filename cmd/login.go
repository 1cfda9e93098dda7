package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/habedi/tokenflow/client"
	"github.com/habedi/tokenflow/pkg/clierr"
	"github.com/habedi/tokenflow/pkg/fingerprint"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// loginCmd stores a token pair given on the command line, typed at a prompt or imported from
// a browser session.
func loginCmd(a *app) *cobra.Command {
	var accessToken, refreshToken, browserURL string
	var headless bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access/refresh token pair",
		Long: "Store an access/refresh token pair. Tokens can be passed as flags, typed at a prompt, " +
			"or imported from the cookies of a web application opened in Chrome (--browser).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if browserURL != "" {
				pair, err := client.ImportBrowserSession(cmd.Context(), browserURL, headless, timeout)
				if err != nil {
					return clierr.New(clierr.Internal, "failed to import tokens from the browser", err)
				}
				accessToken, refreshToken = pair.AccessToken, pair.RefreshToken
			} else if accessToken == "" {
				cmd.Println("Please enter your tokens.")
				reader := bufio.NewReader(cmd.InOrStdin())
				var err error
				if accessToken, err = promptForSecret(cmd, reader, "Access token: "); err != nil {
					return clierr.New(clierr.Internal, "failed to read the access token", err)
				}
				if refreshToken, err = promptForSecret(cmd, reader, "Refresh token (optional): "); err != nil {
					return clierr.New(clierr.Internal, "failed to read the refresh token", err)
				}
			}

			if strings.TrimSpace(accessToken) == "" {
				return clierr.New(clierr.Validation, "access token cannot be empty", nil)
			}

			manager, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			token := manager.SetTokens(strings.TrimSpace(accessToken), strings.TrimSpace(refreshToken))
			cmd.Println("Login was successful. Token fingerprint:", fingerprint.Short(token))
			return nil
		},
	}

	cmd.Flags().StringVar(&accessToken, "access", "", "Access token to store")
	cmd.Flags().StringVar(&refreshToken, "refresh", "", "Refresh token to store")
	cmd.Flags().StringVar(&browserURL, "browser", "", "Import the tokens from the cookies of this page opened in Chrome")
	cmd.Flags().BoolVarP(&headless, "headless", "n", false, "Run the browser without showing its window? [true, false]")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the browser session to store its tokens")

	return cmd
}

// promptForSecret reads one line without echoing it when stdin is a terminal.
func promptForSecret(cmd *cobra.Command, reader *bufio.Reader, prompt string) (string, error) {
	cmd.Print(prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return readLine(reader)
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
