package cmd

import (
	"context"
	"time"

	"github.com/habedi/tokenflow/pkg/fingerprint"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// refreshCmd exchanges the refresh token for a new pair even when the access token is still valid.
func refreshCmd(a *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token now",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			var token string
			if quiet {
				token, err = manager.StartTokenRefresh(cmd.Context())
			} else {
				token, err = withSpinner(cmd, "Refreshing token...", func() (string, error) {
					return manager.StartTokenRefresh(cmd.Context())
				})
			}
			if err != nil {
				return tokenError(err)
			}

			cmd.Println("Token refreshed. Token fingerprint:", fingerprint.Short(token))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not show a progress spinner")

	return cmd
}

// withSpinner runs fn while a spinner is shown on stderr.
func withSpinner(cmd *cobra.Command, description string, fn func() (string, error)) (string, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionClearOnFinish(),
	)

	ctx, stop := context.WithCancel(cmd.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	result, err := fn()
	stop()
	<-done
	_ = bar.Finish()
	return result, err
}
