package cmd

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/habedi/tokenflow/auth"
	"github.com/habedi/tokenflow/pkg/fingerprint"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// watchCmd prints token changes until interrupted and, unless disabled, refreshes the access
// token shortly before it expires.
func watchCmd(a *app) *cobra.Command {
	var interval time.Duration
	var keepAlive bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print token changes and keep the access token fresh",
		Long: "Print token changes made by this or any other process sharing the token database. " +
			"Changes from other processes are seen immediately with --redis and on the next poll otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return validationError("interval must be positive")
			}
			manager, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			p := &changePrinter{cmd: cmd, last: manager.GetToken()}
			unsubscribe := manager.OnTokenChange(p.print)
			defer unsubscribe()

			cmd.Println("Watching token changes. Press Ctrl+C to stop.")
			p.print(p.last)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return poll(ctx, interval, func() {
					p.print(manager.GetToken())
				})
			})
			if keepAlive {
				g.Go(func() error {
					return poll(ctx, interval, func() {
						keepFresh(ctx, manager)
					})
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 10*time.Second, "How often to check the stored token")
	cmd.Flags().BoolVar(&keepAlive, "keep-alive", true, "Refresh the access token before it expires? [true, false]")

	return cmd
}

// changePrinter prints each distinct token state once.
type changePrinter struct {
	cmd     *cobra.Command
	mu      sync.Mutex
	last    string
	printed bool
}

func (p *changePrinter) print(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed && token == p.last {
		return
	}
	p.last, p.printed = token, true

	stamp := time.Now().Format(time.RFC3339)
	if token == "" {
		p.cmd.Println(stamp, "logged out")
		return
	}
	p.cmd.Println(stamp, "token", fingerprint.Short(token))
}

func poll(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}

func keepFresh(ctx context.Context, manager *auth.Manager) {
	if manager.GetToken() == "" || !manager.ShouldRefreshToken() {
		return
	}
	if _, err := manager.GetValidAccessToken(ctx); err != nil {
		log.Warn().Err(err).Bool("login_required", auth.RequiresLogin(err)).Msg("Failed to keep the access token fresh")
	}
}
