package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/habedi/tokenflow/auth"
	"github.com/rs/zerolog/log"
)

// ErrBrowserUnavailable is returned when no Chrome or Chromium executable is installed.
var ErrBrowserUnavailable = errors.New("no Chrome or Chromium executable found in PATH")

// ImportBrowserSession opens pageURL in Chrome, waits until the web application has stored its
// access token cookie (the user may have to log in first) and returns the token pair found in
// the browser's cookies.
func ImportBrowserSession(ctx context.Context, pageURL string, headless bool, timeout time.Duration) (auth.TokenPair, error) {
	browserCtx, cancel, err := createChromeContext(ctx, headless)
	if err != nil {
		return auth.TokenPair{}, err
	}
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	log.Info().Str("url", pageURL).Msg("Waiting for the browser session to store its tokens")
	var pair auth.TokenPair
	err = chromedp.Run(timeoutCtx,
		chromedp.Navigate(pageURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for {
				cookies, err := network.GetCookies().WithURLs([]string{pageURL}).Do(ctx)
				if err != nil {
					return err
				}
				if found, ok := tokensFromCookies(cookies); ok {
					pair = found
					return nil
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(500 * time.Millisecond):
				}
			}
		}),
	)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("failed to import browser session: %w", err)
	}
	return pair, nil
}

// tokensFromCookies picks the token cookies out of a browser cookie list. It reports false
// until an access token is present.
func tokensFromCookies(cookies []*network.Cookie) (auth.TokenPair, bool) {
	var pair auth.TokenPair
	for _, c := range cookies {
		if c == nil {
			continue
		}
		value := c.Value
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
		switch c.Name {
		case auth.AccessTokenCookie:
			pair.AccessToken = value
		case auth.RefreshTokenCookie:
			pair.RefreshToken = value
		}
	}
	return pair, auth.StripBearer(pair.AccessToken) != ""
}

func createChromeContext(parent context.Context, headless bool) (context.Context, context.CancelFunc, error) {
	var execPath string
	if p, err := exec.LookPath("google-chrome"); err == nil {
		execPath = p
	} else if p, err := exec.LookPath("chromium"); err == nil {
		execPath = p
	} else if p, err := exec.LookPath("chrome"); err == nil {
		execPath = p
	} else {
		return nil, nil, ErrBrowserUnavailable
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(execPath))
	if !headless {
		opts = append(opts, chromedp.Flag("headless", false), chromedp.Flag("disable-gpu", false))
	}
	allocatorCtx, cancelAllocator := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancelContext := chromedp.NewContext(allocatorCtx, chromedp.WithLogf(log.Debug().Msgf))
	return ctx, func() {
		cancelContext()
		cancelAllocator()
	}, nil
}
