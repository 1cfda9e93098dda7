package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/habedi/tokenflow/auth"
	"github.com/habedi/tokenflow/pkg/fingerprint"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// statusCmd shows the stored token state without contacting the issuer.
func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored token state",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), manager, time.Now())
			return nil
		},
	}
}

func renderStatus(w io.Writer, manager *auth.Manager, now time.Time) {
	token := manager.GetToken()

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Property", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	table.Append([]string{"Logged in", strconv.FormatBool(token != "")})
	if token != "" {
		table.Append([]string{"Access token", fingerprint.Short(token)})
	}
	if meta, ok := manager.Metadata(auth.AccessToken); ok {
		table.Append([]string{"Access token expires", formatExpiry(meta.ExpiresAt, now)})
		if !meta.LastRefresh.IsZero() {
			table.Append([]string{"Last refresh", meta.LastRefresh.Format(time.RFC3339)})
		}
	}
	if meta, ok := manager.Metadata(auth.RefreshToken); ok {
		table.Append([]string{"Refresh token expires", formatExpiry(meta.ExpiresAt, now)})
	}
	if token != "" {
		table.Append([]string{"Needs refresh", strconv.FormatBool(manager.ShouldRefreshToken())})
	}

	state := manager.RefreshState()
	if state.CooldownRemaining > 0 {
		table.Append([]string{"Refresh cooldown", state.CooldownRemaining.Round(time.Millisecond).String()})
	}

	if claims, err := auth.InspectClaims(token); err == nil {
		if claims.Subject != "" {
			table.Append([]string{"Subject", claims.Subject})
		}
		if claims.Issuer != "" {
			table.Append([]string{"Issuer", claims.Issuer})
		}
		if !claims.ExpiresAt.IsZero() {
			table.Append([]string{"JWT expires", formatExpiry(claims.ExpiresAt, now)})
		}
	}

	table.Render()
}

func formatExpiry(at, now time.Time) string {
	left := at.Sub(now).Round(time.Second)
	if left <= 0 {
		return fmt.Sprintf("%s (expired)", at.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s (in %s)", at.Format(time.RFC3339), left)
}
