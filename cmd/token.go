package cmd

import (
	"github.com/habedi/tokenflow/auth"
	"github.com/habedi/tokenflow/pkg/fingerprint"
	"github.com/spf13/cobra"
)

// tokenCmd prints a valid access token, refreshing it first when it is near expiry.
func tokenCmd(a *app) *cobra.Command {
	var raw, showFingerprint bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token",
		Long:  "Print a valid access token, refreshing it first when it is about to expire",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			token, err := manager.GetValidAccessToken(cmd.Context())
			if err != nil {
				return tokenError(err)
			}

			switch {
			case showFingerprint:
				cmd.Println(fingerprint.Short(token))
			case raw:
				cmd.Println(auth.StripBearer(token))
			default:
				cmd.Println(token)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&raw, "raw", "r", false, "Print the token without the \"Bearer \" prefix")
	cmd.Flags().BoolVarP(&showFingerprint, "fingerprint", "f", false, "Print a short fingerprint instead of the token")

	return cmd
}
