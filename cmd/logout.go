package cmd

import (
	"github.com/spf13/cobra"
)

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			manager.ClearTokens()
			cmd.Println("Logged out.")
			return nil
		},
	}
}
