package cmd

import (
	"os"

	"github.com/habedi/tokenflow/pkg/clierr"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func Execute() {
	// A missing .env file is not an error; the environment and flags still apply.
	_ = godotenv.Load()

	rootCmd := createRootCmd()
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command execution failed.")
		os.Exit(clierr.ExitCode(err))
	}
}

func createRootCmd() *cobra.Command {
	a := &app{settings: defaultSettings()}

	rootCmd := &cobra.Command{
		Use:           "tokenflow",
		Short:         "Keep an access/refresh token pair alive and make authenticated requests",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	a.settings.bindFlags(rootCmd)

	rootCmd.AddCommand(
		loginCmd(a),
		tokenCmd(a),
		refreshCmd(a),
		statusCmd(a),
		logoutCmd(a),
		callCmd(a),
		watchCmd(a),
		versionCmd(),
	)

	// Release the database and feed whether or not the command succeeded.
	for _, sub := range rootCmd.Commands() {
		if run := sub.RunE; run != nil {
			sub.RunE = func(cmd *cobra.Command, args []string) error {
				defer a.close()
				return run(cmd, args)
			}
		}
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}
