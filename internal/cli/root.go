package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/victornm/quizdesk/internal/config"
	"github.com/victornm/quizdesk/internal/server"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
	)

	cmd := &cobra.Command{
		Use:           "quizdesk",
		Short:         "Timed quiz sessions against the quiz scoring API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the config file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config, ignored when missing")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newTakeCmd(&configPath))
	cmd.AddCommand(newMigrateCmd(&configPath))
	return cmd
}

// loadEnv never overrides variables that are already set.
func loadEnv(file string) error {
	if file == "" {
		return nil
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", file, err)
	}
	return nil
}

func loadConfig(path string) (server.Config, error) {
	c := server.DefaultConfig()
	if err := config.Load(path, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}
