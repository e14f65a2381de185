package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/victornm/quizdesk/internal/journal"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the submission journal schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			group, err := journal.Migrate(cmd.Context(), c.Postgres.Journal.DSN())
			if err != nil {
				return err
			}

			if group == "" {
				slog.InfoContext(cmd.Context(), "migrate: nothing to apply")
				return nil
			}
			slog.InfoContext(cmd.Context(), "migrate: applied", "group", group)
			return nil
		},
	}
}
