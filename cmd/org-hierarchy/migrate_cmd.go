package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/infrastructure/persistence"
)

type migrateOutput struct {
	Command string `json:"command"`
	Pending int    `json:"pending"`
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending org schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if !statusOnly {
				if err := persistence.Migrate(s.ctx, s.pool, s.logger); err != nil {
					return withCode(exitMigration, err)
				}
			}
			pending, err := persistence.PendingMigrations(s.ctx, s.pool)
			if err != nil {
				return withCode(exitMigration, fmt.Errorf("migration status: %w", err))
			}
			return writeJSON(cmd.OutOrStdout(), migrateOutput{Command: cmd.Name(), Pending: pending})
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only report the number of pending migrations")
	return cmd
}
