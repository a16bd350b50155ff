package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	dsn string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "org-hierarchy",
		Short:         "Position hierarchy maintenance: migrations, integrity scan and graph queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "postgres connection string (defaults to DB_* settings)")

	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newChainCmd(opts))
	cmd.AddCommand(newSubordinatesCmd(opts))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
