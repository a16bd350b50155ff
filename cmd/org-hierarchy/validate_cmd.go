package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
)

type hierarchyValidator interface {
	ValidateHierarchy(ctx context.Context) (hierarchy.Report, error)
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Scan the hierarchy for cycles and orphaned positions (exit 2 when findings exist)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()
			return runValidate(s.ctx, s.hierarchyService(), cmd.OutOrStdout())
		},
	}
}

func runValidate(ctx context.Context, v hierarchyValidator, out io.Writer) error {
	rep, err := v.ValidateHierarchy(ctx)
	if err != nil {
		return withCode(exitDB, fmt.Errorf("validate hierarchy: %w", err))
	}
	if err := writeJSON(out, rep); err != nil {
		return err
	}
	if !rep.Valid {
		return withCode(exitInvalid, fmt.Errorf(
			"hierarchy is invalid: %d circular references, %d orphaned positions",
			len(rep.CircularReferences), len(rep.OrphanedPositions),
		))
	}
	return nil
}
