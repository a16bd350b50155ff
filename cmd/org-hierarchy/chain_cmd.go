package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"
)

type graphReader interface {
	GetReportingChain(ctx context.Context, positionID uuid.UUID) ([]hierarchy.ChainEntry, error)
	GetSubordinates(ctx context.Context, positionID uuid.UUID) ([]hierarchy.Subordinate, error)
}

type chainOutput struct {
	PositionID uuid.UUID              `json:"position_id"`
	Chain      []hierarchy.ChainEntry `json:"chain"`
}

type subordinatesOutput struct {
	PositionID   uuid.UUID               `json:"position_id"`
	Subordinates []hierarchy.Subordinate `json:"subordinates"`
}

func newChainCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chain <position-id>",
		Short: "Print the reporting chain of a position, starting with itself",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositionID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()
			return runChain(s.ctx, s.hierarchyService(), id, cmd.OutOrStdout())
		},
	}
}

func newSubordinatesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "subordinates <position-id>",
		Short: "Print every position below a position, via reports-to and coordinator edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositionID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()
			return runSubordinates(s.ctx, s.hierarchyService(), id, cmd.OutOrStdout())
		},
	}
}

func parsePositionID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid position id %q: %w", raw, err))
	}
	return id, nil
}

func graphError(err error) error {
	if services.IsKind(err, services.KindPositionNotFound) {
		return withCode(exitUsage, err)
	}
	return withCode(exitDB, err)
}

func runChain(ctx context.Context, g graphReader, id uuid.UUID, out io.Writer) error {
	chain, err := g.GetReportingChain(ctx, id)
	if err != nil {
		return graphError(err)
	}
	return writeJSON(out, chainOutput{PositionID: id, Chain: chain})
}

func runSubordinates(ctx context.Context, g graphReader, id uuid.UUID, out io.Writer) error {
	subs, err := g.GetSubordinates(ctx, id)
	if err != nil {
		return graphError(err)
	}
	if subs == nil {
		subs = []hierarchy.Subordinate{}
	}
	return writeJSON(out, subordinatesOutput{PositionID: id, Subordinates: subs})
}
