package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
)

// HierarchyService answers read-only graph questions. Reads are not
// transactionally coupled to assignment writes.
type HierarchyService struct {
	repo   Repository
	access AccessControl
	cache  HierarchyCache
	policy Policy
	tracer trace.Tracer
}

func NewHierarchyService(repo Repository, access AccessControl, opts ...Option) *HierarchyService {
	o := buildOptions(opts)
	return &HierarchyService{
		repo:   repo,
		access: access,
		cache:  o.cache,
		policy: o.policy,
		tracer: o.tracer,
	}
}

// Authorize runs the access gate for a read on the hierarchy.
func (s *HierarchyService) Authorize(ctx context.Context, actorID uuid.UUID, entity EntityType, entityID uuid.UUID) error {
	_, err := checkAccess(ctx, s.access, actorID, entity, entityID, OpRead)
	return err
}

// Graph loads the current hierarchy, from the cache when possible.
func (s *HierarchyService) Graph(ctx context.Context) (*hierarchy.Graph, error) {
	nodes, err := s.loadNodes(ctx)
	if err != nil {
		return nil, err
	}
	return hierarchy.New(nodes, hierarchy.WithMaxChainDepth(s.policy.MaxChainDepth)), nil
}

func (s *HierarchyService) loadNodes(ctx context.Context) ([]hierarchy.Node, error) {
	if s.cache != nil {
		nodes, ok, err := s.cache.Get(ctx)
		if err != nil {
			logWithFields(ctx, logrus.WarnLevel, "org.hierarchy.cache_get_failed", logrus.Fields{"error": err.Error()})
		}
		recordCacheRequest("hierarchy", ok)
		if ok {
			return nodes, nil
		}
	}

	nodes, err := s.repo.ListHierarchyNodes(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, nodes); err != nil {
			logWithFields(ctx, logrus.WarnLevel, "org.hierarchy.cache_set_failed", logrus.Fields{"error": err.Error()})
		}
	}
	return nodes, nil
}

// Invalidate drops the cached graph after a hierarchy write.
func (s *HierarchyService) Invalidate(ctx context.Context, reason string) {
	if s == nil || s.cache == nil {
		return
	}
	recordCacheInvalidate(reason)
	if err := s.cache.Invalidate(ctx); err != nil {
		logWithFields(ctx, logrus.WarnLevel, "org.hierarchy.cache_invalidate_failed", logrus.Fields{
			"reason": reason,
			"error":  err.Error(),
		})
	}
}

func (s *HierarchyService) GetReportingChain(ctx context.Context, positionID uuid.UUID) ([]hierarchy.ChainEntry, error) {
	ctx, span := s.tracer.Start(ctx, "org.hierarchy.chain", trace.WithAttributes(attribute.String("org.position_id", positionID.String())))
	defer span.End()

	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	chain, err := g.ReportingChain(positionID)
	if errors.Is(err, hierarchy.ErrPositionNotInGraph) {
		return nil, newServiceError(KindPositionNotFound, "position not found", err).with("position_id", positionID.String())
	}
	return chain, err
}

func (s *HierarchyService) GetSubordinates(ctx context.Context, positionID uuid.UUID) ([]hierarchy.Subordinate, error) {
	ctx, span := s.tracer.Start(ctx, "org.hierarchy.subordinates", trace.WithAttributes(attribute.String("org.position_id", positionID.String())))
	defer span.End()

	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := g.Subordinates(positionID)
	if errors.Is(err, hierarchy.ErrPositionNotInGraph) {
		return nil, newServiceError(KindPositionNotFound, "position not found", err).with("position_id", positionID.String())
	}
	return subs, err
}

// ValidateHierarchy scans the whole graph. It always reads from the store.
func (s *HierarchyService) ValidateHierarchy(ctx context.Context) (hierarchy.Report, error) {
	ctx, span := s.tracer.Start(ctx, "org.hierarchy.validate")
	defer span.End()

	nodes, err := s.repo.ListHierarchyNodes(ctx)
	if err != nil {
		return hierarchy.Report{}, err
	}
	rep := hierarchy.New(nodes, hierarchy.WithMaxChainDepth(s.policy.MaxChainDepth)).Validate()
	recordScan(rep)
	span.SetAttributes(
		attribute.Bool("org.hierarchy.valid", rep.Valid),
		attribute.Int("org.hierarchy.circular", len(rep.CircularReferences)),
		attribute.Int("org.hierarchy.orphaned", len(rep.OrphanedPositions)),
	)

	level := logrus.InfoLevel
	if !rep.Valid {
		level = logrus.WarnLevel
	}
	logWithFields(ctx, level, "org.hierarchy.validated", logrus.Fields{
		"checked":             rep.Checked,
		"valid":               rep.Valid,
		"circular_references": len(rep.CircularReferences),
		"orphaned_positions":  len(rep.OrphanedPositions),
	})
	return rep, nil
}
