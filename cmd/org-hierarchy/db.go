package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/infrastructure/persistence"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/configuration"
)

type session struct {
	ctx    context.Context
	pool   *pgxpool.Pool
	conf   *configuration.Configuration
	logger *logrus.Logger
}

func (s *session) Close() {
	s.pool.Close()
	s.conf.Unload()
}

// hierarchyService reads straight from the database; the CLI never uses the cache.
func (s *session) hierarchyService() *services.HierarchyService {
	return services.NewHierarchyService(
		persistence.NewOrgRepository(),
		nil,
		services.WithPolicy(org.PolicyFromOptions(s.conf.Org)),
	)
}

func openSession(ctx context.Context, opts *rootOptions) (*session, error) {
	conf, err := configuration.Load(".env", ".env.local")
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("load configuration: %w", err))
	}
	dsn := opts.dsn
	if dsn == "" {
		dsn = conf.Database.Opts
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, dsn)
	if err == nil {
		err = pool.Ping(connectCtx)
	}
	if err != nil {
		conf.Unload()
		return nil, withCode(exitDB, fmt.Errorf("db connect failed: %w", err))
	}

	logger := conf.Logger()
	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithLogger(ctx, logger.WithField("component", "org-hierarchy"))
	return &session{ctx: ctx, pool: pool, conf: conf, logger: logger}, nil
}
