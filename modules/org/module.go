package org

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/validity"
	orgcache "github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/infrastructure/cache"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/infrastructure/persistence"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/presentation/controllers"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/application"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/configuration"
)

type ModuleOptions struct {
	Org        configuration.OrgOptions
	Authorizer services.Authorizer
	// Redis backs the hierarchy cache when Org.CacheEnabled is set.
	Redis *redis.Client
	Clock services.Clock
}

func NewModule(opts *ModuleOptions) application.Module {
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

// PolicyFromOptions maps configured limits onto the assignment rules.
func PolicyFromOptions(o configuration.OrgOptions) services.Policy {
	p := services.DefaultPolicy()
	if o.MaxBackdateMonths > 0 {
		p.Validity.MaxBackdate = validity.Span{Months: o.MaxBackdateMonths}
		if o.MaxBackdateMonths%12 == 0 {
			p.Validity.MaxBackdate = validity.Span{Years: o.MaxBackdateMonths / 12}
		}
	}
	if o.MaxSpanYears > 0 {
		p.Validity.MaxSpan = validity.Span{Years: o.MaxSpanYears}
	}
	if o.ActingMaxMonths > 0 {
		p.ActingMaxDuration = validity.Span{Months: o.ActingMaxMonths}
	}
	if o.ActingMaxHolders > 0 {
		p.MaxActingHolders = o.ActingMaxHolders
	}
	if o.MaxChainDepth > 0 {
		p.MaxChainDepth = o.MaxChainDepth
	}
	return p
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().Register(m.Name(), persistence.Migrate, persistence.PendingMigrations)

	bus := app.EventPublisher()
	bus.Subscribe(services.AuditSubscriber(persistence.NewAuditRepository()))

	opts := []services.Option{
		services.WithPolicy(PolicyFromOptions(m.options.Org)),
		services.WithEventBus(bus),
		services.WithAuditTimeout(m.options.Org.AuditTimeout),
	}
	if m.options.Clock != nil {
		opts = append(opts, services.WithClock(m.options.Clock))
	}

	var pingCache func(ctx context.Context) error
	if m.options.Org.CacheEnabled && m.options.Redis != nil {
		client := m.options.Redis
		opts = append(opts, services.WithHierarchyCache(orgcache.NewHierarchyCache(client, orgcache.DefaultKey, m.options.Org.CacheTTL)))
		pingCache = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	repo := persistence.NewOrgRepository()
	tx := persistence.NewPgTransactor()
	access := services.NewScopedAccess(m.options.Authorizer, repo)

	hierarchyService := services.NewHierarchyService(repo, access, opts...)
	app.RegisterServices(
		hierarchyService,
		services.NewAssignmentService(repo, tx, access, opts...),
		services.NewPositionService(repo, tx, access, hierarchyService, opts...),
	)

	probes := controllers.HealthProbes{PingCache: pingCache}
	if pool := app.DB(); pool != nil {
		probes.PingDB = pool.Ping
		probes.PendingMigrations = func(ctx context.Context) (int, error) {
			return persistence.PendingMigrations(ctx, pool)
		}
	}
	app.RegisterControllers(
		controllers.NewOrgAPIController(app, controllers.RetryOptions{
			MaxRetries: m.options.Org.TxMaxRetries,
			Base:       m.options.Org.TxRetryBase,
		}),
		controllers.NewOrgOpsHealthController(probes),
	)
	return nil
}

func (m *Module) Name() string {
	return "org"
}
