package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/me-ChrisHandoko/my-gloria-sub005/internal/server"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/application"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/authz"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/configuration"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/eventbus"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/logging"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/metrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
			logger,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if conf.Org.CacheEnabled {
		redisOpts, err := redis.ParseURL(conf.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(redisOpts)
		defer func() { _ = redisClient.Close() }()
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app, org.NewModule(&org.ModuleOptions{
		Org:        conf.Org,
		Authorizer: authz.Use(),
		Redis:      redisClient,
	})); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	if err := app.Migrations().Run(ctx); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	if conf.Org.ValidateOnStartup {
		validateHierarchy(composables.WithPool(context.Background(), pool), app, logger)
	}

	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}
	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Printf("Listening on: %s\n", conf.SocketAddress)
	if err := serverInstance.Start(runCtx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// validateHierarchy logs the integrity report; a broken hierarchy does not
// stop the server.
func validateHierarchy(ctx context.Context, app application.Application, logger *logrus.Logger) {
	h := app.Service(services.HierarchyService{}).(*services.HierarchyService)
	rep, err := h.ValidateHierarchy(composables.WithLogger(ctx, logrus.NewEntry(logger)))
	if err != nil {
		logger.WithError(err).Error("hierarchy validation failed")
		return
	}
	entry := logger.WithFields(logrus.Fields{
		"checked":  rep.Checked,
		"circular": len(rep.CircularReferences),
		"orphaned": len(rep.OrphanedPositions),
	})
	if rep.Valid {
		entry.Info("hierarchy is consistent")
	} else {
		entry.Warn("hierarchy has integrity findings")
	}
}
