package application

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/eventbus"
)

// ---- Migration manager implementation ----

type migrationSource struct {
	name    string
	migrate MigrateFunc
	pending PendingFunc
}

type migrationManager struct {
	pool    *pgxpool.Pool
	logger  *logrus.Logger
	sources []migrationSource
}

func NewMigrationManager(pool *pgxpool.Pool, logger *logrus.Logger) MigrationManager {
	return &migrationManager{pool: pool, logger: logger}
}

func (m *migrationManager) Register(name string, migrate MigrateFunc, pending PendingFunc) {
	m.sources = append(m.sources, migrationSource{name: name, migrate: migrate, pending: pending})
}

// Run applies the migrations of every registered module in registration order.
func (m *migrationManager) Run(ctx context.Context) error {
	if m.pool == nil {
		return fmt.Errorf("migrations: no database pool configured")
	}
	for _, src := range m.sources {
		if err := src.migrate(ctx, m.pool, m.logger.WithField("module", src.name)); err != nil {
			return fmt.Errorf("migrations for %s: %w", src.name, err)
		}
	}
	return nil
}

func (m *migrationManager) Pending(ctx context.Context) (map[string]int, error) {
	if m.pool == nil {
		return nil, fmt.Errorf("migrations: no database pool configured")
	}
	out := make(map[string]int, len(m.sources))
	for _, src := range m.sources {
		if src.pending == nil {
			continue
		}
		n, err := src.pending(ctx, m.pool)
		if err != nil {
			return nil, fmt.Errorf("migration status for %s: %w", src.name, err)
		}
		out[src.name] = n
	}
	return out, nil
}

// ---- Application implementation ----

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	EventBus eventbus.EventBusWithError
	Logger   *logrus.Logger
}

func New(opts *ApplicationOptions) Application {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	bus := opts.EventBus
	if bus == nil {
		bus = eventbus.NewEventPublisher(logger)
	}
	return &application{
		pool:           opts.Pool,
		eventPublisher: bus,
		logger:         logger,
		controllers:    make(map[string]Controller),
		services:       make(map[reflect.Type]interface{}),
		migrations:     NewMigrationManager(opts.Pool, logger),
	}
}

// application with a dynamically extendable service registry
type application struct {
	pool           *pgxpool.Pool
	eventPublisher eventbus.EventBusWithError
	logger         *logrus.Logger
	services       map[reflect.Type]interface{}
	controllers    map[string]Controller
	controllerKeys []string
	middleware     []mux.MiddlewareFunc
	migrations     MigrationManager
}

func (app *application) Middleware() []mux.MiddlewareFunc {
	return app.middleware
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) EventPublisher() eventbus.EventBusWithError {
	return app.eventPublisher
}

func (app *application) Logger() *logrus.Logger {
	return app.logger
}

// Controllers returns the registered controllers in registration order.
func (app *application) Controllers() []Controller {
	controllers := make([]Controller, 0, len(app.controllerKeys))
	for _, key := range app.controllerKeys {
		controllers = append(controllers, app.controllers[key])
	}
	return controllers
}

func (app *application) Migrations() MigrationManager {
	return app.migrations
}

func (app *application) RegisterControllers(controllers ...Controller) {
	for _, c := range controllers {
		if _, exists := app.controllers[c.Key()]; !exists {
			app.controllerKeys = append(app.controllerKeys, c.Key())
		}
		app.controllers[c.Key()] = c
	}
}

func (app *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	app.middleware = append(app.middleware, middleware...)
}

// RegisterServices registers a new service in the application by its type
func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		serviceType := reflect.TypeOf(service).Elem()
		app.services[serviceType] = service
	}
}

// Service retrieves a service by its type
func (app *application) Service(service interface{}) interface{} {
	serviceType := reflect.TypeOf(service)
	svc, exists := app.services[serviceType]
	if !exists {
		panic(fmt.Sprintf("service %s not found", serviceType.Name()))
	}
	return svc
}

func (app *application) Services() map[reflect.Type]interface{} {
	return app.services
}
