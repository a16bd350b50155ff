package application

import (
	"context"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/eventbus"
)

// Application is the container modules register their services,
// controllers, middleware and migrations into.
type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBusWithError
	Logger() *logrus.Logger
	Controllers() []Controller
	Middleware() []mux.MiddlewareFunc
	Migrations() MigrationManager
	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}
}

type Controller interface {
	Register(r *mux.Router)
	Key() string
}

type Module interface {
	Name() string
	Register(app Application) error
}

// MigrateFunc applies the pending schema migrations of one module.
type MigrateFunc func(ctx context.Context, pool *pgxpool.Pool, logger logrus.FieldLogger) error

// PendingFunc reports how many migrations of one module are not applied.
type PendingFunc func(ctx context.Context, pool *pgxpool.Pool) (int, error)

type MigrationManager interface {
	Register(name string, migrate MigrateFunc, pending PendingFunc)
	Run(ctx context.Context) error
	Pending(ctx context.Context) (map[string]int, error)
}
