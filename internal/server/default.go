package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/application"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/configuration"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/httpapi"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/middleware"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

// Default builds the HTTP server with the standard middleware stack:
// request logging and tracing first, then pool binding, CORS, actor binding
// and rate limiting.
func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	loggerOpts := middleware.DefaultLoggerOptions()
	loggerOpts.RequestIDHeader = conf.RequestIDHeader
	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger, loggerOpts),
		middleware.WithPool(options.Pool),
		middleware.Cors(conf.RequestIDHeader, conf.ActorIDHeader, conf.CORS.AllowedOrigins...),
		middleware.WithActor(conf.ActorIDHeader),
	}

	if conf.RateLimit.Enabled {
		var store limiter.Store
		switch conf.RateLimit.Storage {
		case "redis":
			var err error
			store, err = middleware.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
				store = middleware.NewMemoryStore()
			}
		default:
			store = middleware.NewMemoryStore()
		}
		middlewares = append(middlewares, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerPeriod: conf.RateLimit.GlobalRPS,
			Store:             store,
		}))
	}
	app.RegisterMiddleware(middlewares...)

	return server.NewHTTPServer(app, NotFound(), MethodNotAllowed()), nil
}

func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusNotFound, "NotFound", "route not found", httpapi.WithRequestID(
			map[string]string{"path": r.URL.Path},
			composables.UseRequestID(r.Context()),
		))
	})
}

func MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", httpapi.WithRequestID(
			map[string]string{"path": r.URL.Path, "method": r.Method},
			composables.UseRequestID(r.Context()),
		))
	})
}
