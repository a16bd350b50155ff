package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/application"
)

const DefaultPath = "/debug/prometheus"

type PrometheusController struct {
	path     string
	gatherer prometheus.Gatherer
}

type Option func(*PrometheusController)

// WithGatherer exposes a registry other than the process default.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *PrometheusController) {
		if g != nil {
			c.gatherer = g
		}
	}
}

func NewPrometheusController(path string, opts ...Option) application.Controller {
	if path == "" {
		path = DefaultPath
	}
	c := &PrometheusController{path: path, gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	h := promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
	r.Handle(c.path, h).Methods(http.MethodGet)
}
