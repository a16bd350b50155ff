package services

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/eventbus"
)

const tracerName = "github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"

type options struct {
	policy       Policy
	now          Clock
	bus          eventbus.EventBusWithError
	cache        HierarchyCache
	auditTimeout time.Duration
	tracer       trace.Tracer
}

type Option func(*options)

func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

func WithClock(now Clock) Option {
	return func(o *options) { o.now = now }
}

// WithEventBus sets the bus audit events are published on.
func WithEventBus(bus eventbus.EventBusWithError) Option {
	return func(o *options) { o.bus = bus }
}

func WithHierarchyCache(c HierarchyCache) Option {
	return func(o *options) { o.cache = c }
}

func WithAuditTimeout(d time.Duration) Option {
	return func(o *options) { o.auditTimeout = d }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func buildOptions(opts []Option) options {
	o := options{policy: DefaultPolicy(), now: systemClock, auditTimeout: 5 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.policy = o.policy.normalized()
	if o.now == nil {
		o.now = systemClock
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

func (o options) auditor() auditor {
	return auditor{bus: o.bus, now: o.now, timeout: o.auditTimeout}
}
