package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
)

var (
	orgAssignmentOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "assignment",
		Name:      "operations_total",
		Help:      "Total number of assignment operations broken down by operation and result.",
	}, []string{"operation", "result"})

	orgAssignmentRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "assignment",
		Name:      "rejections_total",
		Help:      "Total number of rejected assignment operations broken down by error code.",
	}, []string{"operation", "code"})

	orgHierarchyFindings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "org",
		Subsystem: "hierarchy",
		Name:      "scan_findings",
		Help:      "Findings of the last hierarchy integrity scan broken down by kind.",
	}, []string{"kind"})

	orgCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total number of Org cache lookups broken down by cache and hit/miss.",
	}, []string{"cache", "result"})

	orgCacheInvalidate = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "cache",
		Name:      "invalidate_total",
		Help:      "Total number of Org cache invalidations broken down by reason.",
	}, []string{"reason"})

	orgWriteConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of Org write conflicts broken down by kind.",
	}, []string{"kind"})

	orgAuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "audit",
		Name:      "failures_total",
		Help:      "Total number of audit records that could not be written after commit.",
	})
)

func recordOperation(operation string, err error) {
	switch {
	case err == nil:
		orgAssignmentOperations.WithLabelValues(operation, "ok").Inc()
	case KindOf(err) != "":
		orgAssignmentOperations.WithLabelValues(operation, "rejected").Inc()
		orgAssignmentRejections.WithLabelValues(operation, string(KindOf(err))).Inc()
	case IsRetryable(err):
		orgAssignmentOperations.WithLabelValues(operation, "conflict").Inc()
	default:
		orgAssignmentOperations.WithLabelValues(operation, "error").Inc()
	}
}

func recordScan(rep hierarchy.Report) {
	orgHierarchyFindings.WithLabelValues("circular_reference").Set(float64(len(rep.CircularReferences)))
	orgHierarchyFindings.WithLabelValues("orphaned_position").Set(float64(len(rep.OrphanedPositions)))
}

func recordCacheRequest(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	orgCacheRequests.WithLabelValues(cache, result).Inc()
}

func recordCacheInvalidate(reason string) {
	if reason == "" {
		reason = "manual"
	}
	orgCacheInvalidate.WithLabelValues(reason).Inc()
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	orgWriteConflicts.WithLabelValues(kind).Inc()
}
