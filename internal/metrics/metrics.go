package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhookOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boostmarket_webhook_notifications_total",
			Help: "Bank notifications by reconciliation outcome",
		},
		[]string{"outcome"},
	)
	LedgerEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boostmarket_ledger_entries_total",
			Help: "Applied ledger entries by transaction type",
		},
		[]string{"type"},
	)
	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boostmarket_order_transitions_total",
			Help: "Order status changes by target status",
		},
		[]string{"status"},
	)
	ClaimConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boostmarket_claim_conflicts_total",
			Help: "Claims that lost the race for an order",
		},
	)
	RealtimeDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boostmarket_realtime_dropped_total",
			Help: "Realtime events dropped because the queue was full or publishing failed",
		},
	)
	HTTPRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boostmarket_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(WebhookOutcomes)
	prometheus.MustRegister(LedgerEntries)
	prometheus.MustRegister(OrderTransitions)
	prometheus.MustRegister(ClaimConflicts)
	prometheus.MustRegister(RealtimeDropped)
	prometheus.MustRegister(HTTPRequests)
}

// Middleware records request latency labelled with the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Observe(time.Since(start).Seconds())
	})
}
