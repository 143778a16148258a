package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unroutedLabel stands in for the path of requests that matched no route.
const unroutedLabel = "unrouted"

var (
	requestsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrestore_http_requests_total",
		Help: "HTTP requests served, by route and response code.",
	}, []string{"method", "route", "code"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "vidrestore_http_request_duration_seconds",
		Help: "Time to serve an HTTP request.",
		// Upper buckets cover uploads and long event streams.
		Buckets: []float64{.005, .025, .1, .5, 1, 5, 30, 120, 600},
	}, []string{"method", "route"})

	responseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidrestore_http_response_size_bytes",
		Help:    "Size of HTTP response bodies.",
		Buckets: prometheus.ExponentialBuckets(256, 8, 8),
	}, []string{"route"})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidrestore_http_requests_in_flight",
		Help: "HTTP requests currently being served, open event streams included.",
	})
)

// instrument observes every request once the router has resolved its route.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()

		began := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		route := matchedRoute(r)
		requestsServed.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(began).Seconds())
		responseBytes.WithLabelValues(route).Observe(float64(ww.BytesWritten()))
	})
}

func matchedRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unroutedLabel
}

// metricsHandler serves the default registry, including the scrape
// handler's own request counters.
func metricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
}
