package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the Prometheus exposition format for the default
// registry, the one NewMetrics registers its collectors against.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
