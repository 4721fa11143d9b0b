// Package metrics documents the Prometheus metrics exposed by the sync
// service. The metrics themselves are defined with promauto next to the
// code they instrument (client, ratelimit, auth, sync) to keep packages
// self-contained; this package holds the registry reference and the
// catalog.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer used by all service metrics.
// Everything registers automatically via promauto at package init.
var Registry = prometheus.DefaultRegisterer

// Metrics catalog
//
// Request metrics (pkg/client):
//   - campaign_sync_requests_total{endpoint, status} (Counter)
//   - campaign_sync_request_duration_seconds{endpoint} (Histogram)
//   - campaign_sync_errors_total{class} (Counter): class is one of
//     client, server, rate_limit, auth, network
//
// Retry metrics (pkg/client):
//   - campaign_sync_retries_total{error_class} (Counter)
//   - campaign_sync_retry_backoff_seconds{error_class} (Histogram)
//   - campaign_sync_retry_exhausted_total{error_class} (Counter)
//
// Pacing metrics (pkg/ratelimit):
//   - campaign_sync_rate_limit_wait_seconds (Histogram)
//   - campaign_sync_rate_limit_waits_total (Counter)
//
// Auth metrics (pkg/auth):
//   - campaign_sync_auth_exchanges_total (Counter)
//   - campaign_sync_auth_failures_total (Counter)
//
// Run metrics (pkg/sync):
//   - campaign_sync_records_processed_total{result} (Counter)
//   - campaign_sync_runs_total{result} (Counter)
//
// Example queries:
//
//   # Retry rate by class
//   rate(campaign_sync_retries_total[5m])
//
//   # Share of records failing per run window
//   rate(campaign_sync_records_processed_total{result="failure"}[15m]) /
//   rate(campaign_sync_records_processed_total[15m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(campaign_sync_request_duration_seconds_bucket[5m]))
