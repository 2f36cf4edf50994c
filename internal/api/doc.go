// Package api hosts the optional operator HTTP listener that runs alongside a
// crawl. Routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
package api
