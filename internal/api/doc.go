// Package api hosts the HTTP server, middleware, and REST handlers that drive
// the crawl session. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawl, /v1/navigation and /v1/stop to control the phases.
//   - GET /v1/status, /v1/links and /v1/records (plus .json and .csv
//     downloads) to read the session.
//   - POST /v1/exports to write the export files to the blob store.
package api
