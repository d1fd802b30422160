// Package api hosts the HTTP server, middleware, and REST handlers. Routes:
//   - GET / usage message and GET /health liveness.
//   - GET /metrics for Prometheus scraping.
//   - POST /api/analyze runs traffic analysis for a list of websites.
//   - POST /api/analyze-tech-stack refreshes technology profiles for stored results.
package api
