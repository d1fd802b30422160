// Package main hosts the siteintel service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the usage and health routes, /metrics, and the two analysis
//     endpoints. Bodies are decoded into analytics.AnalysisRequest and handed to internal/service.
//   - Analysis: internal/service starts an Apify actor run, polls it to a terminal status, fetches and
//     validates the dataset records, and falls back to canned records from internal/mockdata when the
//     token is missing or any step fails. Each record is then enriched with a BuiltWith technology
//     profile, again falling back to canned profiles.
//   - Persistence & fanout: results are upserted into one JSON column of the user's Postgres row, the raw
//     dataset is archived to the configured blob store (memory/local/GCS), and an analysis.completed event
//     is published to Pub/Sub. None of these side effects can fail a request.
//   - Plumbing: Viper (with .env support via godotenv) populates config, zap provides structured logging,
//     Prometheus metrics are exported via the metrics middleware, and outbound calls share a per-host
//     token-bucket transport.
//
// Quick checklist:
//   - Credentials: APIFY_API_TOKEN, BUILTWITH_API_KEY, SUPABASE_DB_URL (or DATABASE_URL). All are optional.
//   - Other settings use the SITEINTEL_ prefix, e.g. SITEINTEL_SERVER_PORT or SITEINTEL_STORAGE_BACKEND.
//   - Run locally: go run ./cmd/siteintel serve --config config.yaml
package main
