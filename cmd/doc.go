// Package cmd implements the miles command line.
//
// Architecture overview:
//   - Configuration: flags are bound onto Viper keys in internal/config, layered over defaults, an optional
//     YAML file and MILES_* environment variables.
//   - Extraction: internal/crawler fetches the page once through the Colly-based fetcher and scans it with the
//     per-type pattern table, yielding absolute locators lazily.
//   - Dispatch: internal/engine feeds a bounded in-memory queue sized to the worker count; internal/dispatcher
//     runs a fixed worker pool that applies the optional per-host rate limit and retrieves each locator.
//   - Persistence: internal/storage/local writes each body to a temporary sibling and renames it into place, so
//     a canceled run never leaves a truncated file behind.
//   - Observability: zap logs go to stderr tagged with a UUID v7 run id; Prometheus counters are exported over
//     chi when --metrics-addr is set.
//
// Stdout carries only the "Downloading URL..." lines and the four-line summary.
package cmd
