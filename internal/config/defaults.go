package config

import "time"

// Default constants for run configuration
const (
	DefaultLogLevel  = "info"
	DefaultJSONLog   = false
	DefaultUserAgent = "catalog-harvest/1.0 (+https://github.com/naitridoshi/catalog-harvest)"

	DefaultHTTPTimeout = 10 * time.Second

	// Concurrency caps: at most 3 categories at once, 5 pages per category
	DefaultMaxGroups        = 3
	DefaultMaxPagesPerGroup = 5
	DefaultMaxAttempts      = 4

	DefaultRetryStep = 3 * time.Second

	DefaultRateLimitRPS   = 2.0
	DefaultRateLimitBurst = 5

	DefaultOutputDir = "files"
)
