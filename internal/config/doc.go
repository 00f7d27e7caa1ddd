// Package config loads runtime configuration for fieldsync.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the membership API
//	-d string   key/value store DSN (memory://, sqlite://, postgres://, redis://)
//	-f string   path of the persisted field configuration
//	-t string   path of the bootstrap template
//	-k string   token cipher secret
//	-m string   token MAC secret
//	-x string   actor identity used for rate limiting
//	-l int      option lookups allowed per window
//	-w int      rate limit window, seconds
//	-n string   consent custom field id
//	-o string   log format (json, text, zap)
//	-b string   S3 backup bucket (empty disables backups)
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-u string   S3 access key
//	-p string   S3 secret key
//	-q string   Prometheus pushgateway URL (empty disables)
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "12h" or
// integer nanoseconds:
//
//	{
//	  "api_base_url": "https://easyverein.com/api/v1.7",
//	  "store_dsn": "sqlite://fieldsync.db",
//	  "option_cache_ttl": "12h",
//	  "rate_limit_window": "1m"
//	}
//
// The secrets have insecure development defaults and must be overridden in
// production. Changing either secret makes stored tokens unreadable.
package config
