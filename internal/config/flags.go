package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
)

var ownFlags = []string{
	"-a", "-d", "-f", "-t", "-k", "-m", "-x", "-l", "-w", "-n", "-o",
	"-b", "-g", "-e", "-u", "-p", "-q",
}

// parseFlags overlays Config fields from the flags in args. Only the flags
// listed in ownFlags are considered; anything else (subcommands, -c) is left
// to other parsers. The window flag is given in seconds.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("fieldsync", flag.ContinueOnError)

	fs.StringVar(&config.APIBaseURL, "a", config.APIBaseURL, "membership API base URL")
	fs.StringVar(&config.StoreDSN, "d", config.StoreDSN, "key/value store DSN")
	fs.StringVar(&config.FieldConfigPath, "f", config.FieldConfigPath, "field configuration path")
	fs.StringVar(&config.TemplatePath, "t", config.TemplatePath, "bootstrap template path")
	fs.StringVar(&config.CipherSecret, "k", config.CipherSecret, "token cipher secret")
	fs.StringVar(&config.MACSecret, "m", config.MACSecret, "token MAC secret")
	fs.StringVar(&config.ActorKey, "x", config.ActorKey, "actor identity for rate limiting")
	fs.IntVar(&config.RateLimitMax, "l", config.RateLimitMax, "option lookups per window")
	window := fs.Int("w", int(config.RateLimitWindow.Seconds()), "rate limit window (in seconds)")
	fs.StringVar(&config.ConsentFieldID, "n", config.ConsentFieldID, "consent custom field id")
	fs.StringVar(&config.LogFormat, "o", config.LogFormat, "log format: json, text or zap")

	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 backup bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.PushgatewayURL, "q", config.PushgatewayURL, "Prometheus pushgateway URL")

	if err := fs.Parse(flagx.FilterArgs(args, ownFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	config.RateLimitWindow = time.Duration(*window) * time.Second
	return nil
}
