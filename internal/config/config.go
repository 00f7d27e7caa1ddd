package config

import "time"

// Config holds runtime settings for fieldsync.
type Config struct {
	APIBaseURL     string
	HTTPTimeout    time.Duration
	MemberPageSize int
	MaxPages       int

	StoreDSN        string
	FieldConfigPath string
	TemplatePath    string

	CipherSecret string
	MACSecret    string

	ActorKey        string
	RateLimitMax    int
	RateLimitWindow time.Duration
	OptionCacheTTL  time.Duration

	ConsentFieldID string
	LogFormat      string
	Debug          bool

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	PushgatewayURL string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secrets are insecure and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "https://easyverein.com/api/v1.7"
	c.HTTPTimeout = 20 * time.Second
	c.MemberPageSize = 50
	c.MaxPages = 20
	c.StoreDSN = "sqlite://fieldsync.db"
	c.FieldConfigPath = "data/field-config.json"
	c.TemplatePath = "data/field-config.template.json"
	c.CipherSecret = "dev-cipher-secret"
	c.MACSecret = "dev-mac-secret"
	c.ActorKey = "cli"
	c.RateLimitMax = 60
	c.RateLimitWindow = time.Minute
	c.OptionCacheTTL = 12 * time.Hour
	c.LogFormat = "json"
	c.S3Region = "us-east-1"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from the flags found in args.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
