package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from zero so a partial file only overrides what it names.
type JsonConfig struct {
	APIBaseURL     *string         `json:"api_base_url"`
	HTTPTimeout    *timex.Duration `json:"http_timeout"`
	MemberPageSize *int            `json:"member_page_size"`
	MaxPages       *int            `json:"max_pages"`

	StoreDSN        *string `json:"store_dsn"`
	FieldConfigPath *string `json:"field_config_path"`
	TemplatePath    *string `json:"template_path"`

	CipherSecret *string `json:"cipher_secret"`
	MACSecret    *string `json:"mac_secret"`

	ActorKey        *string         `json:"actor_key"`
	RateLimitMax    *int            `json:"rate_limit_max"`
	RateLimitWindow *timex.Duration `json:"rate_limit_window"`
	OptionCacheTTL  *timex.Duration `json:"option_cache_ttl"`

	ConsentFieldID *string `json:"consent_field_id"`
	LogFormat      *string `json:"log_format"`
	Debug          *bool   `json:"debug"`

	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	S3AccessKey    *string `json:"s3_access_key"`
	S3SecretKey    *string `json:"s3_secret_key"`

	PushgatewayURL *string `json:"pushgateway_url"`
}

// parseJson overlays values from the JSON file named by -c/-config in args.
// Nothing happens when no file is given.
func parseJson(config *Config, args []string) error {
	path := flagx.JsonConfigFlags(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.APIBaseURL, c.APIBaseURL)
	setDuration(&config.HTTPTimeout, c.HTTPTimeout)
	setInt(&config.MemberPageSize, c.MemberPageSize)
	setInt(&config.MaxPages, c.MaxPages)
	setString(&config.StoreDSN, c.StoreDSN)
	setString(&config.FieldConfigPath, c.FieldConfigPath)
	setString(&config.TemplatePath, c.TemplatePath)
	setString(&config.CipherSecret, c.CipherSecret)
	setString(&config.MACSecret, c.MACSecret)
	setString(&config.ActorKey, c.ActorKey)
	setInt(&config.RateLimitMax, c.RateLimitMax)
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)
	setDuration(&config.OptionCacheTTL, c.OptionCacheTTL)
	setString(&config.ConsentFieldID, c.ConsentFieldID)
	setString(&config.LogFormat, c.LogFormat)
	if c.Debug != nil {
		config.Debug = *c.Debug
	}
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.PushgatewayURL, c.PushgatewayURL)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
