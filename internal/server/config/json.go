package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/flagx"
	"github.com/dmitrijs2005/receiptkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the -c/-config file. Durations accept
// both "30s" strings and integer nanoseconds. Zero values leave the
// corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	AIAPIKey                     string         `json:"ai_api_key"`
	AIModel                      string         `json:"ai_model"`
	RecognitionTimeout           timex.Duration `json:"recognition_timeout"`
	QueryTimeout                 timex.Duration `json:"query_timeout"`
	AggregationTimeout           timex.Duration `json:"aggregation_timeout"`
	MaxUploadSize                int            `json:"max_upload_size"`
	AMQPURL                      string         `json:"amqp_url"`
	AMQPExchange                 string         `json:"amqp_exchange"`
	AMQPRoutingKey               string         `json:"amqp_routing_key"`
	LogLevel                     string         `json:"log_level"`
	RequestsPerSecond            int            `json:"requests_per_second"`
}

// parseJson overlays config with the file named by -c/-config. Nothing
// happens when the flag is absent; unreadable or invalid files panic.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.AIAPIKey, c.AIAPIKey)
	setString(&config.AIModel, c.AIModel)
	setDuration(&config.RecognitionTimeout, c.RecognitionTimeout)
	setDuration(&config.QueryTimeout, c.QueryTimeout)
	setDuration(&config.AggregationTimeout, c.AggregationTimeout)
	if c.MaxUploadSize > 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.AMQPExchange, c.AMQPExchange)
	setString(&config.AMQPRoutingKey, c.AMQPRoutingKey)
	setString(&config.LogLevel, c.LogLevel)
	if c.RequestsPerSecond > 0 {
		config.RequestsPerSecond = c.RequestsPerSecond
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
