package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

// parseEnv loads the .env file named by -env (default ".env") into the
// process environment and then copies every recognised variable into
// config. A missing .env file is not an error; a malformed one, or a
// malformed numeric or duration variable, panics.
func parseEnv(config *Config) {
	if err := godotenv.Load(flagx.EnvFileFlag(".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	envString("HTTP_ADDRESS", &config.EndpointAddrHTTP)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("SECRET_KEY", &config.SecretKey)
	envDuration("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	envDuration("REFRESH_TOKEN_TTL", &config.RefreshTokenValidityDuration)
	envString("S3_ROOT_USER", &config.S3RootUser)
	envString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	envString("AI_API_KEY", &config.AIAPIKey)
	envString("AI_MODEL", &config.AIModel)
	envDuration("RECOGNITION_TIMEOUT", &config.RecognitionTimeout)
	envDuration("QUERY_TIMEOUT", &config.QueryTimeout)
	envDuration("AGGREGATION_TIMEOUT", &config.AggregationTimeout)
	envInt("MAX_UPLOAD_SIZE", &config.MaxUploadSize)
	envString("AMQP_URL", &config.AMQPURL)
	envString("AMQP_EXCHANGE", &config.AMQPExchange)
	envString("AMQP_ROUTING_KEY", &config.AMQPRoutingKey)
	envString("LOG_LEVEL", &config.LogLevel)
	envInt("REQUESTS_PER_SECOND", &config.RequestsPerSecond)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

func envInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}
