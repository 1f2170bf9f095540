package mapper

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/bqstore"
	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
	"github.com/illmade-knight/go-sensormapper/pkg/icestore"
	"github.com/illmade-knight/go-sensormapper/pkg/messagepipeline"
	"github.com/illmade-knight/go-sensormapper/pkg/microservice"
	"github.com/illmade-knight/go-sensormapper/pkg/mqttconverter"
	"github.com/illmade-knight/go-sensormapper/pkg/sink"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Sink types accepted in SinkConfig.Types.
const (
	SinkPubsub   = "pubsub"
	SinkRedis    = "redis"
	SinkBigQuery = "bigquery"
	SinkGCS      = "gcs"
)

// Environment variables read by ApplyEnv, in addition to the MQTT_* set.
const (
	EnvLogLevel        = "LOG_LEVEL"
	EnvHTTPPort        = "HTTP_PORT"
	EnvProjectID       = "GCP_PROJECT_ID"
	EnvCredentialsFile = "GCP_CREDENTIALS_FILE"
	EnvNumWorkers      = "NUM_WORKERS"
	EnvMaxPayloadBytes = "MAX_PAYLOAD_BYTES"
	EnvSinkTypes       = "SINK_TYPES"
	EnvSinkQueue       = "SINK_QUEUE"
	EnvRedisAddr       = "REDIS_ADDR"
	EnvRedisPassword   = "REDIS_PASSWORD"
	EnvBQDatasetID     = "BQ_DATASET_ID"
	EnvBQTableID       = "BQ_TABLE_ID"
	EnvGCSBucket       = "GCS_BUCKET"
	EnvGCSPrefix       = "GCS_PREFIX"
	EnvBatchSize       = "BATCH_SIZE"
	EnvBatchFlush      = "BATCH_FLUSH_SECONDS"
)

// SinkConfig selects and configures the destinations for Readings.
type SinkConfig struct {
	Types []string `yaml:"types"`

	// Queue is the Pub/Sub topic id or Redis list key queue sinks write to.
	Queue    string                        `yaml:"queue"`
	Redis    sink.RedisConfig              `yaml:"redis"`
	BigQuery bqstore.BigQueryDatasetConfig `yaml:"bigquery"`
	GCS      icestore.WriterConfig         `yaml:"gcs"`
	Batch    sink.BatcherConfig            `yaml:"batch"`
}

// Config is the complete mapper configuration.
type Config struct {
	microservice.BaseConfig `yaml:",inline"`

	MQTT            mqttconverter.MQTTClientConfig         `yaml:"mqtt"`
	Separators      decoder.Separators                     `yaml:"separators"`
	Pipeline        messagepipeline.StreamingServiceConfig `yaml:"pipeline"`
	MaxPayloadBytes int                                    `yaml:"max_payload_bytes"`
	Sinks           SinkConfig                             `yaml:"sinks"`
}

// DefaultConfig returns a config with every optional field set.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig: microservice.BaseConfig{
			ServiceName: "sensormapper",
			LogLevel:    "info",
			HTTPPort:    ":8080",
		},
		MQTT:            *mqttconverter.DefaultMQTTClientConfig(),
		Separators:      decoder.DefaultSeparators(),
		Pipeline:        messagepipeline.StreamingServiceConfig{NumWorkers: 5},
		MaxPayloadBytes: 64 * 1024,
		Sinks: SinkConfig{
			Types: []string{SinkRedis},
			Redis: sink.RedisConfig{Addr: "localhost:6379"},
			Batch: sink.DefaultBatcherConfig(),
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file at
// path if one is given, then the environment. The result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set.
// Unparseable values are logged and ignored.
func (c *Config) ApplyEnv() {
	c.MQTT.ApplyEnv()

	envString(&c.LogLevel, EnvLogLevel)
	envString(&c.ProjectID, EnvProjectID)
	envString(&c.CredentialsFile, EnvCredentialsFile)
	if port := os.Getenv(EnvHTTPPort); port != "" {
		if !strings.Contains(port, ":") {
			port = ":" + port
		}
		c.HTTPPort = port
	}
	envInt(&c.Pipeline.NumWorkers, EnvNumWorkers)
	envInt(&c.MaxPayloadBytes, EnvMaxPayloadBytes)

	if types := os.Getenv(EnvSinkTypes); types != "" {
		c.Sinks.Types = mqttconverter.SplitTopics(strings.ToLower(types))
	}
	envString(&c.Sinks.Queue, EnvSinkQueue)
	envString(&c.Sinks.Redis.Addr, EnvRedisAddr)
	envString(&c.Sinks.Redis.Password, EnvRedisPassword)
	envString(&c.Sinks.BigQuery.DatasetID, EnvBQDatasetID)
	envString(&c.Sinks.BigQuery.TableID, EnvBQTableID)
	envString(&c.Sinks.GCS.BucketName, EnvGCSBucket)
	envString(&c.Sinks.GCS.ObjectPrefix, EnvGCSPrefix)
	envInt(&c.Sinks.Batch.BatchSize, EnvBatchSize)

	var flushSeconds int
	if envInt(&flushSeconds, EnvBatchFlush) {
		c.Sinks.Batch.FlushInterval = time.Duration(flushSeconds) * time.Second
	}
	if c.Sinks.BigQuery.CredentialsFile == "" {
		c.Sinks.BigQuery.CredentialsFile = c.CredentialsFile
	}
}

// Validate reports the first problem that would prevent the service from
// running.
func (c *Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if err := c.Separators.Validate(); err != nil {
		return err
	}
	if c.MaxPayloadBytes < 0 {
		return errors.New("max payload bytes cannot be negative")
	}
	if len(c.Sinks.Types) == 0 {
		return errors.New("at least one sink type is required")
	}

	seen := make(map[string]bool, len(c.Sinks.Types))
	for _, t := range c.Sinks.Types {
		if seen[t] {
			return fmt.Errorf("sink type %q listed twice", t)
		}
		seen[t] = true

		switch t {
		case SinkPubsub:
			if c.Sinks.Queue == "" {
				return errors.New("pubsub sink requires a queue (topic id)")
			}
			if c.ProjectID == "" {
				return errors.New("pubsub sink requires a project id")
			}
		case SinkRedis:
			if c.Sinks.Queue == "" {
				return errors.New("redis sink requires a queue (list key)")
			}
			if c.Sinks.Redis.Addr == "" {
				return errors.New("redis sink requires an address")
			}
		case SinkBigQuery:
			if c.ProjectID == "" {
				return errors.New("bigquery sink requires a project id")
			}
			if c.Sinks.BigQuery.DatasetID == "" || c.Sinks.BigQuery.TableID == "" {
				return errors.New("bigquery sink requires dataset and table ids")
			}
		case SinkGCS:
			if c.Sinks.GCS.BucketName == "" {
				return errors.New("gcs sink requires a bucket")
			}
		default:
			return fmt.Errorf("unknown sink type %q", t)
		}
	}

	if (seen[SinkBigQuery] || seen[SinkGCS]) && c.Sinks.Batch.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	return nil
}

func envString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// envInt reports whether dst was set.
func envInt(dst *int, env string) bool {
	v := os.Getenv(env)
	if v == "" {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Err(err).Str("env", env).Str("value", v).Msg("Ignoring invalid integer")
		return false
	}
	*dst = n
	return true
}
