package mqttconverter

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// MQTTClientConfig holds everything the consumer needs to reach the broker
// and subscribe to the sensor topics.
type MQTTClientConfig struct {
	// BrokerURL is the full URL of the broker, for example "tcp://broker:1883"
	// or "tls://mqtt.example.com:8883".
	BrokerURL string `yaml:"broker_url"`
	// Topics are the topic filters to subscribe to, wildcards allowed.
	Topics []string `yaml:"topics"`
	// ClientID is used verbatim when set. Otherwise ClientIDPrefix plus a
	// random suffix is used.
	ClientID       string `yaml:"client_id"`
	ClientIDPrefix string `yaml:"client_id_prefix"`
	// Username and Password are only sent when Username is set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// QoS for every subscription. Sensors publish at most once.
	QoS byte `yaml:"qos"`
	// KeepAlive is the interval at which the client pings the broker.
	KeepAlive time.Duration `yaml:"keep_alive"`
	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// RecoveryInterval is the wait between attempts while the first
	// connection has not been established.
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
	// ReconnectWaitMax caps the backoff between reconnects when a lost
	// connection is not fatal.
	ReconnectWaitMax time.Duration `yaml:"reconnect_wait_max"`
	// ExitOnConnectionLost stops the consumer, instead of reconnecting, when an
	// established connection drops.
	ExitOnConnectionLost bool `yaml:"exit_on_connection_lost"`
	// BufferSize is the capacity of the consumer's output channel.
	BufferSize int `yaml:"buffer_size"`

	CACertFile     string `yaml:"ca_cert_file"`
	ClientCertFile string `yaml:"client_cert_file"`
	ClientKeyFile  string `yaml:"client_key_file"`
	// InsecureSkipVerify skips TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Env constants for MQTT settings.
const (
	MqttBrokerURL             = "MQTT_BROKER_URL"
	MqttTopics                = "MQTT_TOPICS"
	MqttClientID              = "MQTT_CLIENT_ID"
	MqttClientIDPrefix        = "MQTT_CLIENT_ID_PREFIX"
	MqttUsername              = "MQTT_USERNAME"
	MqttPassword              = "MQTT_PASSWORD"
	MqttQoS                   = "MQTT_QOS"
	MqttSkipVerify            = "MQTT_INSECURE_SKIP_VERIFY"
	MqttKeepAliveSeconds      = "MQTT_KEEP_ALIVE_SECONDS"
	MqttConnectTimeoutSeconds = "MQTT_CONNECT_TIMEOUT_SECONDS"
	MqttExitOnConnectionLost  = "MQTT_EXIT_ON_CONNECTION_LOST"
	MqttCACertFile            = "MQTT_CA_CERT_FILE"
	MqttClientCertFile        = "MQTT_CLIENT_CERT_FILE"
	MqttClientKeyFile         = "MQTT_CLIENT_KEY_FILE"
)

// DefaultMQTTClientConfig returns a config with operational defaults and no
// broker or topics.
func DefaultMQTTClientConfig() *MQTTClientConfig {
	return &MQTTClientConfig{
		ClientIDPrefix:       "sensormapper-",
		QoS:                  0,
		KeepAlive:            60 * time.Second,
		ConnectTimeout:       5 * time.Second,
		RecoveryInterval:     5 * time.Second,
		ReconnectWaitMax:     120 * time.Second,
		ExitOnConnectionLost: true,
		BufferSize:           1000,
	}
}

// LoadMQTTClientConfigWithEnv returns the defaults overridden by any MQTT_*
// environment variables that are set.
func LoadMQTTClientConfigWithEnv() *MQTTClientConfig {
	cfg := DefaultMQTTClientConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides fields of cfg with the MQTT_* environment variables that
// are set. Values that fail to parse are logged and ignored.
func (cfg *MQTTClientConfig) ApplyEnv() {
	setString(&cfg.BrokerURL, MqttBrokerURL)
	setString(&cfg.ClientID, MqttClientID)
	setString(&cfg.ClientIDPrefix, MqttClientIDPrefix)
	setString(&cfg.Username, MqttUsername)
	setString(&cfg.Password, MqttPassword)
	setString(&cfg.CACertFile, MqttCACertFile)
	setString(&cfg.ClientCertFile, MqttClientCertFile)
	setString(&cfg.ClientKeyFile, MqttClientKeyFile)

	if topics := os.Getenv(MqttTopics); topics != "" {
		cfg.Topics = SplitTopics(topics)
	}
	if qos := os.Getenv(MqttQoS); qos != "" {
		v, err := strconv.ParseUint(qos, 10, 8)
		if err == nil {
			cfg.QoS = byte(v)
		} else {
			log.Warn().Err(err).Str("env", MqttQoS).Msg("mqttconverter: error parsing qos, using default")
		}
	}
	if skipVerify := os.Getenv(MqttSkipVerify); skipVerify == "true" {
		cfg.InsecureSkipVerify = true
	}
	if exit := os.Getenv(MqttExitOnConnectionLost); exit != "" {
		v, err := strconv.ParseBool(exit)
		if err == nil {
			cfg.ExitOnConnectionLost = v
		} else {
			log.Warn().Err(err).Str("env", MqttExitOnConnectionLost).Msg("mqttconverter: error parsing flag, using default")
		}
	}
	setSeconds(&cfg.KeepAlive, MqttKeepAliveSeconds)
	setSeconds(&cfg.ConnectTimeout, MqttConnectTimeoutSeconds)
}

// Validate reports the first missing or out of range setting.
func (cfg *MQTTClientConfig) Validate() error {
	if cfg.BrokerURL == "" {
		return errors.New("MQTT broker URL is required")
	}
	if len(cfg.Topics) == 0 {
		return errors.New("at least one MQTT topic filter is required")
	}
	for i, topic := range cfg.Topics {
		if topic == "" {
			return fmt.Errorf("MQTT topic filter %d is empty", i)
		}
	}
	if cfg.QoS > 2 {
		return fmt.Errorf("MQTT QoS must be 0, 1 or 2, got %d", cfg.QoS)
	}
	if cfg.ClientID == "" && cfg.ClientIDPrefix == "" {
		return errors.New("MQTT client ID or client ID prefix is required")
	}
	return nil
}

// SplitTopics parses a comma separated list of topic filters.
func SplitTopics(s string) []string {
	var topics []string
	for _, topic := range strings.Split(s, ",") {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}
	return topics
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setSeconds(dst *time.Duration, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v + "s")
	if err != nil {
		log.Warn().Err(err).Str("env", env).Msg("mqttconverter: error parsing seconds, using default")
		return
	}
	*dst = d
}
