package mqttconverter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-sensormapper/pkg/messagepipeline"
	"github.com/rs/zerolog"
)

// ErrConnectionLost is returned by Err after an established connection
// dropped while ExitOnConnectionLost was set.
var ErrConnectionLost = errors.New("MQTT connection lost")

// ClientFactory builds the Paho client from the assembled options. Tests
// replace it to avoid a live broker.
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// MqttConsumer implements messagepipeline.MessageConsumer for an MQTT broker.
type MqttConsumer struct {
	cfg        *MQTTClientConfig
	newClient  ClientFactory
	pahoClient mqtt.Client
	logger     zerolog.Logger

	outputChan chan messagepipeline.Message
	doneChan   chan struct{}
	stopping   chan struct{}
	stopOnce   sync.Once

	// outputMu guards outputChan against being closed while a handler sends.
	outputMu sync.RWMutex
	closed   bool

	errMu sync.Mutex
	err   error
}

// NewMqttConsumer creates a new MqttConsumer. It does not connect until Start
// is called. A nil factory uses mqtt.NewClient.
func NewMqttConsumer(cfg *MQTTClientConfig, logger zerolog.Logger, factory ClientFactory) (*MqttConsumer, error) {
	if cfg == nil {
		return nil, errors.New("MQTT client config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		factory = mqtt.NewClient
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &MqttConsumer{
		cfg:        cfg,
		newClient:  factory,
		logger:     logger.With().Str("component", "MqttConsumer").Logger(),
		outputChan: make(chan messagepipeline.Message, bufferSize),
		doneChan:   make(chan struct{}),
		stopping:   make(chan struct{}),
	}, nil
}

// Messages returns the channel inbound messages are delivered on.
func (c *MqttConsumer) Messages() <-chan messagepipeline.Message {
	return c.outputChan
}

// Start connects to the broker. Subscriptions are (re)issued on every
// successful connect. If the broker cannot be reached within ConnectTimeout
// the client keeps retrying in the background.
func (c *MqttConsumer) Start(ctx context.Context) error {
	c.pahoClient = c.newClient(c.createMqttOptions())

	c.logger.Info().Str("broker", c.cfg.BrokerURL).Msg("Connecting to MQTT broker...")
	token := c.pahoClient.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		c.logger.Warn().Dur("timeout", c.cfg.ConnectTimeout).Msg("MQTT broker not reachable yet, retrying in the background.")
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", c.cfg.BrokerURL, err)
	}

	go func() {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Shutdown signal received, stopping consumer.")
			_ = c.Stop(context.Background())
		case <-c.doneChan:
		}
	}()
	return nil
}

// Stop unsubscribes, disconnects and closes the output channel.
func (c *MqttConsumer) Stop(_ context.Context) error {
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping MqttConsumer...")
		close(c.stopping)
		if c.pahoClient != nil && c.pahoClient.IsConnected() {
			if token := c.pahoClient.Unsubscribe(c.cfg.Topics...); token.WaitTimeout(2*time.Second) && token.Error() != nil {
				c.logger.Warn().Err(token.Error()).Strs("topics", c.cfg.Topics).Msg("Failed to unsubscribe from MQTT topics.")
			}
			c.pahoClient.Disconnect(250)
		}

		c.outputMu.Lock()
		c.closed = true
		close(c.outputChan)
		c.outputMu.Unlock()

		close(c.doneChan)
		c.logger.Info().Msg("MqttConsumer stopped.")
	})
	return nil
}

// Done returns a channel that is closed once the consumer has stopped.
func (c *MqttConsumer) Done() <-chan struct{} {
	return c.doneChan
}

// Err returns ErrConnectionLost, wrapped with the cause, if the consumer
// stopped because the broker connection dropped.
func (c *MqttConsumer) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// IsConnected reports the connection state of the Paho client.
func (c *MqttConsumer) IsConnected() bool {
	return c.pahoClient != nil && c.pahoClient.IsConnected()
}

func (c *MqttConsumer) handleIncomingMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	// QoS 0 deliveries carry no packet identifier.
	id := uuid.NewString()
	if msg.MessageID() != 0 {
		id = strconv.Itoa(int(msg.MessageID()))
	}

	consumed := messagepipeline.Message{
		MessageData: messagepipeline.MessageData{
			ID:          id,
			Payload:     payload,
			PublishTime: time.Now().UTC(),
		},
		Attributes: map[string]string{messagepipeline.TopicAttribute: msg.Topic()},
		// Acknowledgment is handled at the protocol level by the Paho client.
		Ack:  func() {},
		Nack: func() {},
	}

	c.outputMu.RLock()
	defer c.outputMu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.outputChan <- consumed:
	case <-c.stopping:
		c.logger.Warn().Str("topic", msg.Topic()).Msg("Consumer is shutting down, dropping MQTT message.")
	}
}

func (c *MqttConsumer) onConnect(client mqtt.Client) {
	c.logger.Info().Str("broker", c.cfg.BrokerURL).Msg("Connected to MQTT broker.")
	filters := make(map[string]byte, len(c.cfg.Topics))
	for _, topic := range c.cfg.Topics {
		filters[topic] = c.cfg.QoS
	}
	token := client.SubscribeMultiple(filters, c.handleIncomingMessage)
	go func() {
		if token.WaitTimeout(c.cfg.ConnectTimeout) && token.Error() != nil {
			c.logger.Error().Err(token.Error()).Strs("topics", c.cfg.Topics).Msg("Failed to subscribe to MQTT topics.")
			return
		}
		c.logger.Info().Strs("topics", c.cfg.Topics).Uint8("qos", c.cfg.QoS).Msg("Subscribed to MQTT topics.")
	}()
}

func (c *MqttConsumer) onConnectionLost(_ mqtt.Client, err error) {
	if !c.cfg.ExitOnConnectionLost {
		c.logger.Error().Err(err).Msg("Lost MQTT connection, reconnecting.")
		return
	}
	c.logger.Error().Err(err).Msg("Lost MQTT connection, stopping consumer.")
	c.errMu.Lock()
	c.err = fmt.Errorf("%w: %v", ErrConnectionLost, err)
	c.errMu.Unlock()
	go func() { _ = c.Stop(context.Background()) }()
}

func (c *MqttConsumer) clientID() string {
	if c.cfg.ClientID != "" {
		return c.cfg.ClientID
	}
	return c.cfg.ClientIDPrefix + uuid.NewString()[:8]
}

// createMqttOptions assembles the Paho client options from the config.
func (c *MqttConsumer) createMqttOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.BrokerURL)
	opts.SetClientID(c.clientID())
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	opts.SetKeepAlive(c.cfg.KeepAlive)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(c.cfg.RecoveryInterval)
	opts.SetAutoReconnect(!c.cfg.ExitOnConnectionLost)
	opts.SetMaxReconnectInterval(c.cfg.ReconnectWaitMax)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(false)
	opts.SetDefaultPublishHandler(c.handleIncomingMessage)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	if isTLSBroker(c.cfg.BrokerURL) {
		tlsConfig, err := newTLSConfig(c.cfg)
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to create TLS config, proceeding without it.")
		} else {
			opts.SetTLSConfig(tlsConfig)
		}
	}
	return opts
}
