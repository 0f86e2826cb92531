package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
)

// MQTTSubscriber feeds MQTT_DETECTIONS_TOPIC into the handler. The
// subscription is renewed on every (re)connect.
type MQTTSubscriber struct {
	cfg     *config.Config
	handler *Handler
	client  mqtt.Client
	logger  zerolog.Logger

	topic string
	qos   byte

	connectedMutex sync.RWMutex
	isConnected    bool
}

func NewMQTTSubscriber(cfg *config.Config, handler *Handler) *MQTTSubscriber {
	s := &MQTTSubscriber{
		cfg:     cfg,
		handler: handler,
		logger:  logging.NewServiceLogger(cfg, "ingest-mqtt"),
		topic:   cfg.MQTTDetectionsTopic,
		qos:     byte(cfg.MQTTQoS),
	}
	if s.qos > 2 {
		s.qos = 1
	}

	// a per-process suffix keeps two engines from kicking each other off the broker
	clientID := fmt.Sprintf("%s-%s", cfg.MQTTClientID, uuid.NewString()[:8])

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBrokerURL).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.setConnected(false)
			s.logger.Warn().Err(err).Msg("MQTT connection lost")
		})
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	s.client = mqtt.NewClient(opts)
	return s
}

// Start connects, waiting at most timeout for the first connection. The
// client keeps retrying in the background afterwards.
func (s *MQTTSubscriber) Start(timeout time.Duration) error {
	s.logger.Info().Str("broker", s.cfg.MQTTBrokerURL).Str("topic", s.topic).Msg("Connecting to MQTT broker")

	token := s.client.Connect()
	if !token.WaitTimeout(timeout) {
		s.logger.Warn().Dur("timeout", timeout).Msg("MQTT broker not reachable yet, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", s.cfg.MQTTBrokerURL, err)
	}
	return nil
}

func (s *MQTTSubscriber) onConnect(c mqtt.Client) {
	s.setConnected(true)
	token := c.Subscribe(s.topic, s.qos, s.onMessage)
	if token.Wait() && token.Error() != nil {
		s.logger.Error().Err(token.Error()).Str("topic", s.topic).Msg("Failed to subscribe to MQTT topic")
		return
	}
	s.logger.Info().Str("topic", s.topic).Int("qos", int(s.qos)).Msg("Subscribed to MQTT detection topic")
}

func (s *MQTTSubscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	results, err := s.handler.HandlePayload(context.Background(), "mqtt:"+msg.Topic(), msg.Payload())
	if err != nil {
		return
	}
	if sum := Summarize(results); sum.Accepted != len(results) {
		s.logger.Debug().
			Str("topic", msg.Topic()).
			Int("accepted", sum.Accepted).
			Int("malformed", sum.Malformed).
			Int("dropped", sum.Dropped).
			Msg("Detection message partially accepted")
	}
}

func (s *MQTTSubscriber) setConnected(v bool) {
	s.connectedMutex.Lock()
	s.isConnected = v
	s.connectedMutex.Unlock()
}

// IsConnected reports the last known connection state.
func (s *MQTTSubscriber) IsConnected() bool {
	s.connectedMutex.RLock()
	defer s.connectedMutex.RUnlock()
	return s.isConnected && s.client.IsConnected()
}

func (s *MQTTSubscriber) Stop() {
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	}
	s.client.Disconnect(250)
	s.setConnected(false)
	s.logger.Info().Msg("MQTT subscriber stopped")
}
