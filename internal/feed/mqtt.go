package feed

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// DefaultTopic is the topic gloves publish readings on.
const DefaultTopic = "glove/fingers"

// MQTT subscribes to glove messages published on a broker.
type MQTT struct {
	broker    string
	topic     string
	clientID  string
	newClient func(*mqtt.ClientOptions) mqtt.Client
	logger    *zap.Logger
}

// NewMQTT creates an MQTT source.
func NewMQTT(cfg Config) *MQTT {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "glovestudio"
	}
	return &MQTT{
		broker:    cfg.Broker,
		topic:     topic,
		clientID:  clientID,
		newClient: mqtt.NewClient,
		logger:    loggerOrNop(cfg.Logger).With(zap.String("feed", "mqtt"), zap.String("broker", cfg.Broker)),
	}
}

// Name implements Source.
func (m *MQTT) Name() string { return "mqtt " + m.broker + "/" + m.topic }

// Run implements Source. Reconnects are left to the paho client.
func (m *MQTT) Run(ctx context.Context, sink Sink) error {
	onMessage := forward(sink)

	opts := mqtt.NewClientOptions().
		AddBroker(m.broker).
		SetClientID(m.clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			token := c.Subscribe(m.topic, 0, onMessage)
			go func() {
				token.Wait()
				if err := token.Error(); err != nil {
					m.logger.Error("subscribe failed", zap.String("topic", m.topic), zap.Error(err))
					return
				}
				sink.SetConnected(true)
				m.logger.Info("glove subscribed", zap.String("topic", m.topic))
			}()
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			sink.SetConnected(false)
			m.logger.Warn("broker connection lost", zap.Error(err))
		})

	client := m.newClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect %s: %w", m.broker, err)
		}
	case <-ctx.Done():
	}

	<-ctx.Done()
	client.Disconnect(250)
	sink.SetConnected(false)
	return ctx.Err()
}

// forward passes every published payload to sink.
func forward(sink Sink) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		sink.HandleMessage(msg.Payload())
	}
}
