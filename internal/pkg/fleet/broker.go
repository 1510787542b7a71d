package fleet

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"solarfleet-sim/internal/pkg/logger"
)

// broker is the minimal surface the Fleet Manager needs from an
// MQTT-like client, kept as an interface so tests can substitute a
// fake instead of dialing a real server — the same seam
// internal/pkg/mqttfuncPipe used a nil client for in the teacher.
type broker interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Unsubscribe(topic string) error
	Publish(topic string, qos byte, payload []byte) error
}

// BrokerConfig configures the underlying paho client.
type BrokerConfig struct {
	URL       string
	ClientID  string
	Username  string
	Password  string
	KeepAlive int
}

type pahoBroker struct {
	client       pahomqtt.Client
	lc           logger.LoggingClient
	onConnect    func()
	onLost       func(error)
}

func newPahoBroker(cfg BrokerConfig, lc logger.LoggingClient, onConnect func(), onLost func(error)) *pahoBroker {
	b := &pahoBroker{lc: lc, onConnect: onConnect, onLost: onLost}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second)
	}
	opts.SetAutoReconnect(false) // Fleet Manager owns its own capped-backoff reconnect loop
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		if b.onConnect != nil {
			b.onConnect()
		}
	})
	opts.SetConnectionLostHandler(func(c pahomqtt.Client, err error) {
		if b.onLost != nil {
			b.onLost(err)
		}
	})

	b.client = pahomqtt.NewClient(opts)
	return b
}

func (b *pahoBroker) Connect() error {
	token := b.client.Connect()
	token.Wait()
	return token.Error()
}

func (b *pahoBroker) Disconnect() {
	if b.client.IsConnected() {
		b.client.Disconnect(1000)
	}
}

func (b *pahoBroker) IsConnected() bool { return b.client.IsConnected() }

func (b *pahoBroker) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	token := b.client.Subscribe(topic, qos, func(c pahomqtt.Client, m pahomqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func (b *pahoBroker) Unsubscribe(topic string) error {
	token := b.client.Unsubscribe(topic)
	token.Wait()
	return token.Error()
}

func (b *pahoBroker) Publish(topic string, qos byte, payload []byte) error {
	token := b.client.Publish(topic, qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}
