package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTIngest subscribes to alert topics and feeds the dispatcher. It is the
// second ingest path next to the webhook, for monitoring setups that
// publish to a broker instead of calling out.
type MQTTIngest struct {
	conn       mqtt.Client
	topics     []string
	dispatcher *Dispatcher
	ctx        context.Context
	connected  atomic.Bool
	log        zerolog.Logger
}

type MQTTOptions struct {
	BrokerURL  string
	ClientID   string
	Topics     string // comma-separated filters
	Username   string
	Password   string
	Dispatcher *Dispatcher
	Log        zerolog.Logger
}

func ConnectMQTT(ctx context.Context, opts MQTTOptions) (*MQTTIngest, error) {
	m := &MQTTIngest{
		topics:     parseTopics(opts.Topics),
		dispatcher: opts.Dispatcher,
		ctx:        ctx,
		log:        opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(m.onConnectionLost).
		SetDefaultPublishHandler(m.onMessage)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	m.conn = mqtt.NewClient(clientOpts)
	token := m.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MQTTIngest) onConnect(client mqtt.Client) {
	m.connected.Store(true)
	m.log.Info().Strs("topics", m.topics).Msg("mqtt connected, subscribing")

	filters := make(map[string]byte, len(m.topics))
	for _, t := range m.topics {
		filters[t] = 1 // alerts warrant at-least-once from the broker
	}
	token := client.SubscribeMultiple(filters, nil)
	token.Wait()
	if err := token.Error(); err != nil {
		m.log.Error().Err(err).Msg("mqtt subscribe failed")
	}
}

func (m *MQTTIngest) onConnectionLost(_ mqtt.Client, err error) {
	m.connected.Store(false)
	m.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

func (m *MQTTIngest) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var alert Alert
	if err := json.Unmarshal(msg.Payload(), &alert); err != nil {
		m.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("undecodable alert payload")
		return
	}
	if alert.Message == "" || len(alert.Receivers) == 0 {
		m.log.Warn().Str("topic", msg.Topic()).Msg("alert missing message or receivers")
		return
	}
	go m.dispatcher.Dispatch(m.ctx, alert)
}

func (m *MQTTIngest) IsConnected() bool {
	return m.connected.Load()
}

func (m *MQTTIngest) Close() {
	m.log.Info().Msg("disconnecting mqtt client")
	m.conn.Disconnect(1000)
}

func parseTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return []string{"alerts/#"}
	}
	return topics
}
