// Package mqtt implements transport.Dialer over an MQTT broker. Outbound
// frames are published to one topic and inbound frames arrive on another.
//
// paho's own reconnect logic is disabled; a lost connection surfaces as a
// Receive error so the connection manager's backoff stays in charge.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/transport"
)

const inboundBuffer = 64

var (
	ErrMissingClientID = errors.New("mqtt: client id is required")
	ErrMissingTopics   = errors.New("mqtt: publish and subscribe topics are required")
	ErrInvalidQoS      = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrConnectTimeout  = errors.New("mqtt: connect timed out")
)

// Config describes the broker session.
type Config struct {
	ClientID       string        `toml:"client_id"`
	Username       string        `toml:"username"`
	Password       string        `toml:"password"`
	PublishTopic   string        `toml:"publish_topic"`
	SubscribeTopic string        `toml:"subscribe_topic"`
	QoS            byte          `toml:"qos"`
	KeepAlive      time.Duration `toml:"keep_alive"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return ErrMissingClientID
	}
	if c.PublishTopic == "" || c.SubscribeTopic == "" {
		return ErrMissingTopics
	}
	if c.QoS > 2 {
		return ErrInvalidQoS
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return nil
}

// Dialer connects to MQTT brokers such as tcp://localhost:1883.
type Dialer struct {
	cfg    Config
	logger log.Logger
}

// NewDialer validates cfg and returns a Dialer.
func NewDialer(cfg Config, logger log.Logger) (*Dialer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dialer{cfg: cfg, logger: log.OrNoop(logger).With(log.Component("mqtt"))}, nil
}

// Dial connects to broker and subscribes to the inbound topic.
func (d *Dialer) Dial(ctx context.Context, broker string) (transport.Conn, error) {
	c := &Conn{
		cfg:     d.cfg,
		logger:  d.logger,
		inbound: make(chan []byte, inboundBuffer),
		lost:    make(chan error, 1),
		closed:  make(chan struct{}),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(d.cfg.ClientID)
	opts.SetUsername(d.cfg.Username)
	opts.SetPassword(d.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(d.cfg.KeepAlive)
	opts.SetConnectTimeout(d.cfg.ConnectTimeout)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)
	if err := waitToken(ctx, c.client.Connect(), d.cfg.ConnectTimeout); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}

	if err := waitToken(ctx, c.client.Subscribe(d.cfg.SubscribeTopic, d.cfg.QoS, c.onMessage), d.cfg.ConnectTimeout); err != nil {
		c.client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", d.cfg.SubscribeTopic, err)
	}

	d.logger.Info("mqtt connected",
		log.String("broker", broker),
		log.String("publish_topic", d.cfg.PublishTopic),
		log.String("subscribe_topic", d.cfg.SubscribeTopic),
	)
	return c, nil
}

// Conn is one MQTT session.
type Conn struct {
	cfg       Config
	client    paho.Client
	logger    log.Logger
	inbound   chan []byte
	lost      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *Conn) onMessage(_ paho.Client, m paho.Message) {
	frame := append([]byte(nil), m.Payload()...)
	select {
	case c.inbound <- frame:
	case <-c.closed:
	}
}

func (c *Conn) onConnectionLost(_ paho.Client, err error) {
	c.logger.Warn("mqtt connection lost", log.Err(err))
	select {
	case c.lost <- err:
	default:
	}
}

// Send publishes frame to the outbound topic.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	return waitToken(ctx, c.client.Publish(c.cfg.PublishTopic, c.cfg.QoS, false, frame), 0)
}

// Receive returns the next message from the inbound topic.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-c.inbound:
		return frame, nil
	case err := <-c.lost:
		return nil, fmt.Errorf("mqtt connection lost: %w", err)
	case <-c.closed:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unsubscribes and disconnects.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.client.IsConnected() {
			c.client.Unsubscribe(c.cfg.SubscribeTopic)
			c.client.Disconnect(250)
		}
	})
	return nil
}

func waitToken(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-tok.Done():
		return tok.Error()
	case <-expired:
		return ErrConnectTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
