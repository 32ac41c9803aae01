// Package publish sends classified frames to an MQTT broker so other
// programs can react to gestures.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ayusman/handsign/internal/app"
)

// Publisher delivers frame results somewhere outside the process.
type Publisher interface {
	Publish(result app.FrameResult) error
	Close() error
}

// Config configures an MQTTPublisher.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	// Timeout bounds connect and each publish. Zero means 10s.
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// queueSize is how many frames OnFrame buffers while the broker is slow.
const queueSize = 64

// MQTTPublisher publishes every non-empty frame as JSON to
// "<topic>/<session>", or to "<topic>" outside a session.
type MQTTPublisher struct {
	config Config
	client client
	logger *zap.SugaredLogger

	queue chan app.FrameResult
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewMQTTPublisher connects to cfg.Broker.
func NewMQTTPublisher(cfg Config) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "handsign"
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetConnectTimeout(withDefault(cfg.Timeout))
	opts.SetAutoReconnect(true)

	return newMQTTPublisher(cfg, mqtt.NewClient(opts))
}

func newMQTTPublisher(cfg Config, c client) (*MQTTPublisher, error) {
	if cfg.Topic == "" {
		return nil, errors.New("mqtt topic is required")
	}
	cfg.Topic = strings.TrimRight(cfg.Topic, "/")
	cfg.Timeout = withDefault(cfg.Timeout)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	p := &MQTTPublisher{
		config: cfg,
		client: c,
		logger: cfg.Logger,
		queue:  make(chan app.FrameResult, queueSize),
		done:   make(chan struct{}),
	}

	token := c.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}

	go p.loop()

	p.logger.Infow("connected to MQTT", "broker", cfg.Broker, "topic", cfg.Topic)
	return p, nil
}

func (p *MQTTPublisher) loop() {
	defer close(p.done)
	for result := range p.queue {
		if err := p.send(result); err != nil {
			p.logger.Warnw("failed to publish frame", "frame", result.Frame, "error", err)
		}
	}
}

func withDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Topic returns the topic a result is published to.
func (p *MQTTPublisher) Topic(result app.FrameResult) string {
	if result.SessionID == "" {
		return p.config.Topic
	}
	return p.config.Topic + "/" + result.SessionID
}

// Publish sends result and waits for the broker. Empty frames are skipped.
func (p *MQTTPublisher) Publish(result app.FrameResult) error {
	if result.Empty() {
		return nil
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errors.New("publisher closed")
	}
	return p.send(result)
}

func (p *MQTTPublisher) send(result app.FrameResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	topic := p.Topic(result)
	token := p.client.Publish(topic, p.config.QoS, false, payload)
	if !token.WaitTimeout(p.config.Timeout) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// OnFrame makes the publisher an app.Sink. It queues the frame and never
// waits for the broker; frames are dropped while the queue is full.
// Failures are logged.
func (p *MQTTPublisher) OnFrame(result app.FrameResult) {
	if result.Empty() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- result:
	default:
		p.dropped++
		p.logger.Warnw("publish queue full, frame dropped", "frame", result.Frame, "dropped", p.dropped)
	}
}

// Dropped returns how many frames OnFrame discarded because the queue was
// full.
func (p *MQTTPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close flushes queued frames for up to the publish timeout, then
// disconnects, waiting up to 250ms for in-flight messages.
func (p *MQTTPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(p.config.Timeout):
		p.logger.Warnw("dropping unsent frames", "pending", len(p.queue))
	}

	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}
