package publish

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/gesture"
)

type fakeToken struct {
	err      error
	complete bool
	// block, when set, holds waiters until it is closed.
	block chan struct{}
}

func (t *fakeToken) Wait() bool { return t.WaitTimeout(0) }

func (t *fakeToken) WaitTimeout(time.Duration) bool {
	if t.block != nil {
		<-t.block
	}
	return t.complete
}

func (t *fakeToken) Error() error { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connectErr   error
	publishErr   error
	stall        bool
	block        chan struct{}
	connected    bool
	disconnected bool
	messages     []message
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = c.connectErr == nil
	return &fakeToken{err: c.connectErr, complete: true}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stall {
		return &fakeToken{complete: false}
	}
	if c.publishErr != nil {
		return &fakeToken{err: c.publishErr, complete: true}
	}
	c.messages = append(c.messages, message{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{complete: true, block: c.block}
}

func (c *fakeClient) sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	c.connected = false
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func peaceFrame(session string) app.FrameResult {
	return app.FrameResult{
		SessionID: session,
		Frame:     3,
		Hands:     []app.HandResult{{Gesture: gesture.Peace, Label: gesture.Peace.String()}},
	}
}

func TestMQTTPublisher_Publish(t *testing.T) {
	fc := &fakeClient{}
	p, err := newMQTTPublisher(Config{Broker: "tcp://test:1883", Topic: "lab/hands/", QoS: 1}, fc)
	if err != nil {
		t.Fatalf("newMQTTPublisher() error = %v", err)
	}

	if err := p.Publish(peaceFrame("abc")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := p.Publish(peaceFrame("")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	// Empty frames are not sent.
	if err := p.Publish(app.FrameResult{SessionID: "abc"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(fc.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(fc.messages))
	}
	if fc.messages[0].topic != "lab/hands/abc" || fc.messages[1].topic != "lab/hands" {
		t.Errorf("topics = %q, %q", fc.messages[0].topic, fc.messages[1].topic)
	}
	if fc.messages[0].qos != 1 {
		t.Errorf("qos = %d", fc.messages[0].qos)
	}

	var decoded struct {
		Frame int64 `json:"frame"`
		Hands []struct {
			Gesture string `json:"gesture"`
		} `json:"hands"`
	}
	if err := json.Unmarshal(fc.messages[0].payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Frame != 3 || decoded.Hands[0].Gesture != "peace" {
		t.Errorf("payload = %s", fc.messages[0].payload)
	}
}

func TestMQTTPublisher_Errors(t *testing.T) {
	t.Run("connect failure", func(t *testing.T) {
		fc := &fakeClient{connectErr: errors.New("refused")}
		if _, err := newMQTTPublisher(Config{Broker: "tcp://x", Topic: "t"}, fc); err == nil {
			t.Error("expected connect error")
		}
	})

	t.Run("missing topic", func(t *testing.T) {
		if _, err := newMQTTPublisher(Config{Broker: "tcp://x"}, &fakeClient{}); err == nil {
			t.Error("expected error for empty topic")
		}
	})

	t.Run("missing broker", func(t *testing.T) {
		if _, err := NewMQTTPublisher(Config{Topic: "t"}); err == nil {
			t.Error("expected error for empty broker")
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		fc := &fakeClient{publishErr: errors.New("not authorized")}
		p, _ := newMQTTPublisher(Config{Broker: "tcp://x", Topic: "t"}, fc)
		if err := p.Publish(peaceFrame("s")); err == nil {
			t.Error("expected publish error")
		}
		// OnFrame logs instead of failing.
		p.OnFrame(peaceFrame("s"))
	})

	t.Run("publish timeout", func(t *testing.T) {
		fc := &fakeClient{stall: true}
		p, _ := newMQTTPublisher(Config{Broker: "tcp://x", Topic: "t", Timeout: time.Millisecond}, fc)
		if err := p.Publish(peaceFrame("s")); err == nil {
			t.Error("expected timeout error")
		}
	})
}

func TestMQTTPublisher_OnFrameDoesNotWait(t *testing.T) {
	fc := &fakeClient{block: make(chan struct{})}
	p, err := newMQTTPublisher(Config{Broker: "tcp://x", Topic: "t"}, fc)
	if err != nil {
		t.Fatalf("newMQTTPublisher() error = %v", err)
	}

	const frames = queueSize + 10
	done := make(chan struct{})
	go func() {
		for i := 0; i < frames; i++ {
			p.OnFrame(peaceFrame("s"))
		}
		p.OnFrame(app.FrameResult{SessionID: "s"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnFrame waited on an unresponsive broker")
	}

	// The worker holds one frame and the queue the next queueSize.
	if d := p.Dropped(); d < frames-queueSize-1 || d > frames-queueSize {
		t.Errorf("Dropped() = %d", d)
	}

	close(fc.block)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got, want := fc.sent(), frames-p.Dropped(); got != want {
		t.Errorf("sent %d messages, want %d", got, want)
	}
}

func TestMQTTPublisher_Close(t *testing.T) {
	fc := &fakeClient{}
	p, err := newMQTTPublisher(Config{Broker: "tcp://x", Topic: "t"}, fc)
	if err != nil {
		t.Fatalf("newMQTTPublisher() error = %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fc.disconnected {
		t.Error("Close() should disconnect")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := p.Publish(peaceFrame("s")); err == nil {
		t.Error("Publish() after Close should fail")
	}
	p.OnFrame(peaceFrame("s"))
	if len(fc.messages) != 0 {
		t.Errorf("expected nothing sent after Close, got %d", len(fc.messages))
	}
}

var _ Publisher = (*MQTTPublisher)(nil)
var _ app.Sink = (*MQTTPublisher)(nil)
