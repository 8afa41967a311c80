package mqtt

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
)

const (
	// InboxSize bounds the queue between the paho callback goroutine and
	// the control loop.
	InboxSize = 16

	// BufferSize bounds status events kept while disconnected.
	BufferSize = 32

	publishTimeout = 5 * time.Second
)

// Config holds broker settings.
type Config struct {
	Broker string
	// Auth is "user" or "user:password"; empty disables authentication.
	Auth     string
	ClientID string
}

// SplitAuth splits a "user:password" setting.
func SplitAuth(auth string) (user, pass string) {
	user, pass, _ = strings.Cut(auth, ":")
	return user, pass
}

// DefaultClientID derives a client id from the host name with a random
// suffix so two props on one broker do not kick each other off.
func DefaultClientID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "fluxcap"
	}
	return host + "-" + uuid.NewString()[:8]
}

// Client is a Bridge backed by a real broker.
type Client struct {
	client paho.Client
	log    *logger.Logger
	inbox  chan Message

	mu       sync.Mutex
	buffered *ringBuffer
}

// NewClient starts connecting to the broker in the background. Until the
// first connection succeeds status events are buffered.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		log:      log,
		inbox:    make(chan Message, InboxSize),
		buffered: newRingBuffer(BufferSize, log),
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}

	will, _ := FormatStatusPayload(StatusEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicStatus, string(will), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.log.Warnw("connection lost", "error", err)
		})
	if cfg.Auth != "" {
		user, pass := SplitAuth(cfg.Auth)
		opts.SetUsername(user)
		opts.SetPassword(pass)
	}

	c.client = paho.NewClient(opts)
	c.client.Connect()
	return c
}

func (c *Client) onConnect(pc paho.Client) {
	c.log.Infow("connected", "subscribe", []string{TopicDisplay, TopicCommand})

	filters := map[string]byte{TopicDisplay: 0, TopicCommand: 0}
	token := pc.SubscribeMultiple(filters, c.onMessage)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		c.log.Errorw("subscribe failed", "error", token.Error())
	}

	c.mu.Lock()
	pending := c.buffered.drainAll()
	c.mu.Unlock()
	if len(pending) > 0 {
		c.log.Infow("replaying buffered messages", "count", len(pending))
	}
	for _, m := range pending {
		pc.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (c *Client) onMessage(_ paho.Client, m paho.Message) {
	msg, ok := ParseMessage(m.Topic(), m.Payload())
	if !ok {
		c.log.Debugw("ignoring message", "topic", m.Topic(), "payload", string(m.Payload()))
		return
	}
	select {
	case c.inbox <- msg:
	default:
		c.log.Warnw("inbox full, dropping command", "command", msg.Command)
	}
}

// Receive returns the next queued message without blocking.
func (c *Client) Receive() (Message, bool) {
	select {
	case m := <-c.inbox:
		return m, true
	default:
		return Message{}, false
	}
}

// PublishStatus sends a status event, or buffers it while disconnected.
func (c *Client) PublishStatus(event StatusEvent) error {
	payload, err := FormatStatusPayload(event)
	if err != nil {
		return fmt.Errorf("format status payload: %w", err)
	}

	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		c.buffered.push(bufferedMsg{topic: TopicStatus, payload: payload, qos: 1, retained: event.Retained})
		c.mu.Unlock()
		return nil
	}

	token := c.client.Publish(TopicStatus, 1, event.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish status timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
