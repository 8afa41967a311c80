package bttfn

import (
	"errors"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
)

const (
	// ResponseTimeout is how long a request stays outstanding.
	ResponseTimeout = 700 * time.Millisecond
	// PollInterval is the normal request cadence.
	PollInterval = 1100 * time.Millisecond
	// FastRetries is the number of consecutive timeouts retried at once.
	FastRetries = 10

	// SpeedUnset means no speed was reported.
	SpeedUnset = -1
)

// Flag is a remote boolean with an unset state.
type Flag int8

const (
	FlagUnset Flag = iota - 1
	FlagOff
	FlagOn
)

func flagOf(b bool) Flag {
	if b {
		return FlagOn
	}
	return FlagOff
}

// On reports whether the flag is known and set.
func (f Flag) On() bool { return f == FlagOn }

func (f Flag) String() string {
	switch f {
	case FlagOff:
		return "off"
	case FlagOn:
		return "on"
	}
	return "unset"
}

// Params are the remote values from the last valid response.
type Params struct {
	Speed    int
	Night    Flag
	PowerOff Flag
}

// UnsetParams is the state before the first valid response.
var UnsetParams = Params{Speed: SpeedUnset, Night: FlagUnset, PowerOff: FlagUnset}

// Stats counts protocol events.
type Stats struct {
	Sent     uint64
	Received uint64
	Timeouts uint64
	Dropped  uint64
}

// Transport moves datagrams. Both methods must return immediately.
type Transport interface {
	Send(p Packet) error
	// Recv returns the next queued datagram, if any.
	Recv() ([]byte, bool)
}

// Client runs the request/response cycle and collects notifications. It is
// polled from the main loop and is not safe for concurrent use.
type Client struct {
	tr   Transport
	host string
	log  *logger.Logger

	pending  bool
	id       uint32
	sentAt   time.Time
	lastSend time.Time
	sendNow  bool
	linkUp   bool
	failures int

	params Params
	stats  Stats
}

// NewClient returns a client that sends its first request on the first
// Poll with the link up.
func NewClient(tr Transport, host string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		tr:      tr,
		host:    host,
		log:     log,
		sendNow: true,
		params:  UnsetParams,
	}
}

// Poll handles received datagrams, expires an outstanding request and sends
// the next one when due. Notifications are returned in arrival order.
func (c *Client) Poll(now time.Time, linkUp bool) []Notice {
	notes := c.receive()

	if c.pending && now.Sub(c.sentAt) > ResponseTimeout {
		c.timeout()
	}

	if !c.pending {
		if !c.linkUp && linkUp {
			c.sendNow = true
		}
		if c.sendNow || now.Sub(c.lastSend) > PollInterval {
			c.request(now, linkUp)
		}
	}
	return notes
}

func (c *Client) receive() []Notice {
	var notes []Notice
	for {
		b, ok := c.tr.Recv()
		if !ok {
			return notes
		}
		f, err := Parse(b)
		if err != nil {
			c.stats.Dropped++
			if !errors.Is(err, ErrShort) {
				c.log.Debugw("dropped datagram", "err", err)
			}
			continue
		}
		switch f.Kind {
		case KindNotification:
			c.stats.Received++
			notes = append(notes, f.Notice())
		case KindResponse:
			if !c.pending || f.ID != c.id {
				c.stats.Dropped++
				continue
			}
			c.stats.Received++
			c.accept(f)
		default:
			c.stats.Dropped++
		}
	}
}

func (c *Client) accept(f Frame) {
	c.pending = false
	c.failures = 0

	p := UnsetParams
	if f.HasSpeed() {
		p.Speed = int(f.Speed)
	}
	if f.HasStatus() {
		p.Night = flagOf(f.Flags&flagNight != 0)
		p.PowerOff = flagOf(f.Flags&flagPowerOff != 0)
	}
	if p != c.params {
		c.log.Debugw("remote params", "speed", p.Speed, "night", p.Night, "power_off", p.PowerOff)
	}
	c.params = p
}

func (c *Client) timeout() {
	c.pending = false
	c.stats.Timeouts++
	if c.failures < FastRetries {
		c.failures++
		c.sendNow = true
	}
	if c.failures >= FastRetries && c.params != UnsetParams {
		c.log.Infow("display not responding, dropping remote params", "failures", c.failures)
		c.params = UnsetParams
	}
}

func (c *Client) request(now time.Time, linkUp bool) {
	c.sendNow = false
	c.lastSend = now
	if !linkUp {
		c.linkUp = false
		return
	}
	c.linkUp = true

	c.id = uint32(now.UnixMilli())
	if err := c.tr.Send(EncodeRequest(c.id, c.host)); err != nil {
		c.log.Warnw("request send failed", "err", err)
		return
	}
	c.stats.Sent++
	c.sentAt = now
	c.pending = true
}

// Params returns the cached remote values.
func (c *Client) Params() Params { return c.params }

// Failures returns the consecutive timeout count, capped at FastRetries.
func (c *Client) Failures() int { return c.failures }

// Pending reports whether a request is outstanding.
func (c *Client) Pending() bool { return c.pending }

// Stats returns the event counters.
func (c *Client) Stats() Stats { return c.stats }

// NextDelay is the delay, counted from the last send, before the next
// request goes out: zero for an immediate retry.
func (c *Client) NextDelay() time.Duration {
	if c.sendNow {
		return 0
	}
	return PollInterval
}
