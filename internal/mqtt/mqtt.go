// Package mqtt bridges the prop to an MQTT broker. It receives commands
// from a Time Circuits Display and from users, and publishes sequencer
// phase changes.
package mqtt

import (
	"bytes"
	"encoding/json"
	"time"
)

// Topics.
const (
	// TopicDisplay carries notifications published by the Time Circuits
	// Display.
	TopicDisplay = "bttf/tcd/pub"
	// TopicCommand carries user commands addressed to this device.
	TopicCommand = "bttf/fc/cmd"
	// TopicStatus receives phase transitions and lifecycle events.
	TopicStatus = "bttf/fc/status"
)

// Origin identifies which topic a command arrived on.
type Origin int

const (
	OriginDisplay Origin = iota
	OriginUser
)

func (o Origin) String() string {
	switch o {
	case OriginDisplay:
		return "display"
	case OriginUser:
		return "user"
	}
	return "unknown"
}

// Command is a recognised message payload.
type Command string

const (
	CmdTimeTravel Command = "TIMETRAVEL"
	CmdReentry    Command = "REENTRY"
	CmdAlarm      Command = "ALARM"
	CmdFluxOn     Command = "FLUX_ON"
	CmdFluxOff    Command = "FLUX_OFF"
	CmdShuffleOn  Command = "MP_SHUFFLE_ON"
	CmdShuffleOff Command = "MP_SHUFFLE_OFF"
	CmdPlay       Command = "MP_PLAY"
	CmdStop       Command = "MP_STOP"
	CmdNext       Command = "MP_NEXT"
	CmdPrev       Command = "MP_PREV"
)

// Commands accepted per topic, in match order.
var (
	displayCommands = []Command{CmdTimeTravel, CmdReentry, CmdAlarm}
	userCommands    = []Command{
		CmdTimeTravel, CmdFluxOn, CmdFluxOff,
		CmdShuffleOn, CmdShuffleOff, CmdPlay, CmdStop, CmdNext, CmdPrev,
	}
)

// Message is a parsed command.
type Message struct {
	Origin  Origin
	Command Command
}

// ParseMessage matches payload against the commands accepted on topic.
// Matching is case-insensitive and a payload only needs to start with the
// command, so trailing parameters are ignored.
func ParseMessage(topic string, payload []byte) (Message, bool) {
	var (
		origin Origin
		cmds   []Command
	)
	switch topic {
	case TopicDisplay:
		origin, cmds = OriginDisplay, displayCommands
	case TopicCommand:
		origin, cmds = OriginUser, userCommands
	default:
		return Message{}, false
	}

	upper := bytes.ToUpper(bytes.TrimSpace(payload))
	for _, c := range cmds {
		if bytes.HasPrefix(upper, []byte(c)) {
			return Message{Origin: origin, Command: c}, true
		}
	}
	return Message{}, false
}

// Bridge is the controller's view of the broker connection.
type Bridge interface {
	// Receive returns the next queued message without blocking.
	Receive() (Message, bool)

	// PublishStatus sends a status event. Events published while the
	// broker is unreachable are buffered and replayed on reconnect.
	PublishStatus(event StatusEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// StatusEvent is a phase transition or lifecycle event.
type StatusEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "PHASE", "STARTUP", "SHUTDOWN"
	Phase      string
	Source     string
	Reason     string
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatStatusPayload returns it directly
	Retained   bool
}

// StatusPayload is the MQTT message payload for status events.
type StatusPayload struct {
	FC StatusPayloadInner `json:"fc"`
}

// StatusPayloadInner contains the status event details.
type StatusPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Phase     string `json:"phase,omitempty"`
	Source    string `json:"source,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FormatStatusPayload creates the JSON payload for a status event.
// If event.RawPayload is set, it is returned directly.
func FormatStatusPayload(event StatusEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := StatusPayload{
		FC: StatusPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Phase:     event.Phase,
			Source:    event.Source,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
