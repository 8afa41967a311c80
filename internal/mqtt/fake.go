package mqtt

// FakeBridge records published events and queues injected commands.
type FakeBridge struct {
	// Events contains all status events that were published.
	Events []StatusEvent

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// PublishError, if set, will be returned by PublishStatus.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	inbox []Message
}

// NewFakeBridge creates a FakeBridge for testing.
func NewFakeBridge() *FakeBridge {
	return &FakeBridge{}
}

// Deliver parses payload as if it arrived on topic and queues it.
// It reports whether the payload was recognised.
func (f *FakeBridge) Deliver(topic, payload string) bool {
	msg, ok := ParseMessage(topic, []byte(payload))
	if ok {
		f.inbox = append(f.inbox, msg)
	}
	return ok
}

// Receive pops the oldest queued message.
func (f *FakeBridge) Receive() (Message, bool) {
	if len(f.inbox) == 0 {
		return Message{}, false
	}
	m := f.inbox[0]
	f.inbox = f.inbox[1:]
	return m, true
}

// PublishStatus records the status event.
func (f *FakeBridge) PublishStatus(event StatusEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatStatusPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Close marks the bridge as closed.
func (f *FakeBridge) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake bridge is "connected".
func (f *FakeBridge) IsConnected() bool {
	return f.Connected
}

// Phases returns the Phase field of every PHASE event, in order.
func (f *FakeBridge) Phases() []string {
	var out []string
	for _, e := range f.Events {
		if e.Event == "PHASE" {
			out = append(out, e.Phase)
		}
	}
	return out
}

// Reset clears recorded events and queued messages.
func (f *FakeBridge) Reset() {
	f.Events = nil
	f.Payloads = nil
	f.inbox = nil
	f.Closed = false
	f.PublishError = nil
	f.Connected = false
}
