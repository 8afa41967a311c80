package bttfn

import "sync"

// FakeTransport records sent packets and replays injected ones.
type FakeTransport struct {
	mu      sync.Mutex
	sent    []Packet
	queue   [][]byte
	SendErr error
}

// Send records p.
func (f *FakeTransport) Send(p Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, p)
	return nil
}

// Recv pops the oldest injected datagram.
func (f *FakeTransport) Recv() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, false
	}
	b := f.queue[0]
	f.queue = f.queue[1:]
	return b, true
}

// Inject queues a datagram for Recv.
func (f *FakeTransport) Inject(p Packet) {
	f.InjectRaw(p[:])
}

// InjectRaw queues arbitrary bytes for Recv.
func (f *FakeTransport) InjectRaw(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, append([]byte(nil), b...))
}

// Sent returns a copy of all sent packets.
func (f *FakeTransport) Sent() []Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Packet(nil), f.sent...)
}

// LastID returns the id of the most recent request, or false if none.
func (f *FakeTransport) LastID() (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return 0, false
	}
	fr, err := Parse(f.sent[len(f.sent)-1][:])
	if err != nil {
		return 0, false
	}
	return fr.ID, true
}

// Respond answers the most recent request with the status field and, if
// speed is not negative, the speed field. It reports false if nothing was
// sent yet.
func (f *FakeTransport) Respond(speed int, night, powerOff bool) bool {
	id, ok := f.LastID()
	if !ok {
		return false
	}
	mask := byte(maskStatus)
	if speed >= 0 {
		mask |= maskSpeed
	}
	var flags byte
	if night {
		flags |= flagNight
	}
	if powerOff {
		flags |= flagPowerOff
	}
	f.Inject(EncodeResponse(id, mask, int16(speed), flags))
	return true
}
