package bttfn

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
)

const recvQueue = 16

// UDPTransport owns the protocol socket. A reader goroutine queues incoming
// datagrams; when the queue is full new ones are dropped.
type UDPTransport struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	in     chan []byte
	log    *logger.Logger

	wg sync.WaitGroup
}

// ListenUDP binds the local protocol port and targets the display at host.
func ListenUDP(ctx context.Context, host string, localPort int, log *logger.Logger) (*UDPTransport, error) {
	remote, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, fmt.Sprint(Port)))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, fmt.Errorf("listen udp :%d: %w", localPort, err)
	}
	if log == nil {
		log = logger.Nop()
	}

	t := &UDPTransport{
		conn:   conn,
		remote: remote,
		in:     make(chan []byte, recvQueue),
		log:    log,
	}
	t.wg.Add(1)
	go t.readLoop()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return t, nil
}

func (t *UDPTransport) readLoop() {
	defer t.wg.Done()
	for {
		buf := make([]byte, PacketSize+1)
		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		if n != PacketSize {
			t.log.Debugw("ignoring datagram", "from", from, "size", n)
			continue
		}
		select {
		case t.in <- buf[:n]:
		default:
		}
	}
}

// Send writes one request to the display.
func (t *UDPTransport) Send(p Packet) error {
	if _, err := t.conn.WriteToUDP(p[:], t.remote); err != nil {
		return fmt.Errorf("send to %s: %w", t.remote, err)
	}
	return nil
}

// Recv returns the next queued datagram without blocking.
func (t *UDPTransport) Recv() ([]byte, bool) {
	select {
	case b := <-t.in:
		return b, true
	default:
		return nil, false
	}
}

// Close releases the socket and waits for the reader to exit.
func (t *UDPTransport) Close() error {
	err := t.conn.Close()
	t.wg.Wait()
	return err
}

// LinkWatcher reports whether a non-loopback interface has an address,
// checking the system at most once per Every.
type LinkWatcher struct {
	Every time.Duration

	last time.Time
	up   bool
}

// Up returns the cached link state, refreshing it when stale.
func (w *LinkWatcher) Up(now time.Time) bool {
	if !w.last.IsZero() && now.Sub(w.last) < w.Every {
		return w.up
	}
	w.last = now
	w.up = interfaceUp()
	return w.up
}

func interfaceUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
