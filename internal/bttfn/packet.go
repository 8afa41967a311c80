// Package bttfn speaks the BTTF network protocol: a 48 byte UDP datagram
// used to poll a time circuits display for live parameters and to receive
// its push notifications.
package bttfn

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Version is the protocol version carried in byte 4.
	Version = 1
	// PacketSize is the fixed datagram size.
	PacketSize = 48
	// Port is the UDP port used on both ends.
	Port = 1338
	// DeviceFlux identifies this device type to the display.
	DeviceFlux = 1

	// HostNameLen is the longest host name a request carries.
	HostNameLen = 12

	versionResponse     = Version | 0x80
	versionNotification = Version | 0x40

	maskSpeed  = 0x02
	maskStatus = 0x10

	// requestMask asks for the speed and status fields.
	requestMask = maskSpeed | maskStatus

	flagNight    = 0x01
	flagPowerOff = 0x02

	offVersion  = 4
	offCode     = 5
	offID       = 6
	offHost     = 10
	offDevice   = 23
	offSpeed    = 18
	offFlags    = 26
	offChecksum = PacketSize - 1
)

var magic = [4]byte{'B', 'T', 'T', 'F'}

var (
	// ErrShort is returned for datagrams shorter than PacketSize.
	ErrShort = errors.New("bttfn: short packet")
	// ErrMagic is returned when the protocol literal is missing.
	ErrMagic = errors.New("bttfn: bad magic")
	// ErrChecksum is returned when the checksum byte does not match.
	ErrChecksum = errors.New("bttfn: bad checksum")
	// ErrVersion is returned for an unknown version byte.
	ErrVersion = errors.New("bttfn: unknown version")
)

// Packet is one datagram.
type Packet [PacketSize]byte

// Kind of frame, from the version byte.
type Kind uint8

const (
	KindRequest Kind = iota
	KindResponse
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	}
	return "unknown"
}

// Notice is a push notification code.
type Notice uint8

const (
	NoticePrepare Notice = 1 + iota
	NoticeStart
	NoticeReentry
	NoticeAbort
	NoticeAlarm
)

func (n Notice) String() string {
	switch n {
	case NoticePrepare:
		return "prepare"
	case NoticeStart:
		return "start"
	case NoticeReentry:
		return "reentry"
	case NoticeAbort:
		return "abort"
	case NoticeAlarm:
		return "alarm"
	}
	return fmt.Sprintf("notice(%d)", uint8(n))
}

// Frame is a decoded datagram. Only the fields of its Kind are set.
type Frame struct {
	Kind Kind

	// Code is the request capability mask, the response field mask or the
	// notification code.
	Code byte
	ID   uint32

	// Request fields.
	Host   string
	Device byte

	// Response fields, valid when the matching Code bit is set.
	Speed int16
	Flags byte
}

// Notice returns the notification code of a notification frame.
func (f Frame) Notice() Notice { return Notice(f.Code) }

// HasSpeed reports whether a response carries the speed field.
func (f Frame) HasSpeed() bool { return f.Code&maskSpeed != 0 }

// HasStatus reports whether a response carries the status flags.
func (f Frame) HasStatus() bool { return f.Code&maskStatus != 0 }

// Checksum is the byte sum of b[i]^0x55 over bytes 4..46.
func Checksum(p *Packet) byte {
	var a byte
	for i := offVersion; i < offChecksum; i++ {
		a += p[i] ^ 0x55
	}
	return a
}

func (p *Packet) seal() {
	p[offChecksum] = Checksum(p)
}

// EncodeRequest builds a status request. host is cut to HostNameLen bytes.
func EncodeRequest(id uint32, host string) Packet {
	var p Packet
	copy(p[:], magic[:])
	p[offVersion] = Version
	p[offCode] = requestMask
	binary.LittleEndian.PutUint32(p[offID:], id)
	if len(host) > HostNameLen {
		host = host[:HostNameLen]
	}
	copy(p[offHost:offHost+HostNameLen], host)
	p[offDevice] = DeviceFlux
	p.seal()
	return p
}

// EncodeResponse builds a response carrying the fields selected by mask.
// The daemon never sends one; tests and the simulator do.
func EncodeResponse(id uint32, mask byte, speed int16, flags byte) Packet {
	var p Packet
	copy(p[:], magic[:])
	p[offVersion] = versionResponse
	p[offCode] = mask
	binary.LittleEndian.PutUint32(p[offID:], id)
	if mask&maskSpeed != 0 {
		binary.LittleEndian.PutUint16(p[offSpeed:], uint16(speed))
	}
	if mask&maskStatus != 0 {
		p[offFlags] = flags
	}
	p.seal()
	return p
}

// EncodeNotification builds a push notification.
func EncodeNotification(n Notice) Packet {
	var p Packet
	copy(p[:], magic[:])
	p[offVersion] = versionNotification
	p[offCode] = byte(n)
	p.seal()
	return p
}

// Parse validates and decodes a datagram.
func Parse(b []byte) (Frame, error) {
	if len(b) < PacketSize {
		return Frame{}, ErrShort
	}
	var p Packet
	copy(p[:], b)
	if [4]byte(p[:4]) != magic {
		return Frame{}, ErrMagic
	}
	if p[offChecksum] != Checksum(&p) {
		return Frame{}, ErrChecksum
	}

	f := Frame{
		Code: p[offCode],
		ID:   binary.LittleEndian.Uint32(p[offID:]),
	}
	switch p[offVersion] {
	case Version:
		f.Kind = KindRequest
		f.Host = cString(p[offHost : offHost+HostNameLen+1])
		f.Device = p[offDevice]
	case versionResponse:
		f.Kind = KindResponse
		if f.HasSpeed() {
			f.Speed = int16(binary.LittleEndian.Uint16(p[offSpeed:]))
		}
		if f.HasStatus() {
			f.Flags = p[offFlags]
		}
	case versionNotification:
		f.Kind = KindNotification
		f.ID = 0
	default:
		return Frame{}, fmt.Errorf("%w: 0x%02x", ErrVersion, p[offVersion])
	}
	return f, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
