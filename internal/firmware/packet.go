package firmware

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// Host packet flags.
const (
	HostFlagsNone        uint32 = 0x0
	HostFlagIntrRequired uint32 = 0x1
)

// Firmware port ids. Which one a capability port maps to depends on the
// session direction: an encoder reads raw frames and writes bitstream, a
// decoder the reverse.
const (
	PortNone      uint32 = 0x0
	PortBitstream uint32 = 0x1
	PortRaw       uint32 = 0x2
)

// HeaderSize is the fixed size of a packet header in bytes.
const HeaderSize = 24

// DefaultQueueSize is the command queue capacity used when none is given.
const DefaultQueueSize = 4096

var (
	// ErrQueueFull is returned when a packet does not fit the command queue.
	ErrQueueFull = errors.New("command queue full")

	// ErrUnknownPayload is returned for payload types the firmware does not
	// accept.
	ErrUnknownPayload = errors.New("unknown payload type")

	// ErrNoProperty is returned for a write without a property id.
	ErrNoProperty = errors.New("missing property id")
)

type header struct {
	Size        uint32
	Type        uint32
	Flags       uint32
	PayloadInfo uint32
	Port        uint32
	PacketID    uint32
}

// Packet is one decoded property packet.
type Packet struct {
	Size        uint32           `json:"size"`
	PropertyID  uint32           `json:"property_id"`
	Flags       uint32           `json:"flags"`
	PayloadType caps.PayloadType `json:"payload_type"`
	Port        uint32           `json:"port"`
	PacketID    uint32           `json:"packet_id"`
	Payload     []byte           `json:"payload"`
}

// Uint32 decodes a four byte payload.
func (p Packet) Uint32() (uint32, bool) {
	if len(p.Payload) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(p.Payload), true
}

// PacketWriter serializes property writes into a bounded command queue.
//
// Thread-safety: PacketWriter is safe for concurrent use, though a session
// only ever writes from one goroutine at a time.
type PacketWriter struct {
	mu       sync.Mutex
	domain   caps.Domain
	capacity int
	queue    bytes.Buffer
	packetID uint32
	count    int
}

// NewPacketWriter returns a writer for a session in domain. A capacity of
// zero or less selects DefaultQueueSize.
func NewPacketWriter(domain caps.Domain, capacity int) *PacketWriter {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &PacketWriter{domain: domain, capacity: capacity}
}

// WriteProperty appends one packet for p. It fails without queuing anything
// when the payload type is unknown, the property id is missing, or the
// packet does not fit.
func (w *PacketWriter) WriteProperty(ctx context.Context, p caps.EncodedProperty) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.PayloadType.Known() {
		return fmt.Errorf("%s: %w %d", p.Cap, ErrUnknownPayload, uint32(p.PayloadType))
	}
	if p.HWPropertyID == 0 {
		return fmt.Errorf("%s: %w", p.Cap, ErrNoProperty)
	}

	payload := p.Payload
	if pad := len(payload) % 4; pad != 0 {
		payload = append(append([]byte(nil), payload...), make([]byte, 4-pad)...)
	}
	size := HeaderSize + len(payload)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.queue.Len()+size > w.capacity {
		return fmt.Errorf("%s: %w (%d of %d bytes used)", p.Cap, ErrQueueFull, w.queue.Len(), w.capacity)
	}
	w.packetID++
	h := header{
		Size:        uint32(size),
		Type:        p.HWPropertyID,
		Flags:       HostFlagIntrRequired,
		PayloadInfo: uint32(p.PayloadType),
		Port:        hfiPort(w.domain, p.Port),
		PacketID:    w.packetID,
	}
	if err := binary.Write(&w.queue, binary.LittleEndian, h); err != nil {
		return err
	}
	w.queue.Write(payload)
	w.count++
	return nil
}

// Len returns the number of queued packets.
func (w *PacketWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Bytes returns a copy of the queued bytes.
func (w *PacketWriter) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bytes.Clone(w.queue.Bytes())
}

// Drain returns the queued bytes and empties the queue. Packet ids keep
// counting.
func (w *PacketWriter) Drain() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := bytes.Clone(w.queue.Bytes())
	w.queue.Reset()
	w.count = 0
	return b
}

func hfiPort(domain caps.Domain, port caps.Port) uint32 {
	switch {
	case port == caps.PortInput && domain == caps.Encoder:
		return PortRaw
	case port == caps.PortInput:
		return PortBitstream
	case port == caps.PortOutput && domain == caps.Encoder:
		return PortBitstream
	case port == caps.PortOutput:
		return PortRaw
	}
	return PortNone
}

// Decode parses a command queue produced by PacketWriter.
func Decode(b []byte) ([]Packet, error) {
	var out []Packet
	r := bytes.NewReader(b)
	for r.Len() > 0 {
		offset := len(b) - r.Len()
		var h header
		if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
			return out, fmt.Errorf("packet at offset %d: short header: %w", offset, err)
		}
		if h.Size < HeaderSize || int(h.Size)-HeaderSize > r.Len() {
			return out, fmt.Errorf("packet at offset %d: bad size %d", offset, h.Size)
		}
		payload := make([]byte, int(h.Size)-HeaderSize)
		if _, err := io.ReadFull(r, payload); err != nil {
			return out, fmt.Errorf("packet at offset %d: %w", offset, err)
		}
		out = append(out, Packet{
			Size:        h.Size,
			PropertyID:  h.Type,
			Flags:       h.Flags,
			PayloadType: caps.PayloadType(h.PayloadInfo),
			Port:        h.Port,
			PacketID:    h.PacketID,
			Payload:     payload,
		})
	}
	return out, nil
}
