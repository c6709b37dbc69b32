// Package packet implements the ReThunder packet family: a tagged union
// with a shared bit-sized header, per-variant payload fields, computed
// frame counts, and per-frame damage tracking used to derive a noise
// estimate.
//
// Ported from the reference simulator's protocol/packet.py and
// protocol/packet_fields.py (descriptor-based FixedSizeInt/FlagField/
// DataField fields collapse naturally onto Go struct fields plus
// validating constructors), restructured per spec.md §3, §4.5, §9.
package packet

import "github.com/pkg/errors"

// AddressBits is the bit width of every static/logic address field.
const AddressBits = 11

// MaxAddress is the largest value representable in AddressBits bits.
const MaxAddress = 1<<AddressBits - 1

// ErrFieldTooWide is returned when a value does not fit the field's bit
// width.
var ErrFieldTooWide = errors.New("packet: value exceeds field width")

// ErrFrameIndexOutOfRange is returned by DamageBit for an index outside
// [0, FrameCount()).
var ErrFrameIndexOutOfRange = errors.New("packet: frame index out of range")

func checkWidth(value, bits int) error {
	if value < 0 || value >= 1<<uint(bits) {
		return errors.Wrapf(ErrFieldTooWide, "value %d does not fit in %d bits", value, bits)
	}
	return nil
}

// Code holds the four header flag bits: node-init, destination-is-
// endpoint, is-addressing-static, and has-new-logic-address.
type Code struct {
	IsNodeInit           bool
	DestinationIsEndpoint bool
	IsAddressingStatic   bool
	HasNewLogicAddress   bool
}

// Header is embedded in every concrete packet variant.
type Header struct {
	Version int // 2 bits
	Token   int // 3 bits, cycles over 0..=7
	Code    Code
}

// AddressKind distinguishes a static address from a logic address within
// a path-stack entry.
type AddressKind int

const (
	Static AddressKind = iota
	Logic
)

func (k AddressKind) String() string {
	if k == Static {
		return "static"
	}
	return "logic"
}

// PathEntry is a single (addressing-kind, address) pair pushed onto a
// Request's path stack.
type PathEntry struct {
	Kind    AddressKind
	Address int
}

// Packet is the common interface every variant satisfies: a header, a
// computed frame count (§9's "base cost plus variant-specific
// additions"), and per-frame damage accounting that feeds
// FrameErrorAverage.
type Packet interface {
	Head() *Header
	FrameCount() int
	DamageBit(frameIndex int) error
	FrameErrorAverage() float64
	// Unreadable reports whether any single frame has accumulated two
	// or more bit errors (SECDED semantics: a frame with >=2 errors
	// cannot be corrected).
	Unreadable() bool
}

// frameDamage is embedded in every concrete variant; it owns the
// per-frame bit-error counters shared by all packet kinds.
type frameDamage struct {
	errors map[int]int
}

func (d *frameDamage) damageBit(frameIndex, frameCount int) error {
	if frameIndex < 0 || frameIndex >= frameCount {
		return errors.Wrapf(ErrFrameIndexOutOfRange, "index %d, frame count %d", frameIndex, frameCount)
	}
	if d.errors == nil {
		d.errors = make(map[int]int)
	}
	d.errors[frameIndex]++
	return nil
}

// frameErrorAverage computes (sum of min(errors,2)) / frameCount, the
// noise estimate in [0, 2] that a frame with >=2 damaged bits is
// unreadable under SECDED semantics.
func (d *frameDamage) frameErrorAverage(frameCount int) float64 {
	if frameCount == 0 {
		return 0
	}
	var sum int
	for _, n := range d.errors {
		if n > 2 {
			n = 2
		}
		sum += n
	}
	return float64(sum) / float64(frameCount)
}

// unreadable reports whether any frame accumulated two or more errors.
func (d *frameDamage) unreadable() bool {
	for _, n := range d.errors {
		if n >= 2 {
			return true
		}
	}
	return false
}

// HelloRequest is an out-of-scope placeholder for node-init discovery
// (spec.md §1, §3); it is never dispatched by the protocol layer in this
// core.
type HelloRequest struct {
	Header
	frameDamage
	MACAddress int
}

func (p *HelloRequest) Head() *Header { return &p.Header }
func (p *HelloRequest) FrameCount() int { return 2 }
func (p *HelloRequest) DamageBit(i int) error { return p.damageBit(i, p.FrameCount()) }
func (p *HelloRequest) FrameErrorAverage() float64 { return p.frameErrorAverage(p.FrameCount()) }
func (p *HelloRequest) Unreadable() bool { return p.unreadable() }

// HelloResponse is the node-init counterpart to HelloRequest; also an
// out-of-scope placeholder.
type HelloResponse struct {
	Header
	frameDamage
	NewStaticAddr int
}

func (p *HelloResponse) Head() *Header { return &p.Header }
func (p *HelloResponse) FrameCount() int { return 2 }
func (p *HelloResponse) DamageBit(i int) error { return p.damageBit(i, p.FrameCount()) }
func (p *HelloResponse) FrameErrorAverage() float64 { return p.frameErrorAverage(p.FrameCount()) }
func (p *HelloResponse) Unreadable() bool { return p.unreadable() }

// Ack carries a token (matched against the packet it acknowledges) and
// the next_hop static address of the node sending the ack.
type Ack struct {
	Header
	frameDamage
	NextHop int
}

func (p *Ack) Head() *Header { return &p.Header }
func (p *Ack) FrameCount() int { return 5 }
func (p *Ack) DamageBit(i int) error { return p.damageBit(i, p.FrameCount()) }
func (p *Ack) FrameErrorAverage() float64 { return p.frameErrorAverage(p.FrameCount()) }
func (p *Ack) Unreadable() bool { return p.unreadable() }

// NewAddressEntry is one row of a Request's new-logic-address table:
// static address -> newly assigned logic address.
type NewAddressEntry struct {
	StaticAddress  int
	NewLogicAddress int
}

// Request carries a payload hop-by-hop toward an endpoint, along with a
// path stack describing the remaining route and a table of logic
// address reassignments for slaves to adopt on receipt.
type Request struct {
	Header
	frameDamage

	SourceStatic int
	SourceLogic  int
	NextHop      int
	Destination  int

	Payload       []byte
	PathStack     []PathEntry
	NewAddresses  []NewAddressEntry
}

// FrameCount is the base cost (5 frames: header + source-static +
// source-logic + next-hop + destination) plus one frame per path-stack
// entry, two frames per new-address table row, and the payload's packed
// frame cost: 3 frames per full 4 bytes, plus one frame per leftover
// byte.
func (p *Request) FrameCount() int {
	frames := 5
	frames += len(p.PathStack)
	frames += len(p.NewAddresses) * 2

	quot, rem := len(p.Payload)/4, len(p.Payload)%4
	frames += quot*3 + rem

	return frames
}

func (p *Request) Head() *Header { return &p.Header }
func (p *Request) DamageBit(i int) error { return p.damageBit(i, p.FrameCount()) }
func (p *Request) FrameErrorAverage() float64 { return p.frameErrorAverage(p.FrameCount()) }
func (p *Request) Unreadable() bool { return p.unreadable() }

// NoiseRow is one hop's noise table, indexed by the static address that
// observed it.
type NoiseRow map[int]int

// Response carries a payload back along the reverse path, accumulating
// one NoiseRow per hop.
type Response struct {
	Header
	frameDamage

	SourceStatic int
	SourceLogic  int
	NextHop      int

	Payload     []byte
	NoiseTables []NoiseRow
}

// FrameCount mirrors Request's base cost of 5 frames, plus two frames
// per noise-table row (whatever the number of entries in the row) and
// the payload's packed frame cost.
func (p *Response) FrameCount() int {
	frames := 5
	frames += len(p.NoiseTables) * 2

	quot, rem := len(p.Payload)/4, len(p.Payload)%4
	frames += quot*3 + rem

	return frames
}

func (p *Response) Head() *Header { return &p.Header }
func (p *Response) DamageBit(i int) error { return p.damageBit(i, p.FrameCount()) }
func (p *Response) FrameErrorAverage() float64 { return p.frameErrorAverage(p.FrameCount()) }
func (p *Response) Unreadable() bool { return p.unreadable() }
