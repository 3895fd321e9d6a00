package region

// PrefetchSource is the narrow capability the open-bus region needs from
// the CPU collaborator: the region holds this capability instead of a
// pointer back to the whole CPU.
type PrefetchSource interface {
	// PrecedingOpcode returns the instruction word the CPU last fetched
	// immediately before the current PC, in whatever width its current
	// execution mode fetches (32 bits in ARM mode, 16 bits - held in the
	// low half - in Thumb mode).
	PrecedingOpcode() uint32
	// ThumbMode reports whether the CPU is currently executing Thumb
	// instructions.
	ThumbMode() bool
}

// OpenBus is the "bad memory" sentinel region installed in unmapped
// address slots. Reads are synthesized from the CPU's prefetch state;
// writes are discarded.
type OpenBus struct {
	src PrefetchSource
}

func NewOpenBus(src PrefetchSource) *OpenBus {
	return &OpenBus{src: src}
}

func (o *OpenBus) Load8(addr uint32) int32 {
	return signExtend8(uint8(o.src.PrecedingOpcode()))
}

func (o *OpenBus) LoadU8(addr uint32) uint32 {
	return o.src.PrecedingOpcode() & 0xFF
}

func (o *OpenBus) Load16(addr uint32) int32 {
	return signExtend16(uint16(o.src.PrecedingOpcode()))
}

func (o *OpenBus) LoadU16(addr uint32) uint32 {
	return o.src.PrecedingOpcode() & 0xFFFF
}

// Load32 duplicates the prefetched halfword into both halves of the
// result when the CPU is in Thumb state; in ARM state the
// prefetched word is already 32 bits wide and is returned directly.
func (o *OpenBus) Load32(addr uint32) uint32 {
	word := o.src.PrecedingOpcode()
	if o.src.ThumbMode() {
		h := word & 0xFFFF
		return h<<16 | h
	}
	return word
}

func (o *OpenBus) Store8(addr uint32, v uint8)   {}
func (o *OpenBus) Store16(addr uint32, v uint16) {}
func (o *OpenBus) Store32(addr uint32, v uint32) {}

func (o *OpenBus) InvalidatePage(addr uint32)     {}
func (o *OpenBus) ReplaceData(buf []byte, offset int) {}

func (o *OpenBus) AccessPage(addr uint32) (*Page, error) {
	return nil, ErrICacheUnavailable
}
