// Package iomap implements the memory-mapped I/O register window (bus slot
// 0x04). Most GBA registers belong to peripheral collaborators (video,
// audio, timers, keypad) outside this core's scope; this block stores their
// raw bytes for read-back and dispatches the two side effects this core
// owns: WAITCNT reprogramming the wait-state tables, and DMA channel
// programming. Grounded on the teacher's internal/io.IORegs, generalized
// from a flat byte array into a region.Region with register-write dispatch.
package iomap

import (
	"encoding/binary"

	"gbacore/internal/dma"
	"gbacore/internal/region"
	"gbacore/internal/waitstate"
)

const regsSize = 0x400

const waitcntOffset = 0x204

// channelRegs holds one DMA channel's register byte offsets within the I/O
// block, per the real GBA memory map.
type channelRegs struct {
	sad, dad, cntL, cntH int
}

var dmaRegs = [4]channelRegs{
	{0xB0, 0xB4, 0xB8, 0xBA},
	{0xBC, 0xC0, 0xC4, 0xC6},
	{0xC8, 0xCC, 0xD0, 0xD2},
	{0xD4, 0xD8, 0xDC, 0xDE},
}

// Logger is the narrow logging surface for unhandled-register warnings.
type Logger interface {
	Warnf(format string, args ...any)
}

// Block is the I/O register window. DMA wiring is installed after
// construction via SetDMA, since the dma.Controller itself needs a handle
// back to the bus that owns this block.
type Block struct {
	regs  [regsSize]byte
	waits *waitstate.Controller
	dma   *dma.Controller
	log   Logger
}

func NewBlock(waits *waitstate.Controller, log Logger) *Block {
	return &Block{waits: waits, log: log}
}

// SetDMA installs the DMA controller this block dispatches channel-register
// writes to. Must be called before any DMA register is written.
func (b *Block) SetDMA(ctrl *dma.Controller) { b.dma = ctrl }

// SetChannelEnable clears (or sets) channel ch's enable bit in its mapped
// CNT_H register. Passed to dma.NewController as its enableRW callback so a
// completed non-repeating transfer's register state matches the cleared
// Channel.Enable flag.
func (b *Block) SetChannelEnable(ch int, enable bool) {
	off := dmaRegs[ch].cntH
	cur := binary.LittleEndian.Uint16(b.regs[off:])
	if enable {
		cur |= 1 << 15
	} else {
		cur &^= 1 << 15
	}
	binary.LittleEndian.PutUint16(b.regs[off:], cur)
}

func (b *Block) LoadU8(addr uint32) uint32 {
	off := addr & (regsSize - 1)
	return uint32(b.regs[off])
}

func (b *Block) Load8(addr uint32) int32 { return int32(int8(b.LoadU8(addr))) }

func (b *Block) LoadU16(addr uint32) uint32 {
	off := addr & (regsSize - 1) &^ 1
	return uint32(binary.LittleEndian.Uint16(b.regs[off:]))
}

func (b *Block) Load16(addr uint32) int32 { return int32(int16(b.LoadU16(addr))) }

func (b *Block) Load32(addr uint32) uint32 {
	off := addr & (regsSize - 1) &^ 3
	return binary.LittleEndian.Uint32(b.regs[off:])
}

func (b *Block) Store8(addr uint32, v uint8) {
	off := int(addr & (regsSize - 1))
	b.regs[off] = v
	b.dispatch(off)
}

func (b *Block) Store16(addr uint32, v uint16) {
	off := int(addr & (regsSize - 1) &^ 1)
	binary.LittleEndian.PutUint16(b.regs[off:], v)
	b.dispatch(off)
	b.dispatch(off + 1)
}

func (b *Block) Store32(addr uint32, v uint32) {
	off := int(addr & (regsSize - 1) &^ 3)
	binary.LittleEndian.PutUint32(b.regs[off:], v)
	for i := 0; i < 4; i++ {
		b.dispatch(off + i)
	}
}

// InvalidatePage is a no-op: the I/O window carries no instruction cache.
func (b *Block) InvalidatePage(addr uint32) {}

func (b *Block) ReplaceData(buf []byte, offset int) { copy(b.regs[offset:], buf) }

func (b *Block) AccessPage(addr uint32) (*region.Page, error) {
	return nil, region.ErrICacheUnavailable
}

// Raw exposes the register bytes for the snapshot serializer.
func (b *Block) Raw() []byte { return b.regs[:] }

func (b *Block) dispatch(off int) {
	if off == waitcntOffset || off == waitcntOffset+1 {
		b.waits.AdjustTimings(binary.LittleEndian.Uint16(b.regs[waitcntOffset:]))
		return
	}
	if b.dma == nil {
		return
	}
	for ch, r := range dmaRegs {
		switch {
		case off >= r.sad && off < r.sad+4:
			b.dma.SetSourceAddress(ch, binary.LittleEndian.Uint32(b.regs[r.sad:]))
		case off >= r.dad && off < r.dad+4:
			b.dma.SetDestAddress(ch, binary.LittleEndian.Uint32(b.regs[r.dad:]))
		case off >= r.cntL && off < r.cntL+2:
			b.dma.SetWordCount(ch, binary.LittleEndian.Uint16(b.regs[r.cntL:]))
		case off == r.cntH || off == r.cntH+1:
			b.dma.WriteControl(ch, binary.LittleEndian.Uint16(b.regs[r.cntH:]))
		}
	}
}
