// Package dma implements the four-channel GBA DMA engine: the
// programming surface the I/O collaborator calls on MMIO writes, the
// vblank/hblank/custom scheduling hooks the video and audio collaborators
// drive, and the transfer algorithm itself.
package dma

import "gbacore/internal/waitstate"

// AddrControl is the per-access address-stepping mode, shared by source
// and destination controls.
type AddrControl uint8

const (
	ControlIncrement AddrControl = iota
	ControlDecrement
	ControlFixed
	ControlIncrementReload
)

// addrOffset is the per-transfer address step, indexed by AddrControl.
var addrOffset = [4]int32{+1, -1, 0, +1}

// Timing is the event that unblocks a programmed channel.
type Timing uint8

const (
	TimingNow Timing = iota
	TimingVBlank
	TimingHBlank
	TimingCustom
)

const (
	srcDestMask = 0x0FFFFFFF // 28-bit mask shared by source and dest
)

// Channel is one of the four DMA channels' programmed and in-flight state.
type Channel struct {
	Enable  bool
	Repeat  bool
	Width   uint32 // 2 or 4
	DoIRQ   bool
	SrcCtrl AddrControl
	DstCtrl AddrControl
	Timing  Timing

	Source uint32
	Dest   uint32
	Count  uint32

	NextSource uint32
	NextDest   uint32
	NextCount  uint32

	NextIRQValid bool
	NextIRQ      uint64
}

func (c *Channel) maxCount(index int) uint32 {
	if index == 3 {
		return 0x10000
	}
	return 0x4000
}

// BusAccess is the narrow surface the DMA engine needs from the bus. It is
// defined here (not imported from the bus package) so the bus can depend
// on dma without creating an import cycle.
type BusAccess interface {
	Read8(addr uint32) uint8
	Write8(addr uint32, v uint8)
	Read16(addr uint32) uint16
	Write16(addr uint32, v uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, v uint32)

	InvalidatePage(addr uint32)

	// PlainRAMView returns the backing buffer and the region's address
	// mask for addr, when addr's region is a plain on-chip RAM block
	// (EWRAM/IWRAM/VRAM/OAM) eligible for the DMA fast path. ok is false
	// for ROM, backup memory, I/O and open-bus addresses.
	PlainRAMView(addr uint32) (buf []byte, mask uint32, ok bool)

	// IsOpenBus reports whether addr currently resolves to the open-bus
	// sentinel region (no cartridge/backing store installed there).
	IsOpenBus(addr uint32) bool

	// RegionSlot returns the top-byte slot index addr decodes to, for
	// wait-state lookups.
	RegionSlot(addr uint32) uint32

	// NotifyEEPROMTransferLength tells an EEPROM backup installed at addr
	// (if any) how many bits channel 3's current transaction carries, so
	// it can infer its address width from the very first transaction.
	// A no-op if addr doesn't resolve to an EEPROM backup.
	NotifyEEPROMTransferLength(addr uint32, bits int)
}

// CyclesSource exposes the CPU's monotonic cycle counter, used to compute
// a channel's scheduled IRQ cycle.
type CyclesSource interface {
	Cycles() uint64
}

// Collaborators are the peripheral hooks a custom-timing channel is
// dispatched to.
type Collaborators interface {
	ScheduleFIFODMA(channel int)
}

// Logger is the narrow logging surface the engine needs for WARN/STUB
// messages.
type Logger interface {
	Warnf(format string, args ...any)
}

// Controller owns the four DMA channels.
type Controller struct {
	channels [4]Channel

	bus      BusAccess
	cycles   CyclesSource
	waits    *waitstate.Controller
	collab   Collaborators
	log      Logger
	enableRW func(ch int, enable bool) // callback to clear the mapped control register's enable bit
}

func NewController(bus BusAccess, cycles CyclesSource, waits *waitstate.Controller, collab Collaborators, log Logger, enableRW func(ch int, enable bool)) *Controller {
	return &Controller{bus: bus, cycles: cycles, waits: waits, collab: collab, log: log, enableRW: enableRW}
}

// Channel returns a pointer to channel ch's state (0-3), for the interrupt
// collaborator to inspect NextIRQ and for tests.
func (c *Controller) Channel(ch int) *Channel { return &c.channels[ch] }

func (c *Controller) SetSourceAddress(ch int, word uint32) {
	c.channels[ch].Source = word & srcDestMask
}

func (c *Controller) SetDestAddress(ch int, word uint32) {
	c.channels[ch].Dest = word & srcDestMask
}

func (c *Controller) SetWordCount(ch int, half uint16) {
	count := uint32(half)
	if count == 0 {
		count = c.channels[ch].maxCount(ch)
	}
	c.channels[ch].Count = count
}

// WriteControl decodes a DMA control halfword. On the leading edge of the
// enable bit it snapshots the shadow fields and schedules the transfer;
// for TimingNow this synchronously services the channel before returning.
func (c *Controller) WriteControl(ch int, half uint16) {
	ch0 := &c.channels[ch]
	wasEnabled := ch0.Enable

	ch0.DstCtrl = AddrControl((half >> 5) & 0x3)
	ch0.SrcCtrl = AddrControl((half >> 7) & 0x3)
	ch0.Repeat = (half>>9)&0x1 != 0
	if (half>>10)&0x1 != 0 {
		ch0.Width = 4
	} else {
		ch0.Width = 2
	}
	ch0.Timing = Timing((half >> 12) & 0x3)
	ch0.DoIRQ = (half>>14)&0x1 != 0
	ch0.Enable = (half>>15)&0x1 != 0

	if ch0.Enable && !wasEnabled {
		ch0.NextSource = ch0.Source
		ch0.NextDest = ch0.Dest
		ch0.NextCount = ch0.Count
		c.scheduleDMA(ch)
	}
}

func (c *Controller) scheduleDMA(ch int) {
	ch0 := &c.channels[ch]
	switch ch0.Timing {
	case TimingNow:
		c.service(ch)
	case TimingVBlank, TimingHBlank:
		// Picked up by RunVBlankDMAs/RunHBlankDMAs when the video
		// collaborator raises the corresponding event.
	case TimingCustom:
		switch ch {
		case 1, 2:
			c.collab.ScheduleFIFODMA(ch)
		case 3:
			c.log.Warnf("dma: channel 3 video-capture custom timing is unimplemented, ignoring")
		case 0:
			c.log.Warnf("dma: channel 0 custom timing is invalid, ignoring")
		}
	}
}

// RunVBlankDMAs services every enabled channel programmed for vblank
// timing. Called by the video collaborator when it raises vblank.
func (c *Controller) RunVBlankDMAs() {
	c.runTimed(TimingVBlank)
}

// RunHBlankDMAs services every enabled channel programmed for hblank
// timing. Called by the video collaborator when it raises hblank.
func (c *Controller) RunHBlankDMAs() {
	c.runTimed(TimingHBlank)
}

func (c *Controller) runTimed(t Timing) {
	for ch := 0; ch < 4; ch++ {
		if c.channels[ch].Enable && c.channels[ch].Timing == t {
			c.service(ch)
		}
	}
}

// ServiceCustom performs one transfer for a custom-timed channel (1 or 2),
// called by the audio collaborator when its FIFO needs refilling.
func (c *Controller) ServiceCustom(ch int) {
	if c.channels[ch].Enable && c.channels[ch].Timing == TimingCustom {
		c.service(ch)
	}
}

// service runs the transfer algorithm for channel ch. A
// channel never services while disabled; this is enforced
// by every caller above checking Enable before calling service.
func (c *Controller) service(ch int) {
	s := &c.channels[ch]

	srcAbsent := c.bus.IsOpenBus(s.NextSource)
	dstAbsent := c.bus.IsOpenBus(s.NextDest)
	if srcAbsent || dstAbsent {
		c.log.Warnf("dma: channel %d transfer into open-bus region (src=%08X dst=%08X), skipping", ch, s.NextSource, s.NextDest)
		c.finishService(ch)
		return
	}

	width := s.Width
	srcStep := addrOffset[s.SrcCtrl] * int32(width)
	dstStep := addrOffset[s.DstCtrl] * int32(width)

	count := s.NextCount
	if ch == 3 {
		c.bus.NotifyEEPROMTransferLength(s.NextDest, int(count))
	}
	c.invalidateDestRange(s.NextDest, count, width, dstStep)

	c.transfer(s.NextSource, s.NextDest, count, width, srcStep, dstStep)

	s.NextSource = addStep(s.NextSource, srcStep, int32(count))
	s.NextDest = addStep(s.NextDest, dstStep, int32(count))
	s.NextCount = 0

	if s.DoIRQ {
		region := func(addr uint32) uint32 { return c.bus.RegionSlot(addr) }
		var nonseq, seq int
		if width == 4 {
			nonseq = c.waits.Wait32(region(s.NextSource)) + c.waits.Wait32(region(s.NextDest))
			seq = c.waits.WaitSeq32(region(s.NextSource)) + c.waits.WaitSeq32(region(s.NextDest))
		} else {
			nonseq = c.waits.Wait(region(s.NextSource)) + c.waits.Wait(region(s.NextDest))
			seq = c.waits.WaitSeq(region(s.NextSource)) + c.waits.WaitSeq(region(s.NextDest))
		}
		s.NextIRQ = c.cycles.Cycles() + 2 + uint64(nonseq) + uint64(count-1)*uint64(seq)
		s.NextIRQValid = true
	}

	c.finishService(ch)
}

func (c *Controller) finishService(ch int) {
	s := &c.channels[ch]
	if s.Repeat {
		s.NextCount = s.Count
		if s.DstCtrl == ControlIncrementReload {
			s.NextDest = s.Dest
		}
		// Remains enabled; vblank/hblank/custom timings reschedule on
		// the next matching event. Immediate-timing channels with
		// repeat set run again only after a control-register write
		// clears the enable bit and a later one sets it.
	} else {
		s.Enable = false
		if c.enableRW != nil {
			c.enableRW(ch, false)
		}
	}
}

func addStep(addr uint32, step int32, count int32) uint32 {
	return uint32(int64(addr) + int64(step)*int64(count))
}

func (c *Controller) invalidateDestRange(dest uint32, count uint32, width uint32, step int32) {
	addr := dest
	for i := uint32(0); i < count; i++ {
		c.bus.InvalidatePage(addr)
		addr = uint32(int64(addr) + int64(step))
	}
}

// transfer moves count elements of width bytes from src to dst, taking
// the fast path when the endpoints are plain RAM.
func (c *Controller) transfer(src, dst uint32, count, width uint32, srcStep, dstStep int32) {
	srcBuf, srcMask, srcPlain := c.bus.PlainRAMView(src)
	dstBuf, dstMask, dstPlain := c.bus.PlainRAMView(dst)

	s, d := src, dst
	for i := uint32(0); i < count; i++ {
		switch {
		case srcPlain && dstPlain:
			copyPlain(srcBuf, srcMask, s, dstBuf, dstMask, d, width)
		case srcPlain && !dstPlain:
			v := readPlain(srcBuf, srcMask, s, width)
			storeVia(c.bus, d, width, v)
		default:
			v := loadVia(c.bus, s, width)
			storeVia(c.bus, d, width, v)
		}
		s = uint32(int64(s) + int64(srcStep))
		d = uint32(int64(d) + int64(dstStep))
	}
}

func copyPlain(srcBuf []byte, srcMask, srcAddr uint32, dstBuf []byte, dstMask, dstAddr uint32, width uint32) {
	v := readPlain(srcBuf, srcMask, srcAddr, width)
	writePlain(dstBuf, dstMask, dstAddr, width, v)
}

func readPlain(buf []byte, mask, addr uint32, width uint32) uint32 {
	switch width {
	case 4:
		off := addr & (mask &^ 3)
		return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
	default:
		off := addr & (mask &^ 1)
		return uint32(buf[off]) | uint32(buf[off+1])<<8
	}
}

func writePlain(buf []byte, mask, addr uint32, width uint32, v uint32) {
	switch width {
	case 4:
		off := addr & (mask &^ 3)
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	default:
		off := addr & (mask &^ 1)
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
	}
}

func loadVia(bus BusAccess, addr uint32, width uint32) uint32 {
	if width == 4 {
		return bus.Read32(addr)
	}
	return uint32(bus.Read16(addr))
}

func storeVia(bus BusAccess, addr uint32, width uint32, v uint32) {
	if width == 4 {
		bus.Write32(addr, v)
	} else {
		bus.Write16(addr, uint16(v))
	}
}
