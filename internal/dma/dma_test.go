package dma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gbacore/internal/waitstate"
)

// fakeBus is a minimal BusAccess: two plain RAM windows (so the fast
// path is exercised) and a byte-addressed fallback for everything else.
type fakeBus struct {
	ewram, vram    []byte
	io             map[uint32]uint8
	openBus        map[uint32]bool
	invalidated    []uint32
	eepromNotified []int
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		ewram:   make([]byte, 0x1000),
		vram:    make([]byte, 0x1000),
		io:      map[uint32]uint8{},
		openBus: map[uint32]bool{},
	}
}

func (b *fakeBus) PlainRAMView(addr uint32) ([]byte, uint32, bool) {
	switch {
	case addr >= 0x1000 && addr < 0x2000:
		return b.ewram, 0xFFF, true
	case addr >= 0x3000 && addr < 0x4000:
		return b.vram, 0xFFF, true
	}
	return nil, 0, false
}

func (b *fakeBus) IsOpenBus(addr uint32) bool { return b.openBus[addr] }
func (b *fakeBus) RegionSlot(addr uint32) uint32 {
	return (addr >> 24) & 0xFF
}
func (b *fakeBus) InvalidatePage(addr uint32) { b.invalidated = append(b.invalidated, addr) }
func (b *fakeBus) NotifyEEPROMTransferLength(addr uint32, bits int) {
	b.eepromNotified = append(b.eepromNotified, bits)
}

// byteAt/setByteAt route through the same plain windows PlainRAMView
// exposes, so a generic Read/Write and a fast-path PlainRAMView access
// observe the same backing byte - otherwise a transfer that mixes a
// plain and a non-plain endpoint would silently write to the wrong place.
func (b *fakeBus) byteAt(addr uint32) uint8 {
	if buf, mask, ok := b.PlainRAMView(addr); ok {
		return buf[addr&mask]
	}
	return b.io[addr]
}
func (b *fakeBus) setByteAt(addr uint32, v uint8) {
	if buf, mask, ok := b.PlainRAMView(addr); ok {
		buf[addr&mask] = v
		return
	}
	b.io[addr] = v
}

func (b *fakeBus) Read8(addr uint32) uint8     { return b.byteAt(addr) }
func (b *fakeBus) Write8(addr uint32, v uint8) { b.setByteAt(addr, v) }
func (b *fakeBus) Read16(addr uint32) uint16 {
	return uint16(b.byteAt(addr)) | uint16(b.byteAt(addr+1))<<8
}
func (b *fakeBus) Write16(addr uint32, v uint16) {
	b.setByteAt(addr, uint8(v))
	b.setByteAt(addr+1, uint8(v>>8))
}
func (b *fakeBus) Read32(addr uint32) uint32 {
	return uint32(b.Read16(addr)) | uint32(b.Read16(addr+2))<<16
}
func (b *fakeBus) Write32(addr uint32, v uint32) {
	b.Write16(addr, uint16(v))
	b.Write16(addr+2, uint16(v>>16))
}

type fakeCycles struct{ n uint64 }

func (f *fakeCycles) Cycles() uint64 { return f.n }

type fakeCollab struct{ scheduled []int }

func (f *fakeCollab) ScheduleFIFODMA(ch int) { f.scheduled = append(f.scheduled, ch) }

type fakeLog struct{ warns []string }

func (f *fakeLog) Warnf(format string, args ...any) { f.warns = append(f.warns, format) }

func newTestController() (*Controller, *fakeBus, *fakeLog, *fakeCollab) {
	bus := newFakeBus()
	log := &fakeLog{}
	collab := &fakeCollab{}
	c := NewController(bus, &fakeCycles{n: 100}, waitstate.NewController(), collab, log, nil)
	return c, bus, log, collab
}

func controlWord(dst, src AddrControl, repeat bool, width32 bool, timing Timing, irq bool, enable bool) uint16 {
	var w uint16
	w |= uint16(dst&0x3) << 5
	w |= uint16(src&0x3) << 7
	if repeat {
		w |= 1 << 9
	}
	if width32 {
		w |= 1 << 10
	}
	w |= uint16(timing&0x3) << 12
	if irq {
		w |= 1 << 14
	}
	if enable {
		w |= 1 << 15
	}
	return w
}

func TestFastPathRAMToRAMCopy(t *testing.T) {
	c, bus, _, _ := newTestController()
	bus.ewram[0] = 0x11
	bus.ewram[1] = 0x22
	bus.ewram[2] = 0x33
	bus.ewram[3] = 0x44

	c.SetSourceAddress(0, 0x1000)
	c.SetDestAddress(0, 0x3000)
	c.SetWordCount(0, 1)
	c.WriteControl(0, controlWord(ControlIncrement, ControlIncrement, false, true, TimingNow, false, true))

	assert.Equal(t, uint32(0x44332211), uint32(bus.vram[0])|uint32(bus.vram[1])<<8|uint32(bus.vram[2])<<16|uint32(bus.vram[3])<<24)
}

func TestTimingNowServicesImmediately(t *testing.T) {
	c, bus, _, _ := newTestController()
	bus.io[0x5000] = 0x99

	c.SetSourceAddress(0, 0x5000)
	c.SetDestAddress(0, 0x1000)
	c.SetWordCount(0, 1)
	c.WriteControl(0, controlWord(ControlIncrement, ControlIncrement, false, false, TimingNow, false, true))

	assert.Equal(t, uint8(0x99), bus.ewram[0])
	assert.False(t, c.Channel(0).Enable, "non-repeat channel disables itself after servicing")
}

func TestVBlankTimingDefersUntilRunVBlankDMAs(t *testing.T) {
	c, bus, _, _ := newTestController()
	bus.io[0x5000] = 0x55

	c.SetSourceAddress(1, 0x5000)
	c.SetDestAddress(1, 0x1000)
	c.SetWordCount(1, 1)
	c.WriteControl(1, controlWord(ControlIncrement, ControlIncrement, false, false, TimingVBlank, false, true))

	assert.Equal(t, uint8(0), bus.ewram[0], "vblank-timed channel must not run until RunVBlankDMAs")

	c.RunVBlankDMAs()
	assert.Equal(t, uint8(0x55), bus.ewram[0])
}

func TestRepeatChannelReloadsDestOnIncrementReload(t *testing.T) {
	c, bus, _, _ := newTestController()
	bus.io[0x5000] = 0x01

	c.SetSourceAddress(1, 0x5000)
	c.SetDestAddress(1, 0x1000)
	c.SetWordCount(1, 1)
	c.WriteControl(1, controlWord(ControlIncrementReload, ControlFixed, true, false, TimingVBlank, false, true))

	c.RunVBlankDMAs()
	ch := c.Channel(1)
	assert.True(t, ch.Enable, "repeat channel stays enabled")
	assert.Equal(t, ch.Dest, ch.NextDest, "increment-reload resets NextDest to the programmed Dest on repeat")
	assert.Equal(t, ch.Count, ch.NextCount)
}

func TestNonRepeatChannelDisablesAfterService(t *testing.T) {
	c, _, _, _ := newTestController()
	c.SetSourceAddress(2, 0x5000)
	c.SetDestAddress(2, 0x1000)
	c.SetWordCount(2, 1)
	c.WriteControl(2, controlWord(ControlIncrement, ControlIncrement, false, false, TimingNow, false, true))
	assert.False(t, c.Channel(2).Enable)
}

func TestNonRepeatChannelZeroesNextCountAfterService(t *testing.T) {
	c, _, _, _ := newTestController()
	c.SetSourceAddress(2, 0x1000)
	c.SetDestAddress(2, 0x3000)
	c.SetWordCount(2, 4)
	c.WriteControl(2, controlWord(ControlIncrement, ControlIncrement, false, false, TimingNow, false, true))
	assert.Equal(t, uint32(0), c.Channel(2).NextCount, "a completed non-repeat transfer leaves no shadow count behind")
}

func TestIRQSchedulingComputesNextIRQCycle(t *testing.T) {
	c, _, _, _ := newTestController()
	c.SetSourceAddress(0, 0x5000)
	c.SetDestAddress(0, 0x1000)
	c.SetWordCount(0, 1)
	c.WriteControl(0, controlWord(ControlIncrement, ControlIncrement, false, false, TimingNow, true, true))

	ch := c.Channel(0)
	require.True(t, ch.NextIRQValid)
	assert.GreaterOrEqual(t, ch.NextIRQ, uint64(100))
}

func TestOpenBusSourceOrDestSkipsTransferAndWarns(t *testing.T) {
	c, bus, log, _ := newTestController()
	bus.openBus[0x9000] = true

	c.SetSourceAddress(0, 0x9000)
	c.SetDestAddress(0, 0x1000)
	c.SetWordCount(0, 1)
	c.WriteControl(0, controlWord(ControlIncrement, ControlIncrement, false, false, TimingNow, false, true))

	assert.Equal(t, uint8(0), bus.ewram[0], "transfer into/from open bus must not execute")
	assert.NotEmpty(t, log.warns)
}

func TestChannel3NotifiesEEPROMTransferLength(t *testing.T) {
	c, bus, _, _ := newTestController()
	c.SetSourceAddress(3, 0x1000)
	c.SetDestAddress(3, 0x5000)
	c.SetWordCount(3, 4)
	c.WriteControl(3, controlWord(ControlIncrement, ControlIncrement, false, false, TimingNow, false, true))

	require.Len(t, bus.eepromNotified, 1)
	assert.Equal(t, 4, bus.eepromNotified[0])
}

func TestCustomTimingDispatchesToAudioFIFOForChannels1And2(t *testing.T) {
	c, _, _, collab := newTestController()
	c.SetSourceAddress(1, 0x5000)
	c.SetDestAddress(1, 0x1000)
	c.SetWordCount(1, 1)
	c.WriteControl(1, controlWord(ControlIncrement, ControlIncrement, false, false, TimingCustom, false, true))

	assert.Equal(t, []int{1}, collab.scheduled)

	c.SetSourceAddress(2, 0x5000)
	c.SetDestAddress(2, 0x1000)
	c.SetWordCount(2, 1)
	c.WriteControl(2, controlWord(ControlIncrement, ControlIncrement, false, false, TimingCustom, false, true))

	assert.Equal(t, []int{1, 2}, collab.scheduled)
}

func TestCustomTimingWarnsForChannels0And3(t *testing.T) {
	c, _, log, _ := newTestController()
	c.SetSourceAddress(0, 0x5000)
	c.SetDestAddress(0, 0x1000)
	c.SetWordCount(0, 1)
	c.WriteControl(0, controlWord(ControlIncrement, ControlIncrement, false, false, TimingCustom, false, true))
	assert.NotEmpty(t, log.warns)

	warnsAfterCh0 := len(log.warns)
	c.SetSourceAddress(3, 0x5000)
	c.SetDestAddress(3, 0x1000)
	c.SetWordCount(3, 1)
	c.WriteControl(3, controlWord(ControlIncrement, ControlIncrement, false, false, TimingCustom, false, true))
	assert.Greater(t, len(log.warns), warnsAfterCh0)
}

func TestWordCountZeroUsesMaxCountForChannel(t *testing.T) {
	c, _, _, _ := newTestController()
	c.SetWordCount(3, 0)
	assert.Equal(t, uint32(0x10000), c.Channel(3).Count)
	c.SetWordCount(0, 0)
	assert.Equal(t, uint32(0x4000), c.Channel(0).Count)
}

func TestInvalidatePageCalledAcrossDestRange(t *testing.T) {
	c, bus, _, _ := newTestController()
	c.SetSourceAddress(0, 0x1000)
	c.SetDestAddress(0, 0x3000)
	c.SetWordCount(0, 3)
	c.WriteControl(0, controlWord(ControlIncrement, ControlIncrement, false, false, TimingNow, false, true))
	assert.Len(t, bus.invalidated, 3)
}
