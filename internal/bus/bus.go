// Package bus implements the address decoder: it routes every
// CPU access by the top byte of the 32-bit address to one of the sixteen
// low region slots (the unused slots 0x01 and 0x0F, and the other 240
// top-byte values, default to the open-bus sentinel), applies the per-width offset mask, and triggers
// instruction-cache invalidation after stores. Grounded on the teacher's
// internal/bus.Bus range-switch dispatcher, generalized from an if/else
// address-range ladder into a 256-entry region.Region slot table.
package bus

import (
	"gbacore/internal/backup"
	"gbacore/internal/cartridge"
	"gbacore/internal/dma"
	"gbacore/internal/iomap"
	"gbacore/internal/region"
	"gbacore/internal/waitstate"
)

// Real GBA on-chip/video memory sizes. All but VRAM are powers of two;
// VRAM's 96 KiB gives region.newMasks a mask of 0x17FFF, so offsets
// 0x18000-0x1FFFF fold onto 0x10000-0x17FFF.
const (
	ewramSize   = 256 * 1024
	iwramSize   = 32 * 1024
	paletteSize = 1 * 1024
	vramSize    = 96 * 1024
	oamSize     = 1 * 1024
)

// Page bits: "RAM block: 9; on-chip RAM: 7". EWRAM is the
// larger "on-board" RAM block bus slot 0x02; IWRAM is the smaller on-chip
// block at slot 0x03. Palette/VRAM/OAM share the RAM-block tuning even
// though the CPU never executes code from them, since they're built on the
// same RAM region kind.
const (
	onChipPageBits = 7
	ramBlockBits   = 9
)

const (
	SlotBIOS    = 0x00
	SlotEWRAM   = 0x02
	SlotIWRAM   = 0x03
	SlotIO      = 0x04
	SlotPalette = 0x05
	SlotVRAM    = 0x06
	SlotOAM     = 0x07
	SlotCart0A  = 0x08
	SlotCart0B  = 0x09
	SlotCart1A  = 0x0A
	SlotCart1B  = 0x0B
	SlotCart2A  = 0x0C
	SlotCart2B  = 0x0D
	SlotBackup  = 0x0E
)

// loadMask/store16Mask/store32Mask strip the slot byte down to a 25-bit
// offset, one bit wider than a single 16 MiB slot: cart window pairs
// (0x08/0x09, 0x0A/0x0B, 0x0C/0x0D) differ only in that bit, so keeping it
// is what lets the ROM region see a full 32 MiB offset instead of slot 9
// mirroring slot 8. Every other region re-masks to its own size
// internally, so the extra bit is harmless for them.
const (
	loadMask    = 0x01FFFFFF
	store16Mask = 0x01FFFFFE
	store32Mask = 0x01FFFFFC
)

// CPUCollaborator is the narrow capability the bus needs from the CPU: a
// cycle counter for DMA IRQ scheduling and the prefetch state for the
// open-bus region.
type CPUCollaborator interface {
	region.PrefetchSource
	dma.CyclesSource
}

// Logger is the narrow logging surface used for WARN-level guest-visible
// error paths.
type Logger interface {
	Warnf(format string, args ...any)
}

// Controller is the address decoder. It owns every memory region directly
// and the two collaborators (wait-state table, DMA engine). Reads and
// writes do not charge wait states themselves; the CPU looks up the
// vectors through Waits and RegionSlot.
type Controller struct {
	slots [256]region.Region

	bios    *region.BIOS
	ewram   *region.RAM
	iwram   *region.RAM
	palette *region.RAM
	vram    *region.RAM
	oam     *region.RAM
	openBus *region.OpenBus
	io      *iomap.Block

	rom    *region.ROM
	backup backup.Backup

	waits *waitstate.Controller
	dma   *dma.Controller
	cpu   CPUCollaborator
	log   Logger
}

// New builds a bus with every on-chip region installed and every
// unpopulated slot defaulted to open-bus. The cartridge is installed
// separately via InstallCartridge once a ROM has been loaded.
func New(biosData []byte, cpu CPUCollaborator, collab dma.Collaborators, log Logger) *Controller {
	c := &Controller{cpu: cpu, log: log}

	c.waits = waitstate.NewController()
	c.io = iomap.NewBlock(c.waits, log)
	c.dma = dma.NewController(c, cpu, c.waits, collab, log, c.io.SetChannelEnable)
	c.io.SetDMA(c.dma)

	c.bios = region.NewBIOS(biosData)
	c.ewram = region.NewRAM(ewramSize, ramBlockBits)
	c.iwram = region.NewRAM(iwramSize, onChipPageBits)
	c.palette = region.NewRAM(paletteSize, ramBlockBits)
	c.vram = region.NewRAM(vramSize, ramBlockBits)
	c.oam = region.NewRAM(oamSize, ramBlockBits)
	c.openBus = region.NewOpenBus(cpu)

	for i := range c.slots {
		c.slots[i] = c.openBus
	}
	c.slots[SlotBIOS] = c.bios
	c.slots[SlotEWRAM] = c.ewram
	c.slots[SlotIWRAM] = c.iwram
	c.slots[SlotIO] = c.io
	c.slots[SlotPalette] = c.palette
	c.slots[SlotVRAM] = c.vram
	c.slots[SlotOAM] = c.oam

	return c
}

// InstallCartridge wires a loaded cartridge's ROM into all three 32 MiB
// cart windows and its inferred backup engine into the slot it belongs in:
// the SRAM slot (0x0E) for SRAM/Flash, or the high half of
// cart window 2 (0x0D) for EEPROM.
func (c *Controller) InstallCartridge(cart *cartridge.Cartridge) backup.Backup {
	c.rom = region.NewROM(cart.Data)
	c.slots[SlotCart0A] = c.rom
	c.slots[SlotCart0B] = c.rom
	c.slots[SlotCart1A] = c.rom
	c.slots[SlotCart1B] = c.rom
	c.slots[SlotCart2A] = c.rom

	c.backup = cart.NewBackup()
	backupRegion := region.NewBackupRegion(c.backup)

	if cart.Save == cartridge.SaveEEPROM {
		c.slots[SlotCart2B] = backupRegion
	} else {
		c.slots[SlotCart2B] = c.rom
		c.slots[SlotBackup] = backupRegion
	}

	return c.backup
}

func (c *Controller) regionOf(addr uint32) region.Region {
	return c.slots[(addr>>24)&0xFF]
}

// Read8/Read16/Read32 return zero-extended values; CPU code wanting
// sign-extended byte/halfword loads uses ReadSigned8/ReadSigned16.
func (c *Controller) Read8(addr uint32) uint8 {
	return uint8(c.regionOf(addr).LoadU8(addr & loadMask))
}

func (c *Controller) Read16(addr uint32) uint16 {
	return uint16(c.regionOf(addr).LoadU16(addr & loadMask))
}

func (c *Controller) Read32(addr uint32) uint32 {
	return c.regionOf(addr).Load32(addr & loadMask)
}

func (c *Controller) ReadSigned8(addr uint32) int32 {
	return c.regionOf(addr).Load8(addr & loadMask)
}

func (c *Controller) ReadSigned16(addr uint32) int32 {
	return c.regionOf(addr).Load16(addr & loadMask)
}

func (c *Controller) Write8(addr uint32, v uint8) {
	off := addr & loadMask
	r := c.regionOf(addr)
	c.warnIfReadOnly(r, off, addr)
	r.Store8(off, v)
	r.InvalidatePage(off)
}

func (c *Controller) Write16(addr uint32, v uint16) {
	off := addr & store16Mask
	r := c.regionOf(addr)
	c.warnIfReadOnly(r, off, addr)
	r.Store16(off, v)
	r.InvalidatePage(off)
}

func (c *Controller) Write32(addr uint32, v uint32) {
	off := addr & store32Mask
	r := c.regionOf(addr)
	c.warnIfReadOnly(r, off, addr)
	r.Store32(off, v)
	r.InvalidatePage(off)
	r.InvalidatePage(off + 2)
}

// warnIfReadOnly handles writes to read-only regions: a write outside
// ROM's GPIO window is silently ignored but WARN-logged.
func (c *Controller) warnIfReadOnly(r region.Region, off, addr uint32) {
	switch r.(type) {
	case *region.BIOS:
		c.log.Warnf("bus: write to read-only BIOS ignored (addr=%08X)", addr)
	case *region.ROM:
		if !region.IsGPIOOffset(off) {
			c.log.Warnf("bus: write to read-only ROM ignored (addr=%08X)", addr)
		}
	}
}

// InvalidatePage invalidates the instruction-cache page covering addr,
// independent of any store (used by the DMA engine to invalidate an entire
// destination range as it writes).
func (c *Controller) InvalidatePage(addr uint32) {
	c.regionOf(addr).InvalidatePage(addr & loadMask)
}

// AccessPage returns the decoded-instruction page covering addr, for the
// CPU's fetch path.
func (c *Controller) AccessPage(addr uint32) (*region.Page, error) {
	return c.regionOf(addr).AccessPage(addr & loadMask)
}

// PlainRAMView implements dma.BusAccess: addr resolves to the DMA fast path
// iff its region is a plain on-chip RAM block.
func (c *Controller) PlainRAMView(addr uint32) ([]byte, uint32, bool) {
	r, ok := c.regionOf(addr).(*region.RAM)
	if !ok {
		return nil, 0, false
	}
	return r.Raw(), r.Mask(), true
}

// IsOpenBus implements dma.BusAccess.
func (c *Controller) IsOpenBus(addr uint32) bool {
	_, ok := c.regionOf(addr).(*region.OpenBus)
	return ok
}

// RegionSlot implements dma.BusAccess and is also how the CPU looks up
// wait-state vectors for an access.
func (c *Controller) RegionSlot(addr uint32) uint32 {
	return (addr >> 24) & 0xFF
}

// NotifyEEPROMTransferLength implements dma.BusAccess: forwards the bit
// count to the EEPROM backup installed at addr, if any.
func (c *Controller) NotifyEEPROMTransferLength(addr uint32, bits int) {
	br, ok := c.regionOf(addr).(*region.BackupRegion)
	if !ok {
		return
	}
	ee, ok := br.Store().(*backup.EEPROM)
	if !ok {
		return
	}
	ee.NoteFirstTransferLength(bits)
}

func (c *Controller) Waits() *waitstate.Controller { return c.waits }
func (c *Controller) DMA() *dma.Controller         { return c.dma }
func (c *Controller) IO() *iomap.Block             { return c.io }

// Backup returns the currently installed cartridge backup engine, or nil
// if no cartridge has been installed. Used by the machine's frame-boundary
// save-flush hook.
func (c *Controller) Backup() backup.Backup { return c.backup }

// EWRAM/IWRAM/IORegisters expose the raw buffers the snapshot serializer
// freezes and thaws.
func (c *Controller) EWRAM() *region.RAM      { return c.ewram }
func (c *Controller) IWRAM() *region.RAM      { return c.iwram }
func (c *Controller) IORegisters() *iomap.Block { return c.io }
