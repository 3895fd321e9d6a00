package region

// RAM is a read/write backing store with an instruction page cache: on-chip
// EWRAM/IWRAM and the PPU's VRAM/palette/OAM buffers all use it, each sized
// and page-bit-tuned for its slot.
type RAM struct {
	buffer
	icache *PageCache
}

func NewRAM(size uint32, pageBits uint) *RAM {
	return &RAM{
		buffer: newBuffer(size),
		icache: NewPageCache(pageBits),
	}
}

func (r *RAM) Load8(addr uint32) int32    { return r.load8(addr) }
func (r *RAM) LoadU8(addr uint32) uint32  { return r.loadU8(addr) }
func (r *RAM) Load16(addr uint32) int32   { return r.load16(addr) }
func (r *RAM) LoadU16(addr uint32) uint32 { return r.loadU16(addr) }
func (r *RAM) Load32(addr uint32) uint32  { return r.load32(addr) }

func (r *RAM) Store8(addr uint32, v uint8)   { r.store8(addr, v) }
func (r *RAM) Store16(addr uint32, v uint16) { r.store16(addr, v) }
func (r *RAM) Store32(addr uint32, v uint32) { r.store32(addr, v) }

func (r *RAM) InvalidatePage(addr uint32) { r.icache.Invalidate(addr & r.mask) }

func (r *RAM) ReplaceData(buf []byte, offset int) { r.replaceData(buf, offset) }

func (r *RAM) AccessPage(addr uint32) (*Page, error) {
	return r.icache.Access(addr & r.mask), nil
}

// Raw exposes the backing buffer for the DMA engine's plain-RAM fast path.
func (r *RAM) Raw() []byte { return r.data }

// Mask returns the region's address mask, needed by the DMA fast path to
// align addresses into the buffer view.
func (r *RAM) Mask() uint32 { return r.mask }
