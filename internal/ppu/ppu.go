// Package ppu provides a minimal video-timing collaborator: it tracks the
// scanline counter and fires the vblank callback that vblank-timed DMA
// (on any of channels 0-3) hangs off of. Pixel rendering is out of this core's
// scope (memory/bus/DMA/timing only) - it's adapted out of the teacher's
// ppu.PPU, which owned a software renderer alongside its scanline timer.
package ppu

const (
	ScreenWidth  = 240
	ScreenHeight = 160
	scanlines    = 228
	visibleLines = 160
	cyclesPerLine = 1232

	// CyclesPerFrame is the CPU cycle count a full 228-scanline frame
	// takes to tick through exactly once, crossing into vblank along the
	// way.
	CyclesPerFrame = cyclesPerLine * scanlines
)

// Timer drives VCount forward from CPU cycle ticks and invokes the
// registered vblank callback once per frame, the instant VCount crosses
// into the vblank region. It satisfies collab.Video.
type Timer struct {
	vcount   uint16
	carry    int
	onVBlank func()
}

func NewTimer() *Timer { return &Timer{} }

// VBlankCallback registers the function called once per frame as VCount
// transitions from the visible region into vblank.
func (t *Timer) VBlankCallback(fn func()) { t.onVBlank = fn }

// VCount implements collab.Video.
func (t *Timer) VCount() int { return int(t.vcount) }

// Tick advances the scanline counter by the given CPU cycle count.
func (t *Timer) Tick(cycles int) {
	t.carry += cycles
	for t.carry >= cyclesPerLine {
		t.carry -= cyclesPerLine
		prev := t.vcount
		t.vcount = (t.vcount + 1) % scanlines
		if prev < visibleLines && t.vcount == visibleLines && t.onVBlank != nil {
			t.onVBlank()
		}
	}
}

// InVBlank reports whether the current scanline is in the vblank region.
func (t *Timer) InVBlank() bool { return int(t.vcount) >= visibleLines }
