// Package waitstate implements the per-region wait-state tables that the
// CPU charges on every bus access, and their reprogramming when the guest
// writes WAITCNT.
package waitstate

// Region slot indices the controller cares about - the rest of the 256
// possible top-byte slots never get touched by AdjustTimings and keep
// whatever was set at construction (zero, unless explicitly configured).
const (
	SlotEWRAM  = 0x02
	SlotCart0A = 0x08
	SlotCart0B = 0x09
	SlotCart1A = 0x0A
	SlotCart1B = 0x0B
	SlotCart2A = 0x0C
	SlotCart2B = 0x0D
	SlotSRAM   = 0x0E
)

// romWS holds non-sequential wait cycles indexed by the 2-bit WAITCNT
// field for a cart window (or the SRAM field, which shares the same
// encoding).
var romWS = [4]int{4, 3, 2, 8}

// romWSSeq holds sequential wait cycles indexed by [cart window][1-bit select].
var romWSSeq = [3][2]int{
	{2, 1},
	{4, 1},
	{8, 1},
}

// Controller holds the six 256-entry wait-state vectors and recomputes
// them whenever the guest writes WAITCNT.
type Controller struct {
	waitstates      [256]int
	waitstatesSeq   [256]int
	waitstates32    [256]int
	waitstatesSeq32 [256]int
	waitPrefetch    [256]int
	waitPrefetch32  [256]int

	prefetchEnabled bool
}

// NewController builds a controller with EWRAM's fixed 2-cycle penalty
// (not reprogrammable by WAITCNT on real hardware) and every cart/SRAM
// slot defaulted to WAITCNT's post-reset value of 0.
func NewController() *Controller {
	c := &Controller{}
	for _, v := range [...]*[256]int{&c.waitstates, &c.waitstatesSeq, &c.waitstates32, &c.waitstatesSeq32} {
		v[SlotEWRAM] = 2
	}
	c.AdjustTimings(0)
	return c
}

func (c *Controller) Wait(region uint32) int        { return 1 + c.waitstates[region&0xFF] }
func (c *Controller) WaitSeq(region uint32) int      { return 1 + c.waitstatesSeq[region&0xFF] }
func (c *Controller) Wait32(region uint32) int       { return 1 + c.waitstates32[region&0xFF] }
func (c *Controller) WaitSeq32(region uint32) int     { return 1 + c.waitstatesSeq32[region&0xFF] }
func (c *Controller) WaitPrefetch(region uint32) int  { return 1 + c.waitPrefetch[region&0xFF] }
func (c *Controller) WaitPrefetch32(region uint32) int {
	return 1 + c.waitPrefetch32[region&0xFF]
}

// WaitMul charges 1-4 cycles for an ARM multiply by the position of the
// most-significant byte that isn't just sign-fill: if bits 31-8 are all
// zero or all one, the multiplier "fits" in the low byte (1 cycle); each
// additional significant byte costs one more cycle, up to 4.
func (c *Controller) WaitMul(rs uint32) int {
	switch {
	case rs>>8 == 0 || rs>>8 == 0x00FFFFFF:
		return 1
	case rs>>16 == 0 || rs>>16 == 0x0000FFFF:
		return 2
	case rs>>24 == 0 || rs>>24 == 0x000000FF:
		return 3
	default:
		return 4
	}
}

// WaitMulti32 charges one non-sequential 32-bit access plus n-1 sequential
// 32-bit accesses, as used by LDM/STM-style multi-register transfers.
func (c *Controller) WaitMulti32(region uint32, n int) int {
	if n <= 0 {
		return 0
	}
	return c.Wait32(region) + (n-1)*c.WaitSeq32(region)
}

// AdjustTimings decodes a 16-bit WAITCNT write and fully recomputes the
// SRAM and three cart-window slots across all six vectors.
func (c *Controller) AdjustTimings(word uint16) {
	sram := int(word & 0x3)
	ws0NonSeq := int((word >> 2) & 0x3)
	ws0Seq := int((word >> 4) & 0x1)
	ws1NonSeq := int((word >> 5) & 0x3)
	ws1Seq := int((word >> 7) & 0x1)
	ws2NonSeq := int((word >> 8) & 0x3)
	ws2Seq := int((word >> 10) & 0x1)
	c.prefetchEnabled = (word>>14)&0x1 != 0

	c.setSRAM(romWS[sram])
	c.setCartWindow(SlotCart0A, SlotCart0B, romWS[ws0NonSeq], romWSSeq[0][ws0Seq])
	c.setCartWindow(SlotCart1A, SlotCart1B, romWS[ws1NonSeq], romWSSeq[1][ws1Seq])
	c.setCartWindow(SlotCart2A, SlotCart2B, romWS[ws2NonSeq], romWSSeq[2][ws2Seq])

	for _, slot := range [...]uint32{SlotCart0A, SlotCart0B, SlotCart1A, SlotCart1B, SlotCart2A, SlotCart2B} {
		if c.prefetchEnabled {
			c.waitPrefetch[slot] = 0
			c.waitPrefetch32[slot] = 0
		} else {
			c.waitPrefetch[slot] = c.waitstatesSeq[slot]
			c.waitPrefetch32[slot] = c.waitstatesSeq32[slot]
		}
	}
}

func (c *Controller) setSRAM(v int) {
	c.waitstates[SlotSRAM] = v
	c.waitstatesSeq[SlotSRAM] = v
	c.waitstates32[SlotSRAM] = v
	c.waitstatesSeq32[SlotSRAM] = v
}

// setCartWindow programs both top-byte slots that make up one 32 MiB cart
// window and derives the 32-bit variants: 32-bit
// non-sequential is nonseq+1+seq, 32-bit sequential is 2*seq+1.
func (c *Controller) setCartWindow(slotA, slotB uint32, nonSeq, seq int) {
	for _, slot := range [...]uint32{slotA, slotB} {
		c.waitstates[slot] = nonSeq
		c.waitstatesSeq[slot] = seq
		c.waitstates32[slot] = nonSeq + 1 + seq
		c.waitstatesSeq32[slot] = 2*seq + 1
	}
}

// PrefetchEnabled reports whether the most recent WAITCNT write set the
// prefetch buffer bit.
func (c *Controller) PrefetchEnabled() bool { return c.prefetchEnabled }
