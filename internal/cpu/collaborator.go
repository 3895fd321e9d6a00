package cpu

// Collaborator is the minimal external CPU surface the core consumes:
// a monotonic cycle counter, the current PC, instruction
// width, and execution mode, invoked only for open-bus synthesis and DMA
// IRQ cycle scheduling. Full ARM/Thumb instruction execution is explicitly
// an external collaborator, not a component of this core - this wraps the
// PC/CPSR state in registers.go without driving a decode/execute loop
// over it.
type Collaborator struct {
	Regs   *Registers
	cycles uint64

	lastOpcode uint32
}

func NewCollaborator() *Collaborator {
	return &Collaborator{Regs: NewRegisters()}
}

// Cycles implements dma.CyclesSource.
func (c *Collaborator) Cycles() uint64 { return c.cycles }

// AddCycles advances the monotonic counter; driven by the wait-state
// charges levied on every bus access.
func (c *Collaborator) AddCycles(n int) { c.cycles += uint64(n) }

// NotePrefetch records the instruction word most recently fetched ahead of
// the current PC, so the open-bus region can synthesize a plausible read
// when an access lands on an unmapped slot.
func (c *Collaborator) NotePrefetch(word uint32) { c.lastOpcode = word }

// PrecedingOpcode implements region.PrefetchSource.
func (c *Collaborator) PrecedingOpcode() uint32 { return c.lastOpcode }

// ThumbMode implements region.PrefetchSource.
func (c *Collaborator) ThumbMode() bool { return c.Regs.IsThumb() }

// InstructionWidth returns the current fetch width: 2 bytes in Thumb
// state, 4 in ARM state.
func (c *Collaborator) InstructionWidth() uint32 {
	if c.Regs.IsThumb() {
		return 2
	}
	return 4
}
