package cpu

// Registers holds the ARM7TDMI state this core's collaborator surface
// actually reaches: the program counter and the CPSR bits that decide
// instruction width (the T/Thumb bit). Full register-bank emulation - R0-R14
// banked per mode, SPSR, mode switching - belongs to the external ARM/Thumb
// interpreter this core treats as a collaborator, not to this struct; this
// wraps only what the bus/DMA/open-bus paths here consult.
type Registers struct {
	PC   uint32
	CPSR uint32
}

// NewRegisters creates Registers with the T bit clear (ARM state), matching
// the CPU's reset state before a host's interpreter takes over execution.
func NewRegisters() *Registers {
	return &Registers{}
}

// GetPC returns the program counter.
func (r *Registers) GetPC() uint32 { return r.PC }

// SetPC sets the program counter.
func (r *Registers) SetPC(pc uint32) { r.PC = pc }

// IsThumb returns true if the T flag in CPSR is set (Thumb state).
func (r *Registers) IsThumb() bool {
	return (r.CPSR>>5)&1 == 1
}

// SetThumbState sets or clears the T flag in CPSR.
func (r *Registers) SetThumbState(thumb bool) {
	if thumb {
		r.CPSR |= 1 << 5
	} else {
		r.CPSR &^= 1 << 5
	}
}
