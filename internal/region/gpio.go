package region

// GPIO is the narrow general-purpose I/O back-channel exposed through
// cartridge ROM addresses 0xC4-0xCA. It is allocated on demand - the first
// store into that window creates it - and records the last halfword
// written to each of the three registers (data, direction, control). No
// RTC/solar-sensor protocol is layered on top; that belongs to a
// peripheral outside this core.
type GPIO struct {
	Data      uint16
	Direction uint16
	Control   uint16
}

const (
	gpioDataOff   = 0x0C4
	gpioDirOff    = 0x0C6
	gpioCtrlOff   = 0x0C8
	gpioWindowEnd = 0x0CA // exclusive
)

func inGPIOWindow(offset uint32) bool {
	return offset >= gpioDataOff && offset < gpioWindowEnd
}

// IsGPIOOffset reports whether a ROM-relative offset falls in the GPIO
// back-channel window, for callers (the bus) that want to log a warning on
// writes outside it without reaching into ROM's internals.
func IsGPIOOffset(offset uint32) bool { return inGPIOWindow(offset) }

// write16 forwards a 16-bit store into the GPIO window to the appropriate
// register. offset is relative to the start of the ROM region.
func (g *GPIO) write16(offset uint32, v uint16) {
	switch offset {
	case gpioDataOff:
		g.Data = v
	case gpioDirOff:
		g.Direction = v
	case gpioCtrlOff:
		g.Control = v
	}
}
