package backup

const (
	Flash64K  = 64 * 1024
	Flash128K = 128 * 1024

	sectorSize = 4 * 1024

	unlockAddr1 = 0x5555
	unlockAddr2 = 0x2AAA
)

type flashState uint8

const (
	flashReady flashState = iota
	flashUnlocked1
	flashUnlocked2
	flashEraseUnlock1
	flashEraseUnlock2
	flashAwaitingEraseCommand
	flashByteWrite
	flashBankSelect
	flashIDMode
)

// Flash implements the commodity Atmel/Sanyo-style command protocol used
// by GBA Flash cartridges. The 128 KiB variant additionally
// supports a bank-select command that swaps which 64 KiB half store/load
// address low bits 0..0xFFFF index into.
type Flash struct {
	data    []byte
	size    int
	bank    int // 0 or 1, only meaningful for the 128K variant
	state   flashState
	pending bool

	manufacturerID uint8
	deviceID       uint8
}

func NewFlash(size int) *Flash {
	f := &Flash{data: make([]byte, size), size: size}
	if size == Flash128K {
		f.manufacturerID, f.deviceID = 0x62, 0x13 // Sanyo-style 128K ID
	} else {
		f.manufacturerID, f.deviceID = 0xBF, 0xD4 // SST-style 64K ID
	}
	return f
}

func (f *Flash) bankOffset() int {
	if f.size == Flash128K {
		return f.bank * (64 * 1024)
	}
	return 0
}

func (f *Flash) Load8(addr uint32) uint8 {
	if f.state == flashIDMode {
		switch addr & 0xFFFF {
		case 0:
			return f.manufacturerID
		case 1:
			return f.deviceID
		}
	}
	off := f.bankOffset() + int(addr&0xFFFF)
	if off >= len(f.data) {
		return 0xFF
	}
	return f.data[off]
}

func (f *Flash) Load16(addr uint32) uint16 {
	lo := f.Load8(addr)
	hi := f.Load8(addr + 1)
	return widen16(lo, hi)
}

func (f *Flash) Load32(addr uint32) uint32 {
	b0 := uint32(f.Load8(addr))
	b1 := uint32(f.Load8(addr + 1))
	b2 := uint32(f.Load8(addr + 2))
	b3 := uint32(f.Load8(addr + 3))
	return b0 | b1<<8 | b2<<16 | b3<<24
}

func (f *Flash) Store8(addr uint32, v uint8) {
	a := addr & 0xFFFF
	switch f.state {
	case flashReady:
		if a == unlockAddr1 && v == 0xAA {
			f.state = flashUnlocked1
		}
	case flashUnlocked1:
		if a == unlockAddr2 && v == 0x55 {
			f.state = flashUnlocked2
		} else {
			f.state = flashReady
		}
	case flashUnlocked2:
		if a != unlockAddr1 {
			f.state = flashReady
			break
		}
		switch v {
		case 0x80:
			f.state = flashEraseUnlock1
		case 0xA0:
			f.state = flashByteWrite
		case 0x90:
			f.state = flashIDMode
		case 0xF0:
			f.state = flashReady
		case 0xB0:
			if f.size == Flash128K {
				f.state = flashBankSelect
			} else {
				f.state = flashReady
			}
		default:
			f.state = flashReady
		}
	case flashEraseUnlock1:
		if a == unlockAddr1 && v == 0xAA {
			f.state = flashEraseUnlock2
		} else {
			f.state = flashReady
		}
	case flashEraseUnlock2:
		if a == unlockAddr2 && v == 0x55 {
			f.state = flashAwaitingEraseCommand
		} else {
			f.state = flashReady
		}
	case flashAwaitingEraseCommand:
		f.handleEraseCommand(addr, v)
	case flashByteWrite:
		off := f.bankOffset() + int(a)
		if off < len(f.data) {
			f.data[off] &= v // flash programming can only clear bits
			f.pending = true
		}
		f.state = flashReady
	case flashBankSelect:
		if a == 0x0000 {
			f.bank = int(v & 0x1)
		}
		f.state = flashReady
	case flashIDMode:
		if v == 0xF0 {
			f.state = flashReady
		}
	default:
		f.state = flashReady
	}
}

func (f *Flash) handleEraseCommand(addr uint32, v uint8) {
	switch v {
	case 0x10:
		for i := range f.data {
			f.data[i] = 0xFF
		}
		f.pending = true
	case 0x30:
		sector := (int(addr&0xFFFF) + f.bankOffset()) &^ (sectorSize - 1)
		end := sector + sectorSize
		if end > len(f.data) {
			end = len(f.data)
		}
		for i := sector; i < end; i++ {
			f.data[i] = 0xFF
		}
		f.pending = true
	}
	f.state = flashReady
}

func (f *Flash) Store16(addr uint32, v uint16) { f.Store8(addr, uint8(v)) }
func (f *Flash) Store32(addr uint32, v uint32) { f.Store8(addr, uint8(v)) }

func (f *Flash) WritePending() bool { return f.pending }
func (f *Flash) ClearPending()      { f.pending = false }

func (f *Flash) View() []byte { return f.data }

func (f *Flash) ReplaceData(buf []byte) { copy(f.data, buf) }
