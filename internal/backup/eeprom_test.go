package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedBits(e *EEPROM, bits []uint8) {
	for _, b := range bits {
		e.Store16(0, uint16(b))
	}
}

func bitsMSBFirst(v uint64, n int) []uint8 {
	bits := make([]uint8, n)
	for i := 0; i < n; i++ {
		bits[i] = uint8((v >> (n - 1 - i)) & 1)
	}
	return bits
}

func bytesToBits(data []byte) []uint8 {
	bits := make([]uint8, 0, len(data)*8)
	for _, b := range data {
		for bit := 7; bit >= 0; bit-- {
			bits = append(bits, (b>>bit)&1)
		}
	}
	return bits
}

func writeEEPROM(e *EEPROM, addr int, data []byte) {
	feedBits(e, bitsMSBFirst(0b10, 2))
	feedBits(e, bitsMSBFirst(uint64(addr), e.addrBits))
	feedBits(e, bytesToBits(data))
	e.Store16(0, 0) // trailing stop bit
}

func readEEPROM(e *EEPROM, addr int) []byte {
	feedBits(e, bitsMSBFirst(0b11, 2))
	feedBits(e, bitsMSBFirst(uint64(addr), e.addrBits))
	for i := 0; i < 4; i++ {
		e.Load16(0) // dummy bits
	}
	var out []byte
	var cur uint8
	for i := 0; i < 64; i++ {
		bit := uint8(e.Load16(0))
		cur = cur<<1 | bit
		if i%8 == 7 {
			out = append(out, cur)
			cur = 0
		}
	}
	return out
}

func TestEEPROMWriteThenReadRoundTrip(t *testing.T) {
	e := NewEEPROM()
	data := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}

	writeEEPROM(e, 3, data)
	require.True(t, e.WritePending())
	e.ClearPending()
	require.False(t, e.WritePending())

	got := readEEPROM(e, 3)
	assert.Equal(t, data, got)
}

func TestEEPROMAddressWidthInferredFromFirstTransferLength(t *testing.T) {
	e := NewEEPROM()
	require.Equal(t, eepromLargeAddrBits, e.addrBits)

	e.NoteFirstTransferLength(9) // <=9 bits -> small (6-bit address) variant
	assert.Equal(t, eepromSmallAddrBits, e.addrBits)
}

func TestEEPROMAddressWidthLocksAfterFirstCall(t *testing.T) {
	e := NewEEPROM()
	e.NoteFirstTransferLength(9)
	require.Equal(t, eepromSmallAddrBits, e.addrBits)

	e.NoteFirstTransferLength(17) // second call must not override the lock
	assert.Equal(t, eepromSmallAddrBits, e.addrBits)
}

func TestEEPROMReplaceDataAndView(t *testing.T) {
	e := NewEEPROM()
	buf := make([]byte, len(e.View()))
	buf[0] = 0xAB
	e.ReplaceData(buf)
	assert.Equal(t, uint8(0xAB), e.View()[0])
}
