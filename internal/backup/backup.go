// Package backup implements the three cartridge backup-memory variants
//: battery SRAM, Flash with its command protocol, and EEPROM
// addressed as a bit stream through DMA channel 3. All three share the
// Backup contract so the bus can install any of them behind the same
// region.BackupRegion adapter.
package backup

// Backup is the shared contract every variant implements.
type Backup interface {
	Load8(addr uint32) uint8
	Load16(addr uint32) uint16
	Load32(addr uint32) uint32
	Store8(addr uint32, v uint8)
	Store16(addr uint32, v uint16)
	Store32(addr uint32, v uint32)

	// WritePending reports whether a store has landed since the last
	// flush, for the machine's frame-boundary save-flush hook.
	WritePending() bool
	// ClearPending resets the dirty bit after a successful flush.
	ClearPending()

	// View exposes the raw backing bytes for snapshotting and for the
	// save-game store's base64 wire form.
	View() []byte
	// ReplaceData installs new raw bytes loaded from a save file.
	ReplaceData(buf []byte)
}

// widen16 combines two little-endian bytes.
func widen16(lo, hi uint8) uint16 { return uint16(lo) | uint16(hi)<<8 }

func split16(v uint16) (lo, hi uint8) { return uint8(v), uint8(v >> 8) }
