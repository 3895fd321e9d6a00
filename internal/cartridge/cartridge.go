// Package cartridge loads a raw GBA ROM image, validates and parses its
// header, and infers which backup-memory variant the game expects.
package cartridge

import (
	"bytes"
	"fmt"

	"gbacore/internal/backup"
)

const (
	headerValidByteOffset = 0xB2
	headerValidByte       = 0x96

	titleOffset = 0xA0
	titleLen    = 12
	codeOffset  = 0xAC
	codeLen     = 4
	makerOffset = 0xB0
	makerLen    = 2

	saveTokenScanStart = 0xE4
)

// SaveKind identifies which backup-memory variant a cartridge needs.
type SaveKind int

const (
	SaveSRAM SaveKind = iota
	SaveEEPROM
	SaveFlash64K
	SaveFlash128K
)

// saveTokens is scanned in order; the first match wins. No token is a
// substring of another, so the order only decides the result for a ROM
// that carries several tokens: the more specific FLASH512_V/FLASH1M_V
// tokens are checked before the bare FLASH_V token.
var saveTokens = []struct {
	token string
	kind  SaveKind
}{
	{"SRAM_V", SaveSRAM},
	{"EEPROM_V", SaveEEPROM},
	{"FLASH512_V", SaveFlash64K},
	{"FLASH1M_V", SaveFlash128K},
	{"FLASH_V", SaveFlash64K},
}

// Header is the parsed cartridge header metadata.
type Header struct {
	Title string
	Code  string
	Maker string
}

// Cartridge is a validated, loaded ROM image plus its inferred save type.
type Cartridge struct {
	Data   []byte
	Header Header
	Save   SaveKind
}

// Load validates the header byte and parses title/code/maker and the
// inferred save type. It does not construct the backup engine itself -
// that is the bus/machine wiring's job, since only it knows how to
// install the result into the address map.
func Load(data []byte) (*Cartridge, error) {
	if len(data) <= headerValidByteOffset {
		return nil, fmt.Errorf("cartridge: image too small to contain a header (%d bytes)", len(data))
	}
	if data[headerValidByteOffset] != headerValidByte {
		return nil, fmt.Errorf("cartridge: invalid header byte at offset 0x%X: got 0x%02X, want 0x%02X",
			headerValidByteOffset, data[headerValidByteOffset], headerValidByte)
	}

	c := &Cartridge{
		Data: data,
		Header: Header{
			Title: trimField(data, titleOffset, titleLen),
			Code:  trimField(data, codeOffset, codeLen),
			Maker: trimField(data, makerOffset, makerLen),
		},
		Save: inferSaveKind(data),
	}
	return c, nil
}

func trimField(data []byte, offset, length int) string {
	if offset+length > len(data) {
		return ""
	}
	field := data[offset : offset+length]
	end := bytes.IndexByte(field, 0)
	if end < 0 {
		end = len(field)
	}
	return string(field[:end])
}

// inferSaveKind substring-scans the ROM from saveTokenScanStart for the
// known save-type tokens, defaulting to SRAM if none match.
func inferSaveKind(data []byte) SaveKind {
	if saveTokenScanStart >= len(data) {
		return SaveSRAM
	}
	region := data[saveTokenScanStart:]
	for _, t := range saveTokens {
		if bytes.Contains(region, []byte(t.token)) {
			return t.kind
		}
	}
	return SaveSRAM
}

// NewBackup constructs the backup-memory engine matching the cartridge's
// inferred save type.
func (c *Cartridge) NewBackup() backup.Backup {
	switch c.Save {
	case SaveEEPROM:
		return backup.NewEEPROM()
	case SaveFlash64K:
		return backup.NewFlash(backup.Flash64K)
	case SaveFlash128K:
		return backup.NewFlash(backup.Flash128K)
	default:
		return backup.NewSRAM()
	}
}
