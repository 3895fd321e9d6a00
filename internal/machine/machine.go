// Package machine ties the bus, DMA engine, cartridge, and CPU
// collaborator together into one runnable session, and drives the
// frame-boundary save-flush hook.
package machine

import (
	"encoding/base64"
	"fmt"

	"gbacore/internal/bus"
	"gbacore/internal/cartridge"
	"gbacore/internal/collab"
	"gbacore/internal/cpu"
	"gbacore/internal/dma"
	"gbacore/internal/ppu"
	"gbacore/internal/snapshot"
)

// Machine is one loaded session: a bus with its on-chip regions and
// collaborators wired up, a CPU collaborator for cycle/prefetch state, a
// scanline timer driving vblank DMA, and whichever cartridge is currently
// installed.
type Machine struct {
	Bus  *bus.Controller
	CPU  *cpu.Collaborator
	Cart *cartridge.Cartridge

	timer *ppu.Timer

	saveStore collab.SaveStore
	saveCode  string
}

// New builds a machine. saveStore/saveCode may be zero-valued if the host
// has no save-game persistence wired up; the flush hook becomes a no-op.
func New(biosData []byte, fifo dma.Collaborators, log bus.Logger, saveStore collab.SaveStore, saveCode string) *Machine {
	cpuCollab := cpu.NewCollaborator()
	b := bus.New(biosData, cpuCollab, fifo, log)

	timer := ppu.NewTimer()
	timer.VBlankCallback(b.DMA().RunVBlankDMAs)

	return &Machine{Bus: b, CPU: cpuCollab, timer: timer, saveStore: saveStore, saveCode: saveCode}
}

// LoadROM validates and installs a cartridge image, then restores any
// previously saved backup contents from the save store.
func (m *Machine) LoadROM(data []byte) error {
	cart, err := cartridge.Load(data)
	if err != nil {
		return fmt.Errorf("machine: load ROM: %w", err)
	}
	m.Cart = cart
	m.Bus.InstallCartridge(cart)

	if m.saveStore == nil {
		return nil
	}
	encoded, err := m.saveStore.Load(m.saveCode)
	if err != nil || encoded == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	if b := m.Bus.Backup(); b != nil {
		b.ReplaceData(raw)
	}
	return nil
}

// AdvanceFrame runs the frame-boundary hooks a host drives once per
// display refresh: ticking the scanline timer through one full frame (which
// fires vblank-timed DMA the instant it crosses into vblank), then the
// save-flush check. This core does not run a CPU fetch/decode/execute loop
// itself - a host steps its own CPU interpreter against Bus between frames
// and calls AdvanceFrame at vblank.
func (m *Machine) AdvanceFrame() {
	startPending := m.backupWritePending()

	m.timer.Tick(ppu.CyclesPerFrame)

	endPending := m.backupWritePending()
	if startPending && endPending {
		m.flushSave()
	}
}

func (m *Machine) backupWritePending() bool {
	b := m.Bus.Backup()
	if b == nil {
		return false
	}
	return b.WritePending()
}

// flushSave persists the installed backup's contents through the save
// store, only once writePending has been observed stable across a whole
// frame.
func (m *Machine) flushSave() {
	if m.saveStore == nil {
		return
	}
	b := m.Bus.Backup()
	if b == nil {
		return
	}
	encoded := base64.StdEncoding.EncodeToString(b.View())
	if err := m.saveStore.Save(m.saveCode, encoded); err == nil {
		b.ClearPending()
	}
}

// Freeze serializes the core's on-chip state to a snapshot blob.
func (m *Machine) Freeze() []byte {
	return snapshot.FreezeCore(m.Bus.EWRAM().Raw(), m.Bus.IWRAM().Raw(), m.Bus.IORegisters().Raw()).Bytes()
}

// Thaw restores on-chip state from a previously frozen blob.
func (m *Machine) Thaw(data []byte) error {
	ewram, iwram, io, err := snapshot.ThawCore(data)
	if err != nil {
		return err
	}
	m.Bus.EWRAM().ReplaceData(ewram, 0)
	m.Bus.IWRAM().ReplaceData(iwram, 0)
	m.Bus.IORegisters().ReplaceData(io, 0)
	return nil
}
