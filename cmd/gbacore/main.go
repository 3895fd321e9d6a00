// Command gbacore is a headless demo binary over the core library: it
// loads a cartridge (and optional BIOS), advances frames, and can freeze a
// session to a snapshot file or dump the installed backup's save data.
// None of this is part of the core itself - it's host/demo plumbing
// analogous to the teacher's main.go writing out a PNG of the first
// rendered frame.
package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gbacore/internal/collab"
	"gbacore/internal/machine"
	"gbacore/util/dbg"
)

// noopFIFO satisfies dma.Collaborators for a headless run with no audio
// collaborator driving custom-timed DMA.
type noopFIFO struct{}

func (noopFIFO) ScheduleFIFODMA(channel int) {}

// fileSaveStore is the demo's collab.SaveStore: one file per session,
// holding the base64 wire form of whichever backup is installed.
type fileSaveStore struct {
	path string
}

func (s fileSaveStore) Save(code, b64 string) error {
	return os.WriteFile(s.path, []byte(b64), 0o644)
}

func (s fileSaveStore) Load(code string) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func saveStoreFor(path string) collab.SaveStore {
	if path == "" {
		return nil
	}
	return fileSaveStore{path: path}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gbacore: failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	dbg.SetLogger(sugar)

	root := &cobra.Command{
		Use:   "gbacore",
		Short: "Headless demo over the GBA memory/DMA/timing core",
	}
	root.AddCommand(newRunCmd(sugar))
	root.AddCommand(newSnapshotCmd(sugar))
	root.AddCommand(newSaveCmd(sugar))

	if err := root.Execute(); err != nil {
		sugar.Fatalw("command failed", "error", err)
	}
}

func loadMachine(sugar *zap.SugaredLogger, romPath, biosPath, savePath string) (*machine.Machine, error) {
	var bios []byte
	var err error
	if biosPath != "" {
		bios, err = os.ReadFile(biosPath)
		if err != nil {
			return nil, fmt.Errorf("reading BIOS: %w", err)
		}
	}

	m := machine.New(bios, noopFIFO{}, sugar, saveStoreFor(savePath), "default")

	romData, err := os.ReadFile(romPath)
	if err != nil {
		return nil, fmt.Errorf("reading ROM: %w", err)
	}
	if err := m.LoadROM(romData); err != nil {
		return nil, err
	}
	return m, nil
}

func newRunCmd(sugar *zap.SugaredLogger) *cobra.Command {
	var romPath, biosPath, savePath string
	var frames int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a ROM and advance it headlessly for a number of frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMachine(sugar, romPath, biosPath, savePath)
			if err != nil {
				return err
			}
			for i := 0; i < frames; i++ {
				m.AdvanceFrame()
			}
			sugar.Infow("run complete",
				"title", m.Cart.Header.Title,
				"code", m.Cart.Header.Code,
				"cycles", m.CPU.Cycles(),
				"frames", frames,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&romPath, "rom", "", "path to the cartridge ROM image")
	cmd.Flags().StringVar(&biosPath, "bios", "", "path to a BIOS image (optional)")
	cmd.Flags().StringVar(&savePath, "save", "", "path to a save-data file (optional)")
	cmd.Flags().IntVar(&frames, "frames", 60, "number of frames to advance")
	cmd.MarkFlagRequired("rom")
	return cmd
}

func newSnapshotCmd(sugar *zap.SugaredLogger) *cobra.Command {
	var romPath, biosPath, savePath, outPath string
	var frames int

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Load a ROM, advance N frames, and freeze the session to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMachine(sugar, romPath, biosPath, savePath)
			if err != nil {
				return err
			}
			for i := 0; i < frames; i++ {
				m.AdvanceFrame()
			}
			if err := os.WriteFile(outPath, m.Freeze(), 0o644); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}
			sugar.Infow("snapshot written", "path", outPath, "frames", frames)
			return nil
		},
	}
	cmd.Flags().StringVar(&romPath, "rom", "", "path to the cartridge ROM image")
	cmd.Flags().StringVar(&biosPath, "bios", "", "path to a BIOS image (optional)")
	cmd.Flags().StringVar(&savePath, "save", "", "path to a save-data file (optional)")
	cmd.Flags().StringVar(&outPath, "out", "snapshot.bin", "output snapshot file")
	cmd.Flags().IntVar(&frames, "frames", 60, "number of frames to advance before freezing")
	cmd.MarkFlagRequired("rom")
	return cmd
}

func newSaveCmd(sugar *zap.SugaredLogger) *cobra.Command {
	var romPath, biosPath string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Load a ROM and print the installed backup's base64 save data",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMachine(sugar, romPath, biosPath, "")
			if err != nil {
				return err
			}
			b := m.Bus.Backup()
			if b == nil {
				return fmt.Errorf("no backup installed")
			}
			fmt.Println(base64.StdEncoding.EncodeToString(b.View()))
			return nil
		},
	}
	cmd.Flags().StringVar(&romPath, "rom", "", "path to the cartridge ROM image")
	cmd.Flags().StringVar(&biosPath, "bios", "", "path to a BIOS image (optional)")
	cmd.MarkFlagRequired("rom")
	return cmd
}
