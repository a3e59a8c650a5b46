// Package loader reads ARM64 ELF images so that branch traces without
// instruction words can be classified by PC.
package loader

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrNotARM64 is returned for ELF files that are not 64-bit AArch64.
var ErrNotARM64 = errors.New("not a 64-bit ARM64 ELF file")

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment is a loadable segment of an ELF image.
type Segment struct {
	// VirtAddr is the virtual address of the first byte.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// contains reports whether the 4 bytes at addr lie inside the file-backed
// part of the segment.
func (s *Segment) contains(addr uint64) bool {
	if addr < s.VirtAddr {
		return false
	}
	off, size := addr-s.VirtAddr, uint64(len(s.Data))
	return off < size && size-off >= 4
}

// Program is a loaded ELF image.
type Program struct {
	// EntryPoint is the virtual address where execution begins.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
}

// Load parses an ARM64 ELF file.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return fromFile(f)
}

// LoadReader parses an ARM64 ELF image from r.
func LoadReader(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF image: %w", err)
	}

	return fromFile(f)
}

func fromFile(f *elf.File) (*Program, error) {
	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_AARCH64 {
		return nil, fmt.Errorf("%w (class %v, machine %v)", ErrNotARM64, f.Class, f.Machine)
	}

	prog := &Program{EntryPoint: f.Entry}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    segmentFlags(phdr.Flags),
		})
	}

	return prog, nil
}

func segmentFlags(pf elf.ProgFlag) SegmentFlags {
	var flags SegmentFlags
	if pf&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if pf&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if pf&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}
	return flags
}

// ReadWord returns the little-endian instruction word at addr. Only
// executable segments are searched.
func (p *Program) ReadWord(addr uint64) (uint32, bool) {
	for i := range p.Segments {
		seg := &p.Segments[i]
		if seg.Flags&SegmentFlagExecute == 0 || !seg.contains(addr) {
			continue
		}
		off := addr - seg.VirtAddr
		return binary.LittleEndian.Uint32(seg.Data[off : off+4]), true
	}
	return 0, false
}
