package elfobj

import (
	"encoding/binary"
	"fmt"
)

// Header is the subset of the ELF32 file header this tool cares about.
// Write re-derives only e_shoff, e_shnum, e_ehsize and e_shentsize; every
// other field is kept as a plain value and written back unchanged.
type Header struct {
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

const headerSize = 52

func parseHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, fmt.Errorf("%w: header too short", ErrBadMagic)
	}
	if data[0] != 0x7f || data[1] != 'E' || data[2] != 'L' || data[3] != 'F' {
		return Header{}, ErrBadMagic
	}
	if data[eiClass] != elfClass32 {
		return Header{}, ErrNotELFClass32
	}
	if data[eiData] != elfData2MSB {
		return Header{}, ErrNotBigEndian
	}

	be := binary.BigEndian
	h := Header{
		Type:      be.Uint16(data[16:18]),
		Machine:   be.Uint16(data[18:20]),
		Version:   be.Uint32(data[20:24]),
		Entry:     be.Uint32(data[24:28]),
		Phoff:     be.Uint32(data[28:32]),
		Shoff:     be.Uint32(data[32:36]),
		Flags:     be.Uint32(data[36:40]),
		Ehsize:    be.Uint16(data[40:42]),
		Phentsize: be.Uint16(data[42:44]),
		Phnum:     be.Uint16(data[44:46]),
		Shentsize: be.Uint16(data[46:48]),
		Shnum:     be.Uint16(data[48:50]),
		Shstrndx:  be.Uint16(data[50:52]),
	}

	if h.Type != etRel {
		return Header{}, ErrNotRelocatable
	}
	if h.Machine != emMIPS {
		return Header{}, ErrNotMIPS
	}
	if h.Phoff != 0 {
		return Header{}, ErrHasProgramHdr
	}
	if h.Shoff == 0 {
		return Header{}, ErrNoSectionHdrTab
	}
	if h.Shstrndx == SHN_UNDEF {
		return Header{}, ErrNoShstrtab
	}
	return h, nil
}

func (h Header) marshal() []byte {
	out := make([]byte, headerSize)
	out[0], out[1], out[2], out[3] = 0x7f, 'E', 'L', 'F'
	out[eiClass] = elfClass32
	out[eiData] = elfData2MSB
	out[eiVersion] = 1

	be := binary.BigEndian
	be.PutUint16(out[16:18], h.Type)
	be.PutUint16(out[18:20], h.Machine)
	be.PutUint32(out[20:24], h.Version)
	be.PutUint32(out[24:28], h.Entry)
	be.PutUint32(out[28:32], h.Phoff)
	be.PutUint32(out[32:36], h.Shoff)
	be.PutUint32(out[36:40], h.Flags)
	be.PutUint16(out[40:42], h.Ehsize)
	be.PutUint16(out[42:44], h.Phentsize)
	be.PutUint16(out[44:46], h.Phnum)
	be.PutUint16(out[46:48], h.Shentsize)
	be.PutUint16(out[48:50], h.Shnum)
	be.PutUint16(out[50:52], h.Shstrndx)
	return out
}
