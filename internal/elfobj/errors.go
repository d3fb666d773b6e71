package elfobj

import "errors"

// Sentinel errors for the ELF-violation error kind (spec.md §7). Wrapped
// with %w so callers can errors.Is against them regardless of the
// surrounding message.
var (
	ErrBadMagic        = errors.New("not an ELF file")
	ErrNotELFClass32   = errors.New("not a 32-bit ELF file")
	ErrNotBigEndian    = errors.New("not a big-endian ELF file")
	ErrNotRelocatable  = errors.New("not a relocatable (ET_REL) ELF file")
	ErrNotMIPS         = errors.New("not a MIPS ELF file")
	ErrHasProgramHdr   = errors.New("unexpected program header table")
	ErrNoShstrtab      = errors.New("no section header string table index")
	ErrNoSectionHdrTab = errors.New("no section header table")
	ErrMultipleSymtab  = errors.New("multiple SHT_SYMTAB sections")
	ErrNoSymtab        = errors.New("no SHT_SYMTAB section")
	ErrShnXindexUnsupported = errors.New("SHN_XINDEX is not supported")
	ErrShstrndxNotStrtab    = errors.New("e_shstrndx does not refer to a string table")
)
