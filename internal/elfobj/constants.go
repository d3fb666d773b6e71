package elfobj

// ELF identification indices.
const (
	eiMag0       = 0
	eiClass      = 4
	eiData       = 5
	eiVersion    = 6
	eiNIdent     = 16
	elfClass32   = 1
	elfData2MSB  = 2 // big-endian
	etRel        = 1
	emMIPS       = 8
)

// Section header types.
const (
	SHT_NULL     uint32 = 0
	SHT_PROGBITS uint32 = 1
	SHT_SYMTAB   uint32 = 2
	SHT_STRTAB   uint32 = 3
	SHT_RELA     uint32 = 4
	SHT_HASH     uint32 = 5
	SHT_DYNAMIC  uint32 = 6
	SHT_NOTE     uint32 = 7
	SHT_NOBITS   uint32 = 8
	SHT_REL      uint32 = 9
	SHT_SHLIB    uint32 = 10
	SHT_DYNSYM   uint32 = 11

	SHT_MIPS_GPTAB   uint32 = 0x70000003
	SHT_MIPS_DEBUG   uint32 = 0x70000005
	SHT_MIPS_REGINFO uint32 = 0x70000006
	SHT_MIPS_OPTIONS uint32 = 0x7000000d
)

// Section header flags.
const (
	SHF_WRITE     uint32 = 0x1
	SHF_ALLOC     uint32 = 0x2
	SHF_EXECINSTR uint32 = 0x4
)

// Special section indices.
const (
	SHN_UNDEF     uint16 = 0
	SHN_ABS       uint16 = 0xfff1
	SHN_COMMON    uint16 = 0xfff2
	SHN_XINDEX    uint16 = 0xffff
	SHN_LORESERVE uint16 = 0xff00
)

// Symbol binding.
const (
	STB_LOCAL  uint8 = 0
	STB_GLOBAL uint8 = 1
	STB_WEAK   uint8 = 2
)

// Symbol type.
const (
	STT_NOTYPE  uint8 = 0
	STT_OBJECT  uint8 = 1
	STT_FUNC    uint8 = 2
	STT_SECTION uint8 = 3
	STT_FILE    uint8 = 4
	STT_COMMON  uint8 = 5
	STT_TLS     uint8 = 6
)

// Symbol visibility.
const (
	STV_DEFAULT   uint8 = 0
	STV_INTERNAL  uint8 = 1
	STV_HIDDEN    uint8 = 2
	STV_PROTECTED uint8 = 3
)

// MIPS relocation types.
const (
	R_MIPS_32  uint32 = 2
	R_MIPS_26  uint32 = 4
	R_MIPS_HI16 uint32 = 5
	R_MIPS_LO16 uint32 = 6
)

// MIPS symbolic-debug (.mdebug / HDRR) symbol-type constants.
const (
	mipsDebugSTStatic     = 2
	mipsDebugSTProc       = 6
	mipsDebugSTBlock      = 7
	mipsDebugSTEnd        = 8
	mipsDebugSTFile       = 11
	mipsDebugSTStaticProc = 14
	mipsDebugSTStruct     = 26
	mipsDebugSTUnion      = 27
	mipsDebugSTEnum       = 28
)

// HDRR magic, marking a well-formed .mdebug symbolic header.
const hdrrMagic = 0x7009

// Exported aliases of the .mdebug symbol-type constants above, for
// internal/fixup's static-symbol promotion pass (spec.md §4.E Step 9),
// which has to walk a compiler-emitted HDRR table but lives outside this
// package.
const (
	MipsDebugSTStatic     = mipsDebugSTStatic
	MipsDebugSTProc       = mipsDebugSTProc
	MipsDebugSTBlock      = mipsDebugSTBlock
	MipsDebugSTEnd        = mipsDebugSTEnd
	MipsDebugSTFile       = mipsDebugSTFile
	MipsDebugSTStaticProc = mipsDebugSTStaticProc
	MipsDebugSTStruct     = mipsDebugSTStruct
	MipsDebugSTUnion      = mipsDebugSTUnion
	MipsDebugSTEnum       = mipsDebugSTEnum
)
