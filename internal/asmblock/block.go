package asmblock

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xyproto/asmproc/internal/asmerr"
	"github.com/xyproto/asmproc/internal/gstate"
	"github.com/xyproto/asmproc/internal/options"
)

// AsmBlock accumulates one GLOBAL_ASM/INCLUDE_ASM block's section sizes
// and raw line content as ProcessLine is fed each assembly line in
// order; Finish converts the accumulation into a Function plus the
// placeholder stub lines.
type AsmBlock struct {
	opts    options.Opts
	derived options.Derived
	state   *gstate.State
	fnDesc  string

	section string
	sizes   map[string]uint32

	textGlabels        []string
	asmConts           []string
	lateRodataAsmConts []string
	fnInsInds          []InsInd

	lateRodataAlignment int // 0 = unset, else 4 or 8
	alignmentFromDouble bool

	seenGlabel bool
	lineCount  int
}

// New starts a fresh accumulator for one assembly block; fnDesc is the
// human-readable provenance string attached to every error and to the
// resulting Function.
func New(opts options.Opts, derived options.Derived, state *gstate.State, fnDesc string) *AsmBlock {
	return &AsmBlock{
		opts:    opts,
		derived: derived,
		state:   state,
		fnDesc:  fnDesc,
		section: SecText,
		sizes: map[string]uint32{
			SecText: 0, SecData: 0, SecRodata: 0, SecLateRodata: 0, SecBss: 0,
		},
	}
}

func (b *AsmBlock) fail(msg, line string) error {
	return asmerr.At(b.fnDesc, msg, line)
}

// ProcessLine accounts for one assembly line and returns the 0-based
// index this line occupies for later stub placement. A backslash at the
// end of a line is not treated as a continuation: each physical line is
// processed on its own.
func (b *AsmBlock) ProcessLine(raw string) (int, error) {
	idx := b.lineCount
	b.lineCount++

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return idx, nil
	}

	if label, rest := stripLeadingLabel(line); label != "" {
		if rest == "" {
			return idx, nil // bare "label:" with nothing else on the line
		}
		line = rest
	}

	word, argsRest := firstWord(line)

	switch {
	case word == ".section":
		return idx, b.switchSection(argsRest, raw)
	case isBareSectionName(word) && argsRest == "":
		return idx, b.switchSection(word, raw)
	case word == "glabel" || word == "jlabel":
		name := strings.TrimSpace(argsRest)
		if b.section == SecText {
			b.textGlabels = append(b.textGlabels, name)
			b.seenGlabel = true
			b.storeLine(raw)
		}
		return idx, nil
	case strings.HasPrefix(word, "."):
		return idx, b.directive(word, argsRest, raw)
	default:
		return idx, b.instruction(raw)
	}
}

func isBareSectionName(w string) bool {
	switch w {
	case SecText, SecData, SecRodata, SecLateRodata, SecBss, ".rdata":
		return true
	}
	return false
}

func (b *AsmBlock) switchSection(arg, raw string) error {
	name := strings.TrimSpace(splitTopLevelCommas(arg)[0])
	if name == ".rdata" {
		name = SecRodata
	}
	if !validSections[name] {
		return b.fail(fmt.Sprintf("unsupported section %q", name), raw)
	}
	b.section = name
	// Late-rodata content is reconstructed separately (dummy bytes or a
	// jump table) at a different file location entirely, so its section
	// switch has no business in the replayed assembly stream; every
	// other switch must survive so the assembler lands content in the
	// section the sizing pass assumed.
	if name != SecLateRodata {
		b.asmConts = append(b.asmConts, ".section "+name)
	}
	return nil
}

func (b *AsmBlock) instruction(raw string) error {
	if b.section != SecText {
		return b.fail("instruction outside .text", raw)
	}
	if !b.seenGlabel {
		return b.fail(".text content must follow a glabel", raw)
	}
	b.sizes[SecText] += 4
	b.fnInsInds = append(b.fnInsInds, InsInd{LineIndex: b.lineCount - 1, Count: 1})
	b.storeLine(raw)
	return nil
}

func (b *AsmBlock) align(sec string, n uint32) {
	b.sizes[sec] = alignUp(b.sizes[sec], n)
}

func (b *AsmBlock) directive(word, args, raw string) error {
	switch word {
	case ".late_rodata_alignment":
		n, err := strconv.Atoi(strings.TrimSpace(args))
		if err != nil || (n != 4 && n != 8) {
			return b.fail(".late_rodata_alignment requires 4 or 8", raw)
		}
		if b.lateRodataAlignment != 0 && b.lateRodataAlignment != n {
			return b.fail("late rodata alignment conflict", raw)
		}
		b.lateRodataAlignment = n
		return nil

	case ".incbin":
		parts := splitTopLevelCommas(args)
		if len(parts) < 3 {
			return b.fail(".incbin requires file,offset,size", raw)
		}
		n, err := parseIntLiteral(parts[2])
		if err != nil {
			return b.fail(".incbin size must be an integer", raw)
		}
		b.sizes[b.section] += uint32(n)
		return b.storeIfNotLate(raw)

	case ".word", ".gpword", ".float":
		b.align(b.section, 4)
		b.sizes[b.section] += 4 * uint32(commaCount(args))
		return b.storeIfNotLate(raw)

	case ".double":
		b.align(b.section, 4)
		if b.section == SecLateRodata {
			cur := b.sizes[SecLateRodata]
			inferred := 4
			if cur%8 == 0 {
				inferred = 8
			}
			if b.lateRodataAlignment != 0 && b.lateRodataAlignment != inferred {
				return b.fail("late rodata alignment conflict from .double", raw)
			}
			b.lateRodataAlignment = inferred
			b.alignmentFromDouble = true
			b.lateRodataAsmConts = append(b.lateRodataAsmConts, ".align 0")
			b.lateRodataAsmConts = append(b.lateRodataAsmConts, strings.TrimSpace(raw))
			b.lateRodataAsmConts = append(b.lateRodataAsmConts, ".align 2")
		} else {
			b.storeLine(raw)
		}
		b.sizes[b.section] += 8 * uint32(commaCount(args))
		return nil

	case ".space":
		n, err := parseIntLiteral(args)
		if err != nil {
			return b.fail(".space requires an integer", raw)
		}
		b.sizes[b.section] += uint32(n)
		return b.storeIfNotLate(raw)

	case ".balign":
		n, err := parseIntLiteral(args)
		if err != nil || n != 4 {
			return b.fail(".balign only supports 4", raw)
		}
		b.align(b.section, 4)
		return b.storeIfNotLate(raw)

	case ".align":
		n, err := parseIntLiteral(args)
		if err != nil || n != 2 {
			return b.fail(".align only supports 2 (align to 4 bytes)", raw)
		}
		b.align(b.section, 4)
		return b.storeIfNotLate(raw)

	case ".ascii", ".asciz", ".asciiz":
		n, err := countAsciiBytes(args, word != ".ascii")
		if err != nil {
			return b.fail(err.Error(), raw)
		}
		b.sizes[b.section] += uint32(n)
		return b.storeIfNotLate(raw)

	case ".byte":
		b.sizes[b.section] += uint32(commaCount(args))
		return b.storeIfNotLate(raw)

	case ".half", ".hword", ".short":
		b.align(b.section, 2)
		b.sizes[b.section] += 2 * uint32(commaCount(args))
		return b.storeIfNotLate(raw)

	case ".size":
		return nil

	default:
		return b.fail(fmt.Sprintf("unsupported directive %q", word), raw)
	}
}

func (b *AsmBlock) storeIfNotLate(raw string) error {
	if b.section == SecLateRodata {
		b.lateRodataAsmConts = append(b.lateRodataAsmConts, strings.TrimSpace(raw))
		return nil
	}
	b.storeLine(raw)
	return nil
}

func (b *AsmBlock) storeLine(raw string) {
	b.asmConts = append(b.asmConts, strings.TrimSpace(raw))
}

func parseIntLiteral(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

// countAsciiBytes sums the escaped byte length of every quoted string
// fragment in a comma-separated .ascii/.asciz/.asciiz argument list,
// adding one terminator byte per fragment when nullTerminate is set.
// .asciz/.asciiz additionally forbid two quoted fragments glued without
// an intervening comma.
func countAsciiBytes(args string, nullTerminate bool) (int, error) {
	total := 0
	i := 0
	prevWasString := false
	for i < len(args) {
		c := args[i]
		switch {
		case c == ' ' || c == '\t' || c == ',':
			if c == ',' {
				prevWasString = false
			}
			i++
		case c == '"':
			if prevWasString && nullTerminate {
				return 0, fmt.Errorf("adjacent strings require a comma")
			}
			j := i + 1
			n := 0
			for j < len(args) && args[j] != '"' {
				if args[j] == '\\' && j+1 < len(args) {
					j += 2
				} else {
					j++
				}
				n++
			}
			if j >= len(args) {
				return 0, fmt.Errorf("unterminated string")
			}
			total += n
			if nullTerminate {
				total++
			}
			i = j + 1
			prevWasString = true
		default:
			return 0, fmt.Errorf("unexpected character in string directive")
		}
	}
	return total, nil
}
