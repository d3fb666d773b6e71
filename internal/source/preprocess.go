// Package source implements the pre-pass preprocessor: it scans a C or
// Pascal source file line by line, recognizing GLOBAL_ASM/INCLUDE_ASM/
// INCLUDE_RODATA/#pragma asmproc recurse markers, delegating assembly
// content to internal/asmblock, and emitting a transformed source file
// with byte-exact placeholder reservations.
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xyproto/asmproc/internal/asmblock"
	"github.com/xyproto/asmproc/internal/asmerr"
	"github.com/xyproto/asmproc/internal/gstate"
	"github.com/xyproto/asmproc/internal/options"
)

// maxIncludeDepth bounds "#pragma asmproc recurse" nesting, turning a
// pathological self-including file into a clean error instead of an
// unbounded recursive parse.
const maxIncludeDepth = 64

var (
	globalAsmFileRe = regexp.MustCompile(`^(?:GLOBAL_ASM|#pragma GLOBAL_ASM)\("([^"]+)"\)$`)
	includeRe       = regexp.MustCompile(`^INCLUDE_(ASM|RODATA)\("([^"]*)",\s*"([^"]*)"\);$`)
)

// Result is the output of one Preprocess call: the assembly blocks found
// (in source order) and the set of files opened to resolve includes,
// for dependency-file emission.
type Result struct {
	Functions []asmblock.Function
	Deps      []string
}

// Preprocess is the library entry point; the CLI calls it through
// reparseFunctions.
func Preprocess(r io.Reader, w io.Writer, opts options.Opts, state *gstate.State) (Result, error) {
	return preprocess(r, w, opts, state, 0)
}

func derivedFromState(s *gstate.State) options.Derived {
	return options.Derived{
		MinInstrCount:       s.MinInstrCount,
		SkipInstrCount:      s.SkipInstrCount,
		PreludeIfLateRodata: s.PreludeIfLateRodata,
		UseJtblForRodata:    s.UseJtblForRodata,
	}
}

func preprocess(r io.Reader, w io.Writer, opts options.Opts, state *gstate.State, depth int) (Result, error) {
	if depth > maxIncludeDepth {
		return Result{}, fmt.Errorf("asmproc: #pragma asmproc recurse nesting exceeds %d, probable include cycle", maxIncludeDepth)
	}

	var res Result
	derived := derivedFromState(state) // AsmBlock takes Derived as a value separate from *State

	var outputLines []string
	outputLines = append(outputLines, fmt.Sprintf("#line 1 %q", opts.Filename))

	var curBlock *asmblock.AsmBlock
	isCutsceneData := false
	awaitingInclude := false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 1

	for sc.Scan() {
		rawLine := strings.TrimRight(sc.Text(), " \t\r")
		trimmed := strings.TrimSpace(rawLine)

		outputLines = append(outputLines, "")
		curIdx := len(outputLines) - 1

		switch {
		case curBlock != nil:
			if strings.HasPrefix(trimmed, ")") {
				src, fn, err := curBlock.Finish()
				if err != nil {
					return Result{}, err
				}
				startIdx := curIdx - len(src) + 1
				for i, l := range src {
					outputLines[startIdx+i] = l
				}
				res.Functions = append(res.Functions, fn)
				curBlock = nil
			} else {
				if _, err := curBlock.ProcessLine(rawLine); err != nil {
					return Result{}, err
				}
			}

		case trimmed == "GLOBAL_ASM(" || trimmed == "#pragma GLOBAL_ASM(":
			curBlock = asmblock.New(opts, derived, state, fmt.Sprintf("GLOBAL_ASM block at line %d", lineNo))

		case isFileForm(trimmed):
			fname, prologue, err := resolveFileForm(trimmed)
			if err != nil {
				return Result{}, err
			}
			fn, text, deps, err := processIncludeFile(fname, prologue, opts, derived, state)
			if err != nil {
				return Result{}, err
			}
			if fn == nil {
				outputLines[curIdx] = fmt.Sprintf("#include \"GLOBAL_ASM:%s\"", fname)
			} else {
				outputLines[curIdx] = text
				res.Functions = append(res.Functions, *fn)
				res.Deps = append(res.Deps, deps...)
			}

		case trimmed == "#pragma asmproc recurse":
			awaitingInclude = true

		case awaitingInclude:
			awaitingInclude = false
			if !strings.HasPrefix(trimmed, "#include ") {
				return Result{}, asmerr.New(opts.Filename, "#pragma asmproc recurse must be followed by an #include")
			}
			incName, err := parseIncludePath(trimmed)
			if err != nil {
				return Result{}, err
			}
			incPath := filepath.Join(filepath.Dir(opts.Filename), incName)
			res.Deps = append(res.Deps, incPath)

			f, err := os.Open(incPath)
			if err != nil {
				return Result{}, fmt.Errorf("asmproc: opening recursed include %s: %w", incPath, err)
			}
			var buf strings.Builder
			incOpts := opts
			incOpts.Filename = incPath
			childRes, err := preprocess(f, &buf, incOpts, state, depth+1)
			f.Close()
			if err != nil {
				return Result{}, err
			}
			res.Functions = append(res.Functions, childRes.Functions...)
			res.Deps = append(res.Deps, childRes.Deps...)
			fmt.Fprintf(&buf, "#line %d %q\n", lineNo+1, opts.Filename)
			outputLines[curIdx] = buf.String()

		default:
			if opts.EnableCutsceneDataFloatEncoding {
				if cutsceneDataRe.MatchString(trimmed) {
					isCutsceneData = true
				} else if strings.HasSuffix(trimmed, "};") {
					isCutsceneData = false
				}
				if isCutsceneData {
					outputLines[curIdx] = rewriteCutsceneFloats(rawLine)
					lineNo++
					continue
				}
			}
			outputLines[curIdx] = rawLine
		}
		lineNo++
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	if curBlock != nil {
		return Result{}, asmerr.New(opts.Filename, "unterminated GLOBAL_ASM( block")
	}

	for _, l := range outputLines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

func isFileForm(trimmed string) bool {
	if globalAsmFileRe.MatchString(trimmed) {
		return true
	}
	return includeRe.MatchString(trimmed)
}

func resolveFileForm(trimmed string) (fname string, prologue []string, err error) {
	if m := globalAsmFileRe.FindStringSubmatch(trimmed); m != nil {
		return m[1], nil, nil
	}
	m := includeRe.FindStringSubmatch(trimmed)
	if m == nil {
		return "", nil, fmt.Errorf("asmproc: malformed include directive %q", trimmed)
	}
	kind, dir, name := m[1], m[2], m[3]
	fname = filepath.Join(dir, name+".s")
	if kind == "RODATA" {
		prologue = []string{".section .rodata"}
	}
	return fname, prologue, nil
}

func parseIncludePath(trimmed string) (string, error) {
	rest := strings.TrimPrefix(trimmed, "#include ")
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", fmt.Errorf("asmproc: malformed #include %q", trimmed)
	}
	return rest[1 : len(rest)-1], nil
}

// processIncludeFile feeds an external assembly file through a fresh
// AsmBlock. A missing file is not an error: the caller degrades to
// emitting a GLOBAL_ASM passthrough #include, per the propagation
// policy's one sanctioned silent-recovery case.
func processIncludeFile(fname string, prologue []string, opts options.Opts, derived options.Derived, state *gstate.State) (*asmblock.Function, string, []string, error) {
	f, err := os.Open(fname)
	if os.IsNotExist(err) {
		return nil, "", nil, nil
	}
	if err != nil {
		return nil, "", nil, err
	}
	defer f.Close()

	block := asmblock.New(opts, derived, state, fname)
	for _, p := range prologue {
		if _, err := block.ProcessLine(p); err != nil {
			return nil, "", nil, err
		}
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if _, err := block.ProcessLine(sc.Text()); err != nil {
			return nil, "", nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, "", nil, err
	}
	src, fn, err := block.Finish()
	if err != nil {
		return nil, "", nil, err
	}
	return &fn, strings.Join(src, "\n"), []string{fname}, nil
}
