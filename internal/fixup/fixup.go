// Package fixup implements the ELF surgeon: it splices the bytes,
// symbols, and relocations produced by assembling a GLOBAL_ASM block's
// raw instructions back into the relocatable object the compiler
// produced for the transformed, placeholder-bearing source file.
package fixup

import (
	"context"
	"fmt"
	"os"

	"github.com/xyproto/asmproc/internal/asmblock"
	"github.com/xyproto/asmproc/internal/asmrun"
	"github.com/xyproto/asmproc/internal/elfobj"
	"github.com/xyproto/asmproc/internal/options"
)

// Config carries the fixup pass's optional behaviors (spec.md §4.E
// inputs beyond the object path, functions, prelude, and assembler).
type Config struct {
	DropMdebugGptab bool
	ConvertStatics  options.ConvertStatics
	OutputEnc       string
}

// state threads the working data of one Run through the fifteen steps.
// o is the compiler-produced object, mutated in place and written back
// at the end; a is the freshly assembled object from Step 3.
type state struct {
	cfg   Config
	funcs []asmblock.Function

	o *elfobj.File
	a *elfobj.File

	prevLoc map[string]uint32
	splices map[string][]spliceRec

	lateRodataPosMap      map[uint32]uint32
	jtblReservedPositions map[uint32]bool

	relocatedInA map[int]bool

	modifiedTextPositions map[uint32]bool

	// Populated by deduplicateSymbols/reorderSymbols: every original
	// symbol identity's final index in the merged, reordered table.
	oAlias      map[int]int
	aAlias      map[int]int
	oIndexToNew map[int]int
	aIndexToNew map[int]int
}

type spliceRec struct {
	pos         uint32
	count       uint32
	placeholder string
	fnDesc      string
}

// Run performs the full fixup pass against the object file at objPath,
// using assembler to assemble the concatenated Function bodies prefixed
// with prelude, per spec.md §4.E.
func Run(ctx context.Context, objPath string, funcs []asmblock.Function, prelude []byte, assembler []string, cfg Config) error {
	unlock, err := lockPath(objPath)
	if err != nil {
		return fmt.Errorf("fixup: locking %s: %w", objPath, err)
	}
	defer unlock()

	raw, err := os.ReadFile(objPath)
	if err != nil {
		return fmt.Errorf("fixup: reading %s: %w", objPath, err)
	}
	o, err := elfobj.Parse(raw)
	if err != nil {
		return fmt.Errorf("fixup: parsing %s: %w", objPath, err)
	}

	return runSteps(ctx, objPath, funcs, prelude, assembler, cfg, o)
}

// runSteps builds a clean working state over o and executes Steps 1-15
// of the surgeon in order.
func runSteps(ctx context.Context, objPath string, funcs []asmblock.Function, prelude []byte, assembler []string, cfg Config, o *elfobj.File) error {
	st := &state{
		cfg:                   cfg,
		funcs:                 funcs,
		o:                     o,
		prevLoc:               map[string]uint32{},
		splices:               map[string][]spliceRec{},
		lateRodataPosMap:      map[uint32]uint32{},
		jtblReservedPositions: map[uint32]bool{},
		relocatedInA:          map[int]bool{},
		modifiedTextPositions: map[uint32]bool{},
	}

	asmSrc, err := st.locatePlaceholdersAndPad() // Step 1
	if err != nil {
		return err
	}

	fullAsm := st.concatenateAssembly(prelude, asmSrc) // Step 2

	objOut, err := st.assemble(ctx, assembler, fullAsm) // Step 3
	if err != nil {
		return err
	}
	a, err := elfobj.Parse(objOut)
	if err != nil {
		return fmt.Errorf("fixup: parsing assembled object: %w", err)
	}
	st.a = a

	if err := st.relocateLateRodata(); err != nil { // Step 4
		return err
	}
	st.computeRelocatedSymbols() // Step 5

	if err := st.spliceSectionBytes(); err != nil { // Step 6
		return err
	}
	st.mergeReginfo() // Step 7

	if cfg.DropMdebugGptab {
		st.o.DropMdebugGptab() // Step 8
	} else if cfg.ConvertStatics != "" && cfg.ConvertStatics != options.ConvertStaticsNo {
		if err := st.promoteMdebugStatics(objPath); err != nil { // Step 9
			return err
		}
	}

	newSyms, err := st.mergeSymbolTables() // Step 10
	if err != nil {
		return err
	}
	newSyms, err = st.deduplicateSymbols(newSyms) // Step 11
	if err != nil {
		return err
	}
	locals := st.reorderSymbols(newSyms) // Step 12

	if err := st.rewriteRelocations(); err != nil { // Step 13
		return err
	}
	st.writeSymtab(newSyms, locals)

	// Step 14 (.mdebug offset rewriting) happens automatically inside
	// elfobj.File.Write when a section's file offset moves.
	out, err := st.o.Write() // Step 15
	if err != nil {
		return fmt.Errorf("fixup: serializing %s: %w", objPath, err)
	}

	tmp := objPath + ".asmproc.tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("fixup: writing temp output: %w", err)
	}
	if err := os.Rename(tmp, objPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("fixup: replacing %s: %w", objPath, err)
	}
	return nil
}

// assemble writes src to a temp assembly file, invokes the assembler to
// produce a temp object file, and returns that object's bytes. Both temp
// files are removed on every exit path (spec.md §5).
func (st *state) assemble(ctx context.Context, assembler []string, src []byte) ([]byte, error) {
	asmFile, err := os.CreateTemp("", "asmproc-*.s")
	if err != nil {
		return nil, fmt.Errorf("fixup: creating temp assembly file: %w", err)
	}
	asmPath := asmFile.Name()
	defer os.Remove(asmPath)
	if _, err := asmFile.Write(src); err != nil {
		asmFile.Close()
		return nil, fmt.Errorf("fixup: writing temp assembly: %w", err)
	}
	if err := asmFile.Close(); err != nil {
		return nil, fmt.Errorf("fixup: writing temp assembly: %w", err)
	}

	outFile, err := os.CreateTemp("", "asmproc-*.o")
	if err != nil {
		return nil, fmt.Errorf("fixup: creating temp object file: %w", err)
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	if err := asmrun.Assemble(ctx, assembler, asmPath, outPath); err != nil {
		return nil, fmt.Errorf("fixup: assembling: %w", err)
	}
	return os.ReadFile(outPath)
}
