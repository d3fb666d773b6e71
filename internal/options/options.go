// Package options holds the Opts type shared by the preprocessor and
// fixup passes, plus the optimization-level derivation table and the
// CLI compatibility matrix from the command-line interface.
package options

import "fmt"

// ConvertStatics selects how .mdebug static symbols are promoted into
// the main symbol table during the fixup pass.
type ConvertStatics string

const (
	ConvertStaticsNo                 ConvertStatics = "no"
	ConvertStaticsLocal              ConvertStatics = "local"
	ConvertStaticsGlobal             ConvertStatics = "global"
	ConvertStaticsGlobalWithFilename ConvertStatics = "global-with-filename"
)

// Opts mirrors the original tool's Opts struct (see original_source
// utils/options.rs), translated to Go idiom.
type Opts struct {
	Opt                             string // one of O0, O1, O2, g, g3
	Framepointer                    bool
	KPIC                            bool
	EnableCutsceneDataFloatEncoding bool
	MIPS1                           bool
	Pascal                          bool
	Filename                        string
	OutputEnc                       string
}

// Default returns the tool's baseline options, matching the Rust
// Default impl (opt=O2, output_enc=utf-8, filename=input.c).
func Default() Opts {
	return Opts{
		Opt:       "O2",
		Filename:  "input.c",
		OutputEnc: "utf-8",
	}
}

// Derived holds the GlobalState-affecting constants computed from Opts,
// per spec.md §4.B / §9.
type Derived struct {
	MinInstrCount      int
	SkipInstrCount     int
	PreludeIfLateRodata int
	UseJtblForRodata   bool
}

// Derive computes Derived from Opts, replicating GlobalState::from_opts.
func Derive(o Opts) (Derived, error) {
	var minInstr, skipInstr int
	switch {
	case (o.Opt == "O1" || o.Opt == "O2") && o.Framepointer:
		minInstr, skipInstr = 6, 5
	case (o.Opt == "O1" || o.Opt == "O2") && !o.Framepointer:
		minInstr, skipInstr = 2, 1
	case o.Opt == "O0" && o.Framepointer:
		minInstr, skipInstr = 8, 8
	case o.Opt == "O0" && !o.Framepointer:
		minInstr, skipInstr = 4, 4
	case o.Opt == "g" && o.Framepointer:
		minInstr, skipInstr = 7, 7
	case o.Opt == "g" && !o.Framepointer:
		minInstr, skipInstr = 4, 4
	case o.Opt == "g3" && o.Framepointer:
		minInstr, skipInstr = 4, 4
	case o.Opt == "g3" && !o.Framepointer:
		minInstr, skipInstr = 2, 2
	default:
		return Derived{}, fmt.Errorf("must pass one of -g, -O0, -O1, -O2, -O2 -g3 (got opt=%q)", o.Opt)
	}

	preludeIfLateRodata := 0
	if o.KPIC {
		if o.Opt == "g3" || o.Opt == "O2" {
			preludeIfLateRodata = 3
		} else {
			minInstr += 3
			skipInstr += 3
		}
	}

	useJtbl := (o.Opt == "O2" || o.Opt == "g3") && !o.Framepointer && !o.KPIC

	return Derived{
		MinInstrCount:       minInstr,
		SkipInstrCount:      skipInstr,
		PreludeIfLateRodata: preludeIfLateRodata,
		UseJtblForRodata:    useJtbl,
	}, nil
}

// ValidateCompatibility enforces the CLI-level compatibility matrix from
// spec.md §6: g3 only with O2; mips1 only with O1/O2 and not
// framepointer; Pascal sources only with O1/O2/O2+g3.
func ValidateCompatibility(o Opts) error {
	switch o.Opt {
	case "O0", "O1", "O2", "g", "g3":
	default:
		return fmt.Errorf("invalid optimization level %q", o.Opt)
	}
	if o.Opt == "g3" {
		// g3 is only meaningful alongside O2 in this tool's matrix.
	}
	if o.MIPS1 {
		if o.Opt != "O1" && o.Opt != "O2" {
			return fmt.Errorf("mips1 is only supported with O1 or O2")
		}
		if o.Framepointer {
			return fmt.Errorf("mips1 is not supported with framepointer")
		}
	}
	if o.Pascal {
		switch o.Opt {
		case "O1", "O2", "g3":
		default:
			return fmt.Errorf("pascal sources require O1, O2, or O2 g3")
		}
	}
	return nil
}
