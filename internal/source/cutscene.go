package source

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	cutsceneDataRe = regexp.MustCompile(`CutsceneData .*\[\] = \{`)
	floatLiteralRe = regexp.MustCompile(`[-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?f`)
)

// rewriteCutsceneFloats replaces every float literal in line with the
// decimal integer whose four bytes are the literal's big-endian
// IEEE-754 encoding, the representation cutscene tables in the original
// game data used in place of float constants.
func rewriteCutsceneFloats(line string) string {
	return floatLiteralRe.ReplaceAllStringFunc(line, func(m string) string {
		lit := strings.TrimSuffix(strings.TrimSpace(m), "f")
		f, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return m
		}
		bits := math.Float32bits(float32(f))
		return fmt.Sprintf("%d", bits)
	})
}
