package elfobj

import "bytes"

// StrTab is a Latin-1 string table: byte-for-byte fidelity matters (a
// symbol name might not be valid UTF-8), so it's never converted through
// Go's native string type beyond what's needed to hand a caller a
// result (Design Note "byte-for-byte strings").
type StrTab struct {
	Data []byte
}

// Lookup scans forward from index to the next NUL byte and returns the
// bytes in between.
func (t *StrTab) Lookup(index uint32) []byte {
	if int(index) >= len(t.Data) {
		return nil
	}
	end := bytes.IndexByte(t.Data[index:], 0)
	if end < 0 {
		return t.Data[index:]
	}
	return t.Data[index : int(index)+end]
}

// LookupString is a convenience wrapper over Lookup for display purposes
// only; comparisons and storage should prefer Lookup's raw bytes.
func (t *StrTab) LookupString(index uint32) string {
	return string(t.Lookup(index))
}

// Add appends s followed by a NUL terminator, returning the offset at
// which it was stored.
func (t *StrTab) Add(s []byte) uint32 {
	off := uint32(len(t.Data))
	t.Data = append(t.Data, s...)
	t.Data = append(t.Data, 0)
	return off
}

// AddString is a convenience wrapper over Add for Go string literals.
func (t *StrTab) AddString(s string) uint32 {
	return t.Add([]byte(s))
}
