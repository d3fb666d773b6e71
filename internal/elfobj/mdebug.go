package elfobj

import "encoding/binary"

// HDRR is the fixed-size symbolic debug header embedded at the start of
// an IDO ".mdebug" section. Only the fields naming absolute file offsets
// are modeled here; everything else is passed through untouched.
const hdrrSize = 96

// hdrrOffsetFields lists the byte offset, within an HDRR, of every field
// that holds an absolute file offset. When a ".mdebug" section moves
// during Write, each of these is shifted by the same delta.
var hdrrOffsetFields = []int{12, 20, 28, 36, 44, 52, 60, 68, 76, 84, 92}

// HDRR field byte offsets needed by internal/fixup's static-symbol
// promotion pass. A count field always sits 4 bytes before its matching
// absolute-offset field listed in hdrrOffsetFields.
const (
	HdrrIsymMaxOffset = 32
	HdrrCbSymOffset   = 36
	HdrrIssMaxOffset  = 56
	HdrrCbSsOffset    = 60
)

// HDRRValid reports whether data begins with a well-formed HDRR header.
func HDRRValid(data []byte) bool {
	return len(data) >= hdrrSize && binary.BigEndian.Uint16(data[0:2]) == hdrrMagic
}

// HDRRUint32 reads a big-endian uint32 field out of an HDRR at offset.
func HDRRUint32(data []byte, offset int) uint32 {
	return binary.BigEndian.Uint32(data[offset : offset+4])
}

// adjustHDRROffsets shifts every absolute file-offset field inside a
// ".mdebug" section's HDRR by delta, in place. Fields already zero (an
// empty sub-table) are left alone so they don't become bogus nonzero
// offsets.
func adjustHDRROffsets(data []byte, delta int32) bool {
	if len(data) < hdrrSize {
		return false
	}
	magic := binary.BigEndian.Uint16(data[0:2])
	if magic != hdrrMagic {
		return false
	}
	be := binary.BigEndian
	for _, off := range hdrrOffsetFields {
		v := be.Uint32(data[off : off+4])
		if v == 0 {
			continue
		}
		be.PutUint32(data[off:off+4], uint32(int32(v)+delta))
	}
	return true
}
