package motion

import "bytes"

// Marker is the ISO base media "file-type" box type. In a motion photo the
// video payload starts with this box.
var Marker = []byte{0x66, 0x74, 0x79, 0x70} // "ftyp"

// BoxHeaderOffset is the distance from the start of a box to its type field.
// The preceding four bytes hold the box size, which detection ignores.
const BoxHeaderOffset = 4

// Locate returns the lowest index at which pattern occurs in buf.
func Locate(buf, pattern []byte) (int, bool) {
	if len(pattern) == 0 || len(buf) < len(pattern) {
		return 0, false
	}
	i := bytes.Index(buf, pattern)
	if i < 0 {
		return 0, false
	}
	return i, true
}

// LocateBox returns the start of the first file-type box in buf: the lowest
// index i such that buf[i+4:i+8] is the marker. Both the size field and the
// marker must lie inside buf.
func LocateBox(buf []byte) (int, bool) {
	if len(buf) < BoxHeaderOffset {
		return 0, false
	}
	i, ok := Locate(buf[BoxHeaderOffset:], Marker)
	if !ok {
		return 0, false
	}
	return i, true
}
