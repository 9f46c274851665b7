package token

import "encoding/binary"

// Canonical hashing helpers. Variable-length fields are length-prefixed
// with a little-endian uint32; optional fields carry a presence byte.

func appendField(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func appendOptional(buf, b []byte, present bool) []byte {
	if !present {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return appendField(buf, b)
}
