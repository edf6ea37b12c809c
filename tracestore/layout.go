// Package tracestore provides random-access, read-only access to a recorded
// CodeTracer artifact: the event stream, step stream, symbol table, type
// table, value-snapshot arena, and source snapshot (§4.1). Only the step
// stream is memory-mapped and addressed by fixed-width records; the other
// sections are JSON bodies read whole, and source files are read as plain
// text. Section framing follows the perf.data header/section-table layout
// (a magic, a size, and an array of {offset, size} fileSection entries
// pointing into the same file), generalised here to several named sections
// instead of perf's fixed Attrs/Data pair.
package tracestore

import (
	"encoding/binary"
	"fmt"
)

// magic identifies a CodeTracer trace artifact section file. Every section
// file begins with this 8-byte value.
var magic = [8]byte{'c', 't', 'r', 'a', 'c', 'e', '0', '1'}

// minVersion is the oldest artifact format version this build accepts (§4.1
// failure semantics: "version below minimum" is ArtifactCorrupt).
const minVersion uint32 = 1

// currentVersion is the format version this build writes test fixtures at
// and expects to read by default.
const currentVersion uint32 = 1

// byteOrder is the artifact's fixed wire endianness. The format declares its
// own endianness in the header rather than assume host order, since
// recordings move between machines.
var byteOrder = binary.LittleEndian

// header is the fixed-size prefix of every section file: magic, version,
// endianness tag, and the stride (record size in bytes) of the fixed-width
// records that follow the header. A stride of 0 means the section holds no
// fixed-width records (e.g. the source snapshot, which is a single blob).
type header struct {
	Magic      [8]byte
	Version    uint32
	Endianness uint8 // 0 = little-endian, 1 = big-endian
	_          [3]byte // padding to 4-byte alignment
	Stride     uint32
	RecordCount uint64
}

const headerSize = 8 + 4 + 1 + 3 + 4 + 8 // = 28 bytes

// fileSection locates a variable-width blob within a section file by byte
// offset and length, exactly as perf.data's fileSection locates its Attrs
// and Data tables.
type fileSection struct {
	Offset uint64
	Size   uint64
}

func decodeHeader(buf []byte) (header, error) {
	var h header
	if len(buf) < headerSize {
		return h, fmt.Errorf("tracestore: header truncated: got %d bytes, want %d", len(buf), headerSize)
	}
	copy(h.Magic[:], buf[0:8])
	if h.Magic != magic {
		return h, fmt.Errorf("tracestore: bad magic %x", h.Magic)
	}
	h.Version = byteOrder.Uint32(buf[8:12])
	if h.Version < minVersion {
		return h, fmt.Errorf("tracestore: version %d below minimum %d", h.Version, minVersion)
	}
	h.Endianness = buf[12]
	h.Stride = byteOrder.Uint32(buf[16:20])
	h.RecordCount = byteOrder.Uint64(buf[20:28])
	return h, nil
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:8], magic[:])
	byteOrder.PutUint32(buf[8:12], h.Version)
	buf[12] = h.Endianness
	byteOrder.PutUint32(buf[16:20], h.Stride)
	byteOrder.PutUint64(buf[20:28], h.RecordCount)
	return buf
}
