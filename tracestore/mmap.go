package tracestore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/mmap"
)

// section wraps one memory-mapped artifact file: its decoded header plus a
// ReaderAt over the whole file, following the same section-reader pattern
// perf.data's fileSection.sectionReader builds over an os.File — here the
// ReaderAt happens to be backed by a memory map rather than pread, since
// sections are opened once and read randomly for the life of a session.
type section struct {
	name   string
	path   string
	reader *mmap.ReaderAt
	header header
}

func openSection(dir, name string) (*section, error) {
	path := filepath.Join(dir, name)
	r, err := mmap.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("tracestore: mmap %s: %w", name, err)
	}

	prefix := make([]byte, headerSize)
	if _, err := r.ReadAt(prefix, 0); err != nil && err != io.EOF {
		r.Close()
		return nil, fmt.Errorf("tracestore: read header of %s: %w", name, err)
	}
	h, err := decodeHeader(prefix)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("tracestore: %s: %w", name, err)
	}
	return &section{name: name, path: path, reader: r, header: h}, nil
}

func (s *section) Close() error {
	if s == nil || s.reader == nil {
		return nil
	}
	return s.reader.Close()
}

// recordAt reads the fixed-width record at index i into buf, which must
// have length s.header.Stride.
func (s *section) recordAt(i uint64, buf []byte) error {
	if s.header.Stride == 0 {
		return fmt.Errorf("tracestore: %s has no fixed-width records", s.name)
	}
	if i >= s.header.RecordCount {
		return fmt.Errorf("tracestore: %s: record %d out of range (%d total): %w", s.name, i, s.header.RecordCount, errNotInRecording)
	}
	off := int64(headerSize) + int64(i)*int64(s.header.Stride)
	_, err := s.reader.ReadAt(buf, off)
	return err
}

// blob reads the variable-width byte range described by fs, relative to the
// start of the file (not the header), transparently decompressing it if it
// was written zstd-compressed (§11 domain stack: large value snapshots and
// source text compress well and are read infrequently enough to pay the
// decode cost per access).
func (s *section) blob(fs fileSection, compressed bool) ([]byte, error) {
	raw := make([]byte, fs.Size)
	if _, err := s.reader.ReadAt(raw, int64(fs.Offset)); err != nil {
		return nil, fmt.Errorf("tracestore: %s: read blob at %d+%d: %w", s.name, fs.Offset, fs.Size, err)
	}
	if !compressed {
		return raw, nil
	}
	dec, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("tracestore: %s: open zstd blob: %w", s.name, err)
	}
	defer dec.Close()
	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("tracestore: %s: decompress blob: %w", s.name, err)
	}
	return out, nil
}

var errNotInRecording = fmt.Errorf("not in recording")
