package tracestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/codetracer/replay-core/corekit"
)

// sourceFile is a loaded source text plus its line index: lineIndex[i] is
// the byte offset at which line i+1 begins, letting sourceFor answer a
// line-range query without rescanning the text.
type sourceFile struct {
	text      string
	lineIndex []int
}

// sourceIndex lazily loads files from the recording's source/ snapshot
// directory and caches them for the life of the Store — recordings are
// read-only and a session typically revisits the same handful of files
// repeatedly (stepping, flow reconstruction, call-tree rendering all
// resolve source text).
type sourceIndex struct {
	dir string

	mtx   sync.Mutex
	cache map[string]*sourceFile
}

func newSourceIndex(dir string) *sourceIndex {
	return &sourceIndex{dir: dir, cache: make(map[string]*sourceFile)}
}

func (idx *sourceIndex) get(path string) (*sourceFile, error) {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	if sf, ok := idx.cache[path]; ok {
		return sf, nil
	}

	full := filepath.Join(idx.dir, filepath.FromSlash(path))
	if !strings.HasPrefix(full, filepath.Clean(idx.dir)) {
		return nil, corekit.NewError(corekit.KindLocation, "tracestore.sourceFor", "path escapes source snapshot", nil)
	}

	b, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, corekit.NewError(corekit.KindLocation, "tracestore.sourceFor", fmt.Sprintf("no source snapshot for %q", path), nil)
	}
	if err != nil {
		return nil, corekit.NewError(corekit.KindArtifactCorrupt, "tracestore.sourceFor", fmt.Sprintf("read source %q", path), err)
	}

	text := string(b)
	idxs := []int{0}
	for i, c := range b {
		if c == '\n' && i+1 < len(b) {
			idxs = append(idxs, i+1)
		}
	}

	sf := &sourceFile{text: text, lineIndex: idxs}
	idx.cache[path] = sf
	return sf, nil
}

// sourceFor returns the full source text for path plus its line index.
func (s *Store) sourceFor(path string) (string, []int, error) {
	sf, err := s.source.get(path)
	if err != nil {
		return "", nil, err
	}
	return sf.text, sf.lineIndex, nil
}

// lineText returns one line (1-indexed) of path, trimmed of its trailing
// newline, for rendering a single source row (e.g. a call-tree frame's
// context line).
func (s *Store) lineText(path string, line int) (string, error) {
	sf, err := s.source.get(path)
	if err != nil {
		return "", err
	}
	if line < 1 || line > len(sf.lineIndex) {
		return "", corekit.NewError(corekit.KindLocation, "tracestore.lineText",
			fmt.Sprintf("%s:%d out of range", path, line), nil)
	}
	start := sf.lineIndex[line-1]
	end := len(sf.text)
	if line < len(sf.lineIndex) {
		end = sf.lineIndex[line]
	}
	return strings.TrimRight(sf.text[start:end], "\r\n"), nil
}
