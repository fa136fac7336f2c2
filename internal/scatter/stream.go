package scatter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

type readCloser struct {
	*bufio.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openText opens path for line reading, decompressing .gz transparently.
// BGZF is multi-member gzip and reads the same way.
func openText(path string) (*readCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rc := &readCloser{closers: []io.Closer{f}}
	var src io.Reader = f
	if isGzip(path) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		rc.closers = append(rc.closers, zr)
		src = zr
	}
	rc.Reader = bufio.NewReaderSize(src, 1<<20)
	return rc, nil
}

type writeCloser struct {
	*bufio.Writer
	gz io.WriteCloser
	f  *os.File
}

func (w *writeCloser) Close() error {
	err := w.Flush()
	if w.gz != nil {
		if cerr := w.gz.Close(); err == nil {
			err = cerr
		}
	}
	if serr := w.f.Sync(); err == nil {
		err = serr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// createText creates path for writing. A .gz path is written as BGZF, the
// blocked gzip that tabix and htslib index, ending with the EOF block.
func createText(path string) (*writeCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	w := &writeCloser{f: f}
	var dst io.Writer = f
	if isGzip(path) {
		w.gz = bgzf.NewWriter(f, 1)
		dst = w.gz
	}
	w.Writer = bufio.NewWriterSize(dst, 1<<20)
	return w, nil
}

// forEachLine calls fn with every line of r including its terminator. A
// final line without a newline gets one appended.
func forEachLine(r *bufio.Reader, fn func(line []byte) error) error {
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if line[len(line)-1] != '\n' {
				line = append(line, '\n')
			}
			if ferr := fn(line); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
