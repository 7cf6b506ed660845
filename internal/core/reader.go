package core

// reader.go provides the io.Reader wrappers used by the parser.
//
//   - lineCountingReader: counts physical lines so blank lines, which
//     encoding/csv drops silently, can still be counted as rows
//   - skipBOM: removes a UTF-8 BOM (0xEF 0xBB 0xBF) written by Windows tools

import (
	"bufio"
	"bytes"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// lineCountingReader counts newline bytes passing through it.
// The count is only meaningful once the consumer has reached EOF,
// because encoding/csv reads ahead through a buffer.
type lineCountingReader struct {
	reader   io.Reader
	newlines int
	read     int64
	last     byte
}

func newLineCountingReader(r io.Reader) *lineCountingReader {
	return &lineCountingReader{reader: r}
}

// Read implements io.Reader.
func (r *lineCountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.newlines += bytes.Count(p[:n], []byte{'\n'})
		r.read += int64(n)
		r.last = p[n-1]
	}
	return n, err
}

// Lines returns the number of physical lines read so far.
// A final line without a trailing newline counts as a line.
func (r *lineCountingReader) Lines() int {
	if r.read > 0 && r.last != '\n' {
		return r.newlines + 1
	}
	return r.newlines
}

// skipBOM returns a reader positioned after a leading UTF-8 BOM, if any.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
