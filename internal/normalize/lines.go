package normalize

import (
	"bufio"
	"errors"
	"io"
)

// ErrLineTooLong reports a line longer than the reader's limit. The line has
// been consumed; the next call continues with the following line.
var ErrLineTooLong = errors.New("line too long")

// LineReader yields newline-terminated lines while holding at most max bytes
// of any one line in memory.
type LineReader struct {
	r   *bufio.Reader
	max int
	buf []byte
}

// NewLineReader returns a LineReader over r. Lines longer than max bytes,
// terminator excluded, are skipped with ErrLineTooLong.
func NewLineReader(r io.Reader, max int) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 64*1024), max: max}
}

// Next returns the next line without its "\n". It returns io.EOF once the input
// is exhausted; a final line without a terminator is still returned.
func (lr *LineReader) Next() (string, error) {
	lr.buf = lr.buf[:0]
	read, tooLong := false, false
	for {
		frag, err := lr.r.ReadSlice('\n')
		if len(frag) > 0 {
			read = true
		}
		if !tooLong {
			line := frag
			if err == nil {
				line = frag[:len(frag)-1]
			}
			if len(lr.buf)+len(line) > lr.max {
				tooLong = true
				lr.buf = lr.buf[:0]
			} else {
				lr.buf = append(lr.buf, line...)
			}
		}

		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == nil, err == io.EOF && read:
			if tooLong {
				return "", ErrLineTooLong
			}
			return string(lr.buf), nil
		default:
			return "", err
		}
	}
}
