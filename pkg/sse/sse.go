// Package sse reads the data lines of a server-sent event stream.
//
// Each data line is returned on its own, exactly as the chat backends use
// them: one JSON fragment per line. Event names, ids, retry hints and
// comments are skipped. Lines may be split across reads at any byte.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrLineTooLong is returned when a line exceeds the reader's limit.
var ErrLineTooLong = errors.New("sse: line too long")

// DefaultMaxLine is the default limit on the length of a single line.
const DefaultMaxLine = 1 << 20

var dataPrefix = []byte("data:")

// Reader splits an event stream into data payloads.
type Reader struct {
	br      *bufio.Reader
	maxLine int
	line    []byte
	err     error
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br:      bufio.NewReaderSize(r, 4096),
		maxLine: DefaultMaxLine,
	}
}

// SetMaxLine changes the line length limit. n <= 0 restores the default.
func (r *Reader) SetMaxLine(n int) {
	if n <= 0 {
		n = DefaultMaxLine
	}
	r.maxLine = n
}

// Next returns the payload of the next data line with surrounding white
// space removed. The returned slice is valid until the next call.
//
// At the end of the stream Next returns io.EOF. A final line without a
// trailing newline is still returned. Any other error comes from the
// underlying reader.
func (r *Reader) Next() ([]byte, error) {
	for r.err == nil {
		line, err := r.readLine()
		r.err = err
		if payload, ok := dataPayload(line); ok {
			return payload, nil
		}
	}
	return nil, r.err
}

// readLine returns one line without its terminator. It returns the partial
// line together with the error when the stream ends mid-line.
func (r *Reader) readLine() ([]byte, error) {
	r.line = r.line[:0]
	for {
		frag, err := r.br.ReadSlice('\n')
		if len(r.line)+len(frag) > r.maxLine {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, r.maxLine)
		}
		r.line = append(r.line, frag...)
		switch {
		case err == nil:
			return bytes.TrimRight(r.line, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return bytes.TrimRight(r.line, "\r\n"), err
		}
	}
}

func dataPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	return bytes.TrimSpace(line[len(dataPrefix):]), true
}
