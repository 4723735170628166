package stream

import (
	"bytes"
	"strings"
)

// DefaultMaxLineBytes bounds how much of a single unterminated line is buffered.
const DefaultMaxLineBytes = 1 << 20

// LineSplitter turns a byte stream delivered in arbitrary chunks into
// complete lines.
//
// Bytes are buffered across Feed calls and only complete lines are
// returned; the unterminated tail is kept for the next chunk. A newline
// byte never occurs inside a multi-byte UTF-8 sequence, so a character
// split across chunks is always whole again by the time its line is
// decoded. Invalid UTF-8 is replaced with U+FFFD.
//
// A LineSplitter is not safe for concurrent use.
type LineSplitter struct {
	buf        []byte
	max        int
	discarding bool // dropping an over-long line until its newline
}

// NewLineSplitter creates a splitter that drops lines longer than maxLineBytes
// (0 means DefaultMaxLineBytes, negative means unbounded).
func NewLineSplitter(maxLineBytes int) *LineSplitter {
	if maxLineBytes == 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &LineSplitter{max: maxLineBytes}
}

// Feed appends chunk and returns every line it completes, without the
// terminating "\n" (or "\r\n"). dropped counts over-long lines discarded
// while processing this chunk.
func (s *LineSplitter) Feed(chunk []byte) (lines []string, dropped int) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')

		if s.discarding {
			if i < 0 {
				return lines, dropped
			}
			s.discarding = false
			chunk = chunk[i+1:]
			continue
		}

		if i < 0 {
			s.buf = append(s.buf, chunk...)
			if s.max > 0 && len(s.buf) > s.max {
				s.buf = s.buf[:0]
				s.discarding = true
				dropped++
			}
			return lines, dropped
		}

		line := chunk[:i]
		if len(s.buf) > 0 {
			s.buf = append(s.buf, line...)
			line = s.buf
		}
		if s.max > 0 && len(line) > s.max {
			dropped++
		} else {
			lines = append(lines, decodeLine(line))
		}
		s.buf = s.buf[:0]
		chunk = chunk[i+1:]
	}
	return lines, dropped
}

// Pending returns the number of buffered bytes of the unterminated line.
func (s *LineSplitter) Pending() int {
	return len(s.buf)
}

// Reset discards buffered bytes.
func (s *LineSplitter) Reset() {
	s.buf = s.buf[:0]
	s.discarding = false
}

func decodeLine(b []byte) string {
	b = bytes.TrimSuffix(b, []byte{'\r'})
	return strings.ToValidUTF8(string(b), "�")
}
