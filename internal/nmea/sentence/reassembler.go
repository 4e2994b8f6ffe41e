package sentence

import (
	"errors"
	"fmt"
	"io"
)

const (
	//DefaultMaxLine is the size of the line buffer on the onboard computer.
	DefaultMaxLine = 125
	//DefaultBufferSize is the size of one read from the device.
	DefaultBufferSize = 300

	lineFeed       = 0x0A
	carriageReturn = 0x0D
)

//ErrSourceExhausted is returned when the byte source reports end of stream.
var ErrSourceExhausted = fmt.Errorf("source exhausted: %w", io.EOF)

//Overflow selects what happens to a line longer than the maximum line length.
type Overflow int

const (
	//OverflowResync drops the long line and everything up to the next terminator.
	OverflowResync Overflow = iota
	//OverflowTruncate emits the first MaxLine bytes as a line, as if a
	//terminator followed them; the remaining bytes start the next line.
	OverflowTruncate
)

func (o Overflow) String() string {
	switch o {
	case OverflowResync:
		return "resync"
	case OverflowTruncate:
		return "truncate"
	default:
		return fmt.Sprintf("overflow(%d)", int(o))
	}
}

//ParseOverflow maps "resync" and "truncate" to an Overflow policy.
func ParseOverflow(s string) (Overflow, error) {
	switch s {
	case "resync", "":
		return OverflowResync, nil
	case "truncate":
		return OverflowTruncate, nil
	}
	return 0, fmt.Errorf("unknown overflow policy %q", s)
}

//Reassembler turns arbitrarily fragmented chunks into complete lines.
//It is not safe for concurrent use; the goroutine owning the byte source
//calls it synchronously.
type Reassembler struct {
	maxLine   int
	overflow  Overflow
	strip     [256]bool
	carry     []byte
	skipping  bool
	pendingCR bool
	overflows int
}

type Option func(*Reassembler)

//WithMaxLine sets the maximum length of a line, after stripping.
func WithMaxLine(n int) Option {
	return func(r *Reassembler) {
		if n > 0 {
			r.maxLine = n
		}
	}
}

func WithOverflow(o Overflow) Option {
	return func(r *Reassembler) {
		r.overflow = o
	}
}

//WithStrip replaces the set of bytes removed from inside every line.
//Terminator bytes are ignored.
func WithStrip(set []byte) Option {
	return func(r *Reassembler) {
		r.strip = [256]bool{}
		for _, b := range set {
			if b == lineFeed {
				continue
			}
			r.strip[b] = true
		}
	}
}

//NewReassembler returns a Reassembler stripping spaces, with a 125 byte
//line limit and the resync overflow policy unless overridden.
func NewReassembler(opts ...Option) *Reassembler {
	r := &Reassembler{
		maxLine:  DefaultMaxLine,
		overflow: OverflowResync,
	}
	r.strip[' '] = true
	for _, opt := range opts {
		opt(r)
	}
	r.carry = make([]byte, 0, r.maxLine)
	return r
}

//Feed consumes one chunk and returns the lines it completed.
func (r *Reassembler) Feed(chunk []byte) []string {
	var lines []string
	for _, b := range chunk {
		if r.pendingCR {
			r.pendingCR = false
			if b == lineFeed {
				if line, ok := r.complete(); ok {
					lines = append(lines, line)
				}
				continue
			}
			// the CR held back at the limit was payload
			lines = r.spill(lines, carriageReturn)
		}
		if b == lineFeed {
			if r.skipping {
				r.skipping = false
				continue
			}
			if line, ok := r.complete(); ok {
				lines = append(lines, line)
			}
			continue
		}
		if r.skipping || r.strip[b] {
			continue
		}
		if len(r.carry) >= r.maxLine {
			// a CR at the limit is held until the next byte tells
			// whether it terminates the line
			if b == carriageReturn && len(r.carry) == r.maxLine {
				r.pendingCR = true
				continue
			}
			lines = r.spill(lines, b)
			continue
		}
		r.carry = append(r.carry, b)
	}
	return lines
}

//spill applies the overflow policy to a full carry; b is the first byte
//past the limit.
func (r *Reassembler) spill(lines []string, b byte) []string {
	r.overflows++
	if r.overflow == OverflowTruncate {
		lines = append(lines, string(r.carry))
		r.carry = append(r.carry[:0], b)
		return lines
	}
	r.skipping = true
	r.carry = r.carry[:0]
	return lines
}

func (r *Reassembler) complete() (string, bool) {
	line := r.carry
	if n := len(line); n > 0 && line[n-1] == carriageReturn {
		line = line[:n-1]
	}
	r.carry = r.carry[:0]
	if len(line) == 0 {
		return "", false
	}
	return string(line), true
}

//Pending is the number of bytes carried to the next Feed.
func (r *Reassembler) Pending() int {
	if r.pendingCR {
		return len(r.carry) + 1
	}
	return len(r.carry)
}

//Overflows counts the lines that hit the maximum length.
func (r *Reassembler) Overflows() int {
	return r.overflows
}

//Reset discards the carried partial line.
func (r *Reassembler) Reset() {
	r.carry = r.carry[:0]
	r.skipping = false
	r.pendingCR = false
}

//End signals the end of the stream. The unterminated partial line is
//discarded.
func (r *Reassembler) End() error {
	r.Reset()
	return ErrSourceExhausted
}

//LineReader exposes the lines of an io.Reader one at a time.
type LineReader struct {
	src     io.Reader
	r       *Reassembler
	buf     []byte
	pending []string
	err     error
}

//NewLineReader reads the source in chunks of size bufSize.
func NewLineReader(src io.Reader, bufSize int, opts ...Option) *LineReader {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &LineReader{
		src: src,
		r:   NewReassembler(opts...),
		buf: make([]byte, bufSize),
	}
}

//ReadLine blocks until a complete line is available. It returns
//ErrSourceExhausted when the source ends, or the read error.
func (lr *LineReader) ReadLine() (string, error) {
	for len(lr.pending) == 0 {
		if lr.err != nil {
			return "", lr.err
		}
		n, err := lr.src.Read(lr.buf)
		if n > 0 {
			lr.pending = lr.r.Feed(lr.buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				lr.err = lr.r.End()
			} else {
				lr.err = err
			}
		}
	}
	line := lr.pending[0]
	lr.pending = lr.pending[1:]
	return line, nil
}
