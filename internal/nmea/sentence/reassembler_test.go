package sentence

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(r *Reassembler, chunks ...string) []string {
	var got []string
	for _, c := range chunks {
		got = append(got, r.Feed([]byte(c))...)
	}
	return got
}

func TestReassembler_Feed(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		chunks []string
		want   []string
		carry  int
	}{
		{
			name:   "line split across chunks",
			chunks: []string{"$GPADC,01,02\n$GPR", "PM,03\n"},
			want:   []string{"$GPADC,01,02", "$GPRPM,03"},
		},
		{
			name:   "crlf terminated",
			chunks: []string{"$GPRPM,0A\r\n$Id: 1.0\r\n"},
			want:   []string{"$GPRPM,0A", "$Id:1.0"},
		},
		{
			name:   "spaces stripped from payload",
			chunks: []string{"$GPADC, 1A, 2B,3 C\n"},
			want:   []string{"$GPADC,1A,2B,3C"},
		},
		{
			name:   "partial line carried",
			chunks: []string{"$GPRPM,01\n$GPA"},
			want:   []string{"$GPRPM,01"},
			carry:  4,
		},
		{
			name:   "empty lines skipped",
			chunks: []string{"\n\r\n  \n$GPMOD,1\n"},
			want:   []string{"$GPMOD,1"},
		},
		{
			name:   "custom strip set",
			opts:   []Option{WithStrip([]byte{'\t'})},
			chunks: []string{"$Id a\tb\n"},
			want:   []string{"$Id ab"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReassembler(tt.opts...)
			got := feedAll(r, tt.chunks...)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.carry, r.Pending())
		})
	}
}

func TestReassembler_SplitInvariance(t *testing.T) {
	stream := "$GPADC,1A,2B,3C,4D,5E,6F,70,81\r\n$GPRPM,0BB8\n$Id: onboard 2.5\n" +
		"$GPGGA,144135,0609.894786,N,07536.099610,W,1,8,0.9,1500,M,,M,,*00\n$GPMOD,2\n"

	want := feedAll(NewReassembler(), stream)
	require.Len(t, want, 5)

	for size := 1; size <= len(stream); size++ {
		r := NewReassembler()
		var got []string
		for off := 0; off < len(stream); off += size {
			end := min(off+size, len(stream))
			got = append(got, r.Feed([]byte(stream[off:end]))...)
		}
		require.Equal(t, want, got, "chunk size %d", size)
	}
}

func TestReassembler_Overflow(t *testing.T) {
	long := strings.Repeat("A", 12)

	t.Run("resync drops until terminator", func(t *testing.T) {
		r := NewReassembler(WithMaxLine(8))
		got := feedAll(r, "$GPRPM,1\n", long, "BBB\n$GPRPM,2\n")
		assert.Equal(t, []string{"$GPRPM,1", "$GPRPM,2"}, got)
		assert.Equal(t, 1, r.Overflows())
	})

	t.Run("truncate emits cutoff as a line", func(t *testing.T) {
		r := NewReassembler(WithMaxLine(8), WithOverflow(OverflowTruncate))
		got := feedAll(r, long+"\n")
		assert.Equal(t, []string{"AAAAAAAA", "AAAA"}, got)
		assert.Equal(t, 1, r.Overflows())
	})

	t.Run("exact length with crlf fits", func(t *testing.T) {
		r := NewReassembler(WithMaxLine(8))
		got := feedAll(r, "$GPRPM,1\r\n")
		assert.Equal(t, []string{"$GPRPM,1"}, got)
		assert.Zero(t, r.Overflows())
	})

	t.Run("cr at limit before payload truncates", func(t *testing.T) {
		r := NewReassembler(WithMaxLine(4), WithOverflow(OverflowTruncate))
		got := feedAll(r, "ABCD\rEF\n")
		assert.Equal(t, []string{"ABCD", "\rEF"}, got)
		assert.Equal(t, 1, r.Overflows())
	})

	t.Run("cr at limit before payload resyncs", func(t *testing.T) {
		r := NewReassembler(WithMaxLine(4))
		got := feedAll(r, "ABCD\rEF\n", "GHI\n")
		assert.Equal(t, []string{"GHI"}, got)
		assert.Equal(t, 1, r.Overflows())
	})

	t.Run("cr at limit split from lf fits", func(t *testing.T) {
		r := NewReassembler(WithMaxLine(4))
		got := feedAll(r, "ABCD\r", "\nEF\n")
		assert.Equal(t, []string{"ABCD", "EF"}, got)
		assert.Zero(t, r.Overflows())
	})

	t.Run("reset drops a held cr", func(t *testing.T) {
		r := NewReassembler(WithMaxLine(4))
		r.Feed([]byte("ABCD\r"))
		assert.Equal(t, 5, r.Pending())
		r.Reset()
		assert.Zero(t, r.Pending())
		assert.Equal(t, []string{"EF"}, feedAll(r, "EF\n"))
	})

	t.Run("carry never exceeds limit", func(t *testing.T) {
		r := NewReassembler(WithMaxLine(8))
		for i := 0; i < 50; i++ {
			r.Feed([]byte("XYZ"))
			require.LessOrEqual(t, r.Pending(), 8)
		}
	})
}

func TestReassembler_End(t *testing.T) {
	r := NewReassembler()
	got := r.Feed([]byte("$GPRPM,1\n$GPRPM,"))
	assert.Equal(t, []string{"$GPRPM,1"}, got)

	err := r.End()
	assert.True(t, errors.Is(err, ErrSourceExhausted))
	assert.True(t, errors.Is(err, io.EOF))
	assert.Zero(t, r.Pending())
}

type chunkReader struct {
	chunks []string
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func TestLineReader(t *testing.T) {
	src := &chunkReader{chunks: []string{"$GPADC,01,02\n$GPR", "PM,03\n$GPMOD"}}
	lr := NewLineReader(src, 4)

	var got []string
	for {
		line, err := lr.ReadLine()
		if err != nil {
			require.ErrorIs(t, err, ErrSourceExhausted)
			break
		}
		got = append(got, line)
	}
	assert.Equal(t, []string{"$GPADC,01,02", "$GPRPM,03"}, got)

	_, err := lr.ReadLine()
	assert.ErrorIs(t, err, ErrSourceExhausted)
}

func TestParseOverflow(t *testing.T) {
	o, err := ParseOverflow("truncate")
	require.NoError(t, err)
	assert.Equal(t, OverflowTruncate, o)

	o, err = ParseOverflow("")
	require.NoError(t, err)
	assert.Equal(t, OverflowResync, o)

	_, err = ParseOverflow("drop")
	assert.Error(t, err)
}
