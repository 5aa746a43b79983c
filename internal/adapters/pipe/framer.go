package pipe

import (
	"bytes"
)

// Framer splits a byte stream into newline-delimited segments. The trailing
// partial segment is kept for the next Push. Blank segments are skipped and
// a trailing '\r' is removed.
type Framer struct {
	buf      []byte
	max      int
	skipping bool
}

// NewFramer returns a framer that discards any segment longer than max
// bytes. max <= 0 disables the limit.
func NewFramer(max int) *Framer {
	return &Framer{max: max}
}

// Push appends chunk and returns the complete segments it finished, in
// order. The returned slices do not alias chunk. ErrFrameTooLarge is
// returned, alongside any good segments, when an oversized segment was
// dropped; framing resumes after its newline.
func (f *Framer) Push(chunk []byte) ([][]byte, error) {
	var (
		out     [][]byte
		dropped bool
	)
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			if !f.skipping {
				f.buf = append(f.buf, chunk...)
				if f.max > 0 && len(f.buf) > f.max {
					f.buf = f.buf[:0]
					f.skipping = true
					dropped = true
				}
			}
			break
		}

		if f.skipping {
			f.skipping = false
		} else {
			f.buf = append(f.buf, chunk[:i]...)
			if f.max > 0 && len(f.buf) > f.max {
				dropped = true
			} else if seg := bytes.TrimSuffix(f.buf, []byte{'\r'}); len(bytes.TrimSpace(seg)) > 0 {
				out = append(out, bytes.Clone(seg))
			}
		}
		f.buf = f.buf[:0]
		chunk = chunk[i+1:]
	}

	if dropped {
		return out, ErrFrameTooLarge
	}
	return out, nil
}

// Buffered returns the number of bytes held for an incomplete segment.
func (f *Framer) Buffered() int { return len(f.buf) }

// Reset drops any partial segment.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.skipping = false
}
