package reader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var (
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	gzipMagic = []byte{0x1F, 0x8B}
)

// decodeSource unwraps gzip input, detected by its magic bytes, and decodes
// text in the named encoding to UTF-8.
func decodeSource(r io.Reader, encoding string) (io.Reader, func() error, error) {
	br := bufio.NewReader(r)
	var out io.Reader = br
	closeFn := func() error { return nil }

	if head, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip source: %w", err)
		}
		out, closeFn = zr, zr.Close
	}

	if encoding != "" {
		enc, err := htmlindex.Get(encoding)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("unknown source encoding %q", encoding)
		}
		out = transform.NewReader(out, enc.NewDecoder())
	}
	return out, closeFn, nil
}

// cleanSource strips a leading UTF-8 byte order mark and replaces invalid
// UTF-8 bytes with '?' while the text is read.
func cleanSource(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return &utf8Sanitizer{r: br}
}

// utf8Sanitizer rewrites invalid UTF-8 in place. A multi-byte sequence cut
// by a read boundary is held back until the next read.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	off := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}

	data := p[:n]
	if utf8.Valid(data) {
		return n, err
	}

	w := 0
	for i := 0; i < n; {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			if err == nil && !utf8.FullRune(data[i:]) {
				s.pending = append(s.pending, data[i:]...)
				return w, nil
			}
			data[w] = '?'
			w++
			i++
			continue
		}
		copy(data[w:], data[i:i+size])
		w += size
		i += size
	}
	return w, err
}
