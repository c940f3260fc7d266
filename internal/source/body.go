package source

// body.go prepares response bodies for CSV parsing without buffering them:
//
//   - a leading UTF-8 byte order mark is dropped
//   - invalid UTF-8 sequences become U+FFFD
//   - bytes read are counted for download logging
//
// Use decodeBody to apply all of them in the right order.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// countingReader tracks the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// decodeBody wraps a raw body. The counter sees raw bytes, before the BOM is
// removed and before sanitising changes lengths.
func decodeBody(r io.Reader) (io.Reader, *countingReader) {
	counter := &countingReader{r: r}
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return transform.NewReader(counter, dec), counter
}
