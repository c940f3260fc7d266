package source

import (
	"bytes"
	"io"
	"testing"
)

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"with BOM", []byte("\xEF\xBB\xBFid,name\n"), "id,name\n"},
		{"without BOM", []byte("id,name\n"), "id,name\n"},
		{"empty", []byte{}, ""},
		{"BOM only", []byte("\xEF\xBB\xBF"), ""},
		{"invalid byte", []byte("a\xffb"), "a�b"},
		{"valid multibyte", []byte("名前"), "名前"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, counter := decodeBody(bytes.NewReader(tt.input))
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if counter.n != int64(len(tt.input)) {
				t.Errorf("counted %d bytes, want %d", counter.n, len(tt.input))
			}
		})
	}
}

func TestDecodeBodySplitSequence(t *testing.T) {
	// A multi-byte rune split across reads must survive intact.
	input := []byte("x,é\n")
	r, _ := decodeBody(io.MultiReader(bytes.NewReader(input[:3]), bytes.NewReader(input[3:])))

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "x,é\n" {
		t.Errorf("got %q", got)
	}
}
