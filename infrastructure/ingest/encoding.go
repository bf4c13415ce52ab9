// Package ingest reads the party registry and ballot tallies from CSV files.
//
// Ballot files published by the elections committee are usually encoded in
// ISO-8859-8 (Hebrew); Windows-1255 and UTF-8 are also accepted. A UTF-8
// byte order mark at the start of any input overrides the configured
// encoding.
package ingest

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ahrav/go-tally/internal/ports"
)

// Supported encoding names.
const (
	EncodingISO88598    = "iso-8859-8"
	EncodingWindows1255 = "windows-1255"
	EncodingUTF8        = "utf-8"
)

// DefaultEncoding is the encoding of the committee's ballot exports.
const DefaultEncoding = EncodingISO88598

var encodings = map[string]encoding.Encoding{
	EncodingISO88598:    charmap.ISO8859_8,
	EncodingWindows1255: charmap.Windows1255,
	EncodingUTF8:        unicode.UTF8,
}

// SupportedEncodings returns the accepted encoding names, sorted.
func SupportedEncodings() []string {
	names := make([]string, 0, len(encodings))
	for name := range encodings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsSupportedEncoding reports whether name (case-insensitive) is accepted.
func IsSupportedEncoding(name string) bool {
	_, ok := encodings[strings.ToLower(name)]
	return ok
}

// lookupEncoding resolves name; an empty name means DefaultEncoding.
func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, ok := encodings[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)",
			ports.ErrUnsupportedEncoding, name, strings.Join(SupportedEncodings(), ", "))
	}
	return enc, nil
}

// decodingReader wraps r so that it yields UTF-8, decoding from enc unless
// the input starts with a byte order mark.
func decodingReader(r io.Reader, enc encoding.Encoding) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))
}
