// SPDX-License-Identifier: MIT

package tbf

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// lookupCharset resolves a header encoding name (e.g. "utf-8",
// "iso-8859-1") to a transform via the IANA registry.
func lookupCharset(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("tbf: unsupported encoding %q: %w", name, err)
	}
	if enc == nil {
		// The index knows the name but has no Go implementation for it.
		return nil, fmt.Errorf("tbf: unsupported encoding %q", name)
	}
	return enc, nil
}

// encodeText converts a Go string to the stream charset. The separator byte
// terminates every string on the wire, so encoded text must not contain it.
func encodeText(enc encoding.Encoding, s string) ([]byte, error) {
	b, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("tbf: encode %q: %w", s, err)
	}
	for _, c := range b {
		if c == flagSeparator {
			return nil, fmt.Errorf("tbf: string %q contains reserved separator byte", s)
		}
	}
	return b, nil
}

// decodeText converts raw stream bytes back to a Go string. The x/text
// decoders substitute U+FFFD for undecodable input rather than failing,
// so a replacement rune in the output is only accepted when the source
// bytes genuinely encode one.
func decodeText(enc encoding.Encoding, b []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("tbf: decode text: %w", err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		back, err := enc.NewEncoder().Bytes(out)
		if err != nil || !bytes.Equal(back, b) {
			return "", fmt.Errorf("tbf: text %q is not decodable under the declared encoding", b)
		}
	}
	return string(out), nil
}
