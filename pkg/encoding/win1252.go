package encoding

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// ToUTF8 converts WIN1252 bytes read from the legacy HR database into a
// trimmed UTF-8 string. Undecodable input is returned as-is.
func ToUTF8(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return strings.TrimSpace(string(b))
	}

	return strings.TrimSpace(string(decoded))
}

// FromUTF8 encodes s for a WIN1252 column. Runes with no WIN1252 mapping
// (most non-Latin scripts) are replaced with '?' rather than failing the write.
func FromUTF8(s string) []byte {
	var out []byte
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			out = append(out, '?')
			continue
		}
		out = append(out, b)
	}
	return out
}
