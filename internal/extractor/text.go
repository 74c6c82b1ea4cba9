package extractor

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// decodeText decodes file bytes into a string, trying UTF-8 first, then
// BOM-marked UTF-16, then Windows-1252 as the permissive single-byte
// fallback. It never fails: every byte sequence decodes under the fallback.
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(bytes.TrimPrefix(content, []byte{0xef, 0xbb, 0xbf}))
	}

	if len(content) >= 2 {
		var dec *encoding.Decoder
		switch {
		case content[0] == 0xfe && content[1] == 0xff:
			dec = unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		case content[0] == 0xff && content[1] == 0xfe:
			dec = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		}
		if dec != nil {
			if decoded, err := dec.Bytes(content); err == nil {
				return string(decoded)
			}
		}
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		// Windows-1252 maps every byte; keep the raw string if it
		// somehow fails anyway.
		return string(content)
	}
	return string(decoded)
}
