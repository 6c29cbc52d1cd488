package extract

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TxtText decodes a plain-text buffer to UTF-8. BOMs are honored, UTF-16 is
// transcoded, and non-UTF-8 bytes fall back to Windows-1252 then Latin-1.
// The content itself is returned verbatim; no line cleanup happens here so
// fullText round-trips the input.
func TxtText(data []byte) (string, error) {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return string(data[3:]), nil
	}

	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		decoded, _, err := transform.Bytes(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), data)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		decoded, _, err := transform.Bytes(unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder(), data)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	if decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data); err == nil {
		return string(decoded), nil
	}
	if decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data); err == nil {
		return string(decoded), nil
	}
	return string(data), nil
}
