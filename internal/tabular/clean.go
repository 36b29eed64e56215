package tabular

import (
	"bytes"
	"unicode/utf8"
)

// utf8BOM is prepended by Excel and other Windows tools.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// clean strips a leading BOM and replaces invalid UTF-8 sequences with
// U+FFFD so a stray Latin-1 byte does not fail the whole upload.
func clean(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if isASCII(data) || utf8.Valid(data) {
		return data
	}
	return sanitizeUTF8(data)
}

// isASCII is the fast path; most ad exports are plain ASCII.
func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func sanitizeUTF8(data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.Write(data[:size])
		}
		data = data[size:]
	}

	return buf.Bytes()
}
