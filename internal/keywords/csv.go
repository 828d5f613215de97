package keywords

import (
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// MaxFileSize is the hard cap on uploaded keyword files, checked before
// any parsing.
const MaxFileSize = 5 << 20

// ErrFileTooLarge is returned for uploads over MaxFileSize.
var ErrFileTooLarge = eris.New("keywords: file exceeds the 5 MB upload limit")

// headerToken is the literal first-line token treated as a CSV header.
const headerToken = "keyword"

// ParseCSV splits keyword text into one keyword per line. Any line
// ending (LF, CRLF, or bare CR, mixed within one document) is accepted.
// Lines are trimmed, blank lines dropped, and a single layer of matching
// surrounding quotes stripped. The very first non-empty line is dropped
// when it case-insensitively equals "keyword", bare or quoted.
func ParseCSV(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return normalizeLines(strings.Split(normalized, "\n"))
}

// ParseCSVFile decodes raw file bytes (see DecodeText) and parses them
// as a keyword CSV. Files over MaxFileSize are rejected before parsing.
func ParseCSVFile(data []byte) ([]string, error) {
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	return ParseCSV(text), nil
}

// normalizeLines applies the shared trim/quote/header rules to raw lines
// from any ingestion source (CSV text or spreadsheet column).
func normalizeLines(rawLines []string) []string {
	out := make([]string, 0, len(rawLines))
	first := true
	for _, line := range rawLines {
		line = stripQuotes(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(line, headerToken) {
				continue
			}
		}
		out = append(out, line)
	}
	return out
}

// stripQuotes removes one layer of matching surrounding quote
// characters, trimming again in case the quotes wrapped padded content.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// DecodeText converts raw upload bytes to a string. A UTF-16 BOM is
// honored first; otherwise UTF-8, Windows-1252, and Latin-1 decodings
// are scored by replacement-character count, then embedded NUL count,
// then candidate order. Embedded NULs are stripped from the result.
func DecodeText(data []byte) (string, error) {
	if len(data) >= 2 {
		var enc encoding.Encoding
		switch {
		case data[0] == 0xFF && data[1] == 0xFE:
			enc = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
		case data[0] == 0xFE && data[1] == 0xFF:
			enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
		}
		if enc != nil {
			decoded, err := enc.NewDecoder().Bytes(data)
			if err != nil {
				return "", eris.Wrap(err, "keywords: decode utf-16")
			}
			return stripNULs(string(decoded)), nil
		}
	}

	best := decodeUTF8(data)
	for _, candidate := range []func([]byte) decoded{decodeWindows1252, decodeLatin1} {
		c := candidate(data)
		if c.replacements < best.replacements ||
			(c.replacements == best.replacements && c.nuls < best.nuls) {
			best = c
		}
	}
	return stripNULs(best.text), nil
}

type decoded struct {
	text         string
	replacements int
	nuls         int
}

func decodeUTF8(data []byte) decoded {
	var b strings.Builder
	b.Grow(len(data))
	d := decoded{}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			d.replacements++
		}
		if r == 0 {
			d.nuls++
		}
		b.WriteRune(r)
		i += size
	}
	d.text = b.String()
	return d
}

func decodeCharmap(data []byte, cm *charmap.Charmap) decoded {
	var b strings.Builder
	b.Grow(len(data))
	d := decoded{}
	for _, c := range data {
		r := cm.DecodeByte(c)
		if r == utf8.RuneError {
			d.replacements++
		}
		if r == 0 {
			d.nuls++
		}
		b.WriteRune(r)
	}
	d.text = b.String()
	return d
}

func decodeWindows1252(data []byte) decoded {
	return decodeCharmap(data, charmap.Windows1252)
}

func decodeLatin1(data []byte) decoded {
	return decodeCharmap(data, charmap.ISO8859_1)
}

func stripNULs(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
