package keywords

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain LF lines",
			text: "blue shirt\nred dress\ngreen pants",
			want: []string{"blue shirt", "red dress", "green pants"},
		},
		{
			name: "mixed line endings in one document",
			text: "a\r\nb\rc\nd",
			want: []string{"a", "b", "c", "d"},
		},
		{
			name: "drops blank lines and trims",
			text: "  a  \n\n\t\nb\n",
			want: []string{"a", "b"},
		},
		{
			name: "strips one layer of matching quotes",
			text: "\"blue shirt\"\n'red dress'\n\"'nested'\"",
			want: []string{"blue shirt", "red dress", "'nested'"},
		},
		{
			name: "mismatched quotes left alone",
			text: "\"blue shirt'\nred\"",
			want: []string{"\"blue shirt'", "red\""},
		},
		{
			name: "drops leading header line any case",
			text: "Keyword\nblue shirt\nred dress",
			want: []string{"blue shirt", "red dress"},
		},
		{
			name: "drops quoted header line",
			text: "\"KEYWORD\"\nblue shirt",
			want: []string{"blue shirt"},
		},
		{
			name: "header after blank lines is still first",
			text: "\n\nkeyword\nblue shirt",
			want: []string{"blue shirt"},
		},
		{
			name: "keyword later in the file is kept",
			text: "blue shirt\nkeyword\nred dress",
			want: []string{"blue shirt", "keyword", "red dress"},
		},
		{
			name: "empty document",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCSV(tt.text))
		})
	}
}

func TestParseCSVRoundTrip(t *testing.T) {
	kws := []string{"blue shirt", "red dress", "green pants"}
	got := ParseCSV(strings.Join(kws, "\n"))
	assert.Equal(t, Dedupe(kws), got)
}

func TestParseCSVFileSizeLimit(t *testing.T) {
	big := make([]byte, MaxFileSize+1)
	for i := range big {
		big[i] = 'a'
	}
	_, err := ParseCSVFile(big)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestDecodeTextUTF8(t *testing.T) {
	got, err := DecodeText([]byte("café\nnaïve"))
	require.NoError(t, err)
	assert.Equal(t, "café\nnaïve", got)
}

func TestDecodeTextUTF16LE(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewEncoder()
	data, err := enc.Bytes([]byte("blue shirt\nred dress"))
	require.NoError(t, err)

	got, err := DecodeText(data)
	require.NoError(t, err)
	assert.Equal(t, "blue shirt\nred dress", got)
}

func TestDecodeTextUTF16BE(t *testing.T) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewEncoder()
	data, err := enc.Bytes([]byte("café"))
	require.NoError(t, err)

	got, err := DecodeText(data)
	require.NoError(t, err)
	assert.Equal(t, "café", got)
}

func TestDecodeTextWindows1252(t *testing.T) {
	// 0x93/0x94 are curly quotes and 0xE9 is é in Windows-1252; all are
	// invalid UTF-8 sequences here, so scoring must pick Windows-1252.
	data := []byte{0x93, 'h', 'i', 0x94, ' ', 0xE9}
	got, err := DecodeText(data)
	require.NoError(t, err)
	assert.Equal(t, "“hi” é", got)
}

func TestDecodeTextStripsNULs(t *testing.T) {
	got, err := DecodeText([]byte("a\x00b\x00c"))
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestValidateCount(t *testing.T) {
	tests := []struct {
		count       int
		valid       bool
		wantWarning bool
	}{
		{0, false, false},
		{4, false, false},
		{5, true, true},
		{19, true, true},
		{20, true, false},
		{5000, true, false},
		{5001, false, false},
	}

	for _, tt := range tests {
		v := ValidateCount(tt.count)
		assert.Equal(t, tt.valid, v.Valid, "count %d", tt.count)
		assert.Equal(t, tt.wantWarning, v.Warning != "", "count %d", tt.count)
		if !tt.valid {
			assert.NotEmpty(t, v.Error, "count %d", tt.count)
		}
	}

	assert.Contains(t, ValidateCount(3).Error, "at least 5")
	assert.Contains(t, ValidateCount(3).Error, "got 3")
	assert.Contains(t, ValidateCount(5001).Error, "at most 5000")
	assert.Contains(t, ValidateCount(5001).Error, "got 5001")
}
