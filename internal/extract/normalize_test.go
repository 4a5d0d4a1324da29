package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		sampleSize int
		want       string
	}{
		{
			name: "crlf to lf",
			in:   "line1\r\nline2\rline3",
			want: "line1\nline2\nline3",
		},
		{
			name: "strips csi color codes",
			in:   "\x1b[31mred\x1b[0m plain",
			want: "red plain",
		},
		{
			name: "strips cursor movement",
			in:   "a\x1b[2Jb\x1b[1;1Hc",
			want: "abc",
		},
		{
			name: "strips osc title sequence",
			in:   "\x1b]0;window title\x07prompt>",
			want: "prompt>",
		},
		{
			name: "strips osc with st terminator",
			in:   "\x1b]8;;http://x\x1b\\link",
			want: "link",
		},
		{
			name: "drops control chars keeps tabs and newlines",
			in:   "a\x00b\tc\nd\x08",
			want: "ab\tc\nd",
		},
		{
			name:       "tail sampling keeps recent output",
			in:         "0123456789",
			sampleSize: 4,
			want:       "6789",
		},
		{
			name:       "sampling is a no-op for short content",
			in:         "short",
			sampleSize: 100,
			want:       "short",
		},
		{
			name: "zero sample size keeps everything",
			in:   strings.Repeat("x", 5000),
			want: strings.Repeat("x", 5000),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in, tt.sampleSize))
		})
	}
}

func TestStripANSIPassesCleanTextThrough(t *testing.T) {
	in := "no escapes here\njust text"
	assert.Equal(t, in, stripANSI(in))
}
