package extract

import "strings"

// Normalize cleans raw extracted text for fingerprinting: line endings
// become LF, terminal escape sequences and stray control characters are
// stripped, and when sampleSize > 0 only the trailing sampleSize characters
// are kept so long-lived sessions compare in bounded time. Sampling the tail
// favors the most recent output, which is what inactivity detection cares
// about.
func Normalize(raw string, sampleSize int) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = stripANSI(text)
	text = stripControl(text)
	if sampleSize > 0 {
		runes := []rune(text)
		if len(runes) > sampleSize {
			text = string(runes[len(runes)-sampleSize:])
		}
	}
	return text
}

// stripANSI removes escape sequences in a single pass: CSI sequences
// (ESC [ ... final byte), OSC sequences (ESC ] ... BEL or ESC \), and
// two-byte escapes.
func stripANSI(s string) string {
	if !strings.ContainsRune(s, 0x1b) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != 0x1b {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			break
		}
		switch s[i+1] {
		case '[':
			// CSI: parameter bytes 0x30-0x3F, intermediates 0x20-0x2F,
			// terminated by a final byte 0x40-0x7E.
			j := i + 2
			for j < len(s) && s[j] >= 0x20 && s[j] <= 0x3f {
				j++
			}
			if j < len(s) {
				j++ // consume the final byte
			}
			i = j - 1
		case ']':
			// OSC: runs to BEL or ST (ESC \).
			j := i + 2
			for j < len(s) {
				if s[j] == 0x07 {
					j++
					break
				}
				if s[j] == 0x1b && j+1 < len(s) && s[j+1] == '\\' {
					j += 2
					break
				}
				j++
			}
			i = j - 1
		default:
			i++ // two-byte escape
		}
	}
	return b.String()
}

// stripControl drops control characters other than newline and tab.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
