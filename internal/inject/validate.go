package inject

import (
	"fmt"
	"strings"

	"github.com/dbbuilder/termkeep/internal/winsys"
)

// specialKeys is the recognized named-key whitelist. Unknown names warn
// rather than fail so new key names stay forward compatible.
var specialKeys = map[string]bool{
	"ENTER": true, "TAB": true, "SPACE": true, "BACKSPACE": true,
	"DELETE": true, "HOME": true, "END": true, "UP": true, "DOWN": true,
	"LEFT": true, "RIGHT": true, "CTRL": true, "ALT": true, "SHIFT": true,
	"ESC": true, "F1": true, "F2": true, "F3": true, "F4": true, "F5": true,
	"F6": true, "F7": true, "F8": true, "F9": true, "F10": true,
	"F11": true, "F12": true,
}

// Validation is the result of checking a keystroke sequence.
type Validation struct {
	IsValid  bool     `json:"is_valid"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
	Tokens   []string `json:"parsed_tokens"`
}

// ValidateSequence tokenizes a keystroke sequence and checks it for shape
// problems. Only an empty sequence is invalid; unmatched or nested braces
// and unrecognized key names produce warnings, not rejection.
func ValidateSequence(seq string) Validation {
	v := Validation{IsValid: true}
	if seq == "" {
		v.IsValid = false
		v.Errors = append(v.Errors, "empty keystroke sequence")
		return v
	}

	var current strings.Builder
	inSpecial := false
	for _, r := range seq {
		switch {
		case r == '{':
			if inSpecial {
				v.Warnings = append(v.Warnings, "nested braces detected")
			}
			if current.Len() > 0 {
				v.Tokens = append(v.Tokens, current.String())
				current.Reset()
			}
			current.WriteRune(r)
			inSpecial = true
		case r == '}' && inSpecial:
			current.WriteRune(r)
			v.Tokens = append(v.Tokens, current.String())
			current.Reset()
			inSpecial = false
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		v.Tokens = append(v.Tokens, current.String())
	}
	if inSpecial {
		v.Warnings = append(v.Warnings, "unclosed special key sequence")
	}

	for _, tok := range v.Tokens {
		if name, ok := specialName(tok); ok && !specialKeys[name] {
			v.Warnings = append(v.Warnings, fmt.Sprintf("unrecognized special key: %s", tok))
		}
	}
	return v
}

// specialName extracts the upper-cased name from a {NAME} token.
func specialName(tok string) (string, bool) {
	if len(tok) < 2 || tok[0] != '{' || tok[len(tok)-1] != '}' {
		return "", false
	}
	return strings.ToUpper(tok[1 : len(tok)-1]), true
}

// ParseSequence converts a keystroke sequence into send tokens. Recognized
// {NAME} tokens become named keys; everything else, including unrecognized
// brace tokens, is sent literally.
func ParseSequence(seq string) []winsys.KeyToken {
	v := ValidateSequence(seq)
	tokens := make([]winsys.KeyToken, 0, len(v.Tokens))
	for _, tok := range v.Tokens {
		if name, ok := specialName(tok); ok && specialKeys[name] {
			tokens = append(tokens, winsys.KeyToken{Name: name})
			continue
		}
		tokens = append(tokens, winsys.KeyToken{Text: tok})
	}
	return tokens
}
