package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbbuilder/termkeep/internal/winsys"
)

func TestValidateSequence(t *testing.T) {
	t.Run("text plus named key", func(t *testing.T) {
		v := ValidateSequence("continue{ENTER}")
		assert.True(t, v.IsValid)
		assert.Empty(t, v.Errors)
		assert.Empty(t, v.Warnings)
		assert.Equal(t, []string{"continue", "{ENTER}"}, v.Tokens)
	})

	t.Run("unrecognized key warns but stays valid", func(t *testing.T) {
		v := ValidateSequence("{UNKNOWNKEY}")
		assert.True(t, v.IsValid)
		require.Len(t, v.Warnings, 1)
		assert.Contains(t, v.Warnings[0], "unrecognized special key")
	})

	t.Run("empty sequence is invalid", func(t *testing.T) {
		v := ValidateSequence("")
		assert.False(t, v.IsValid)
		require.Len(t, v.Errors, 1)
		assert.Contains(t, v.Errors[0], "empty")
	})

	t.Run("unclosed brace warns", func(t *testing.T) {
		v := ValidateSequence("yes{ENTER")
		assert.True(t, v.IsValid)
		require.Len(t, v.Warnings, 1)
		assert.Contains(t, v.Warnings[0], "unclosed")
		assert.Equal(t, []string{"yes", "{ENTER"}, v.Tokens)
	})

	t.Run("nested braces warn", func(t *testing.T) {
		v := ValidateSequence("{A{B}}")
		assert.True(t, v.IsValid)
		assert.Contains(t, v.Warnings[0], "nested")
	})

	t.Run("case-insensitive key names", func(t *testing.T) {
		v := ValidateSequence("{enter}")
		assert.True(t, v.IsValid)
		assert.Empty(t, v.Warnings)
	})

	t.Run("multiple named keys", func(t *testing.T) {
		v := ValidateSequence("{UP}{UP}{ENTER}")
		assert.Equal(t, []string{"{UP}", "{UP}", "{ENTER}"}, v.Tokens)
		assert.Empty(t, v.Warnings)
	})
}

func TestParseSequence(t *testing.T) {
	tokens := ParseSequence("continue{ENTER}")
	require.Len(t, tokens, 2)
	assert.Equal(t, winsys.KeyToken{Text: "continue"}, tokens[0])
	assert.Equal(t, winsys.KeyToken{Name: "ENTER"}, tokens[1])

	// Unrecognized brace tokens are sent as literal text.
	tokens = ParseSequence("{BOGUS}x")
	require.Len(t, tokens, 2)
	assert.Equal(t, winsys.KeyToken{Text: "{BOGUS}"}, tokens[0])
	assert.Equal(t, winsys.KeyToken{Text: "x"}, tokens[1])
}
