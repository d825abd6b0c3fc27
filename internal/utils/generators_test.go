package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReservationCodeFormat(t *testing.T) {
	code := GenerateReservationCode()

	require.Len(t, code, 8)
	assert.True(t, strings.HasPrefix(code, "R-"))
	for _, c := range code[2:] {
		assert.Contains(t, codeAlphabet, string(c), "code %q uses a character outside the alphabet", code)
	}
}

func TestGenerateReservationCodeAvoidsAmbiguousCharacters(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := GenerateReservationCode()
		assert.NotContains(t, code[2:], "0")
		assert.NotContains(t, code[2:], "O")
		assert.NotContains(t, code[2:], "1")
		assert.NotContains(t, code[2:], "I")
	}
}

func TestGeneratePaymentIDFormat(t *testing.T) {
	id := GeneratePaymentID()

	assert.True(t, strings.HasPrefix(id, "pay_"))
	parts := strings.Split(id, "_")
	require.Len(t, parts, 3)
	assert.Len(t, parts[2], 6, "random suffix is zero-padded to six digits")
}

func TestGeneratedCodesVary(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[GenerateReservationCode()] = true
	}
	// 32^6 possibilities, 50 draws colliding down to a handful would
	// mean the RNG is broken.
	assert.Greater(t, len(seen), 45)
}
