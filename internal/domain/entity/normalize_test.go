package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Asthma, Bronchial ", "asthma, bronchial"},
		{"  bronchial   ASTHMA", "bronchial asthma"},
		{"\tImatinib\n", "imatinib"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"asthma", "bronchial"}, Tokens("Asthma, Bronchial"))
	assert.Equal(t, []string{"cgb", "500"}, Tokens("CGB-500"))
	assert.Empty(t, Tokens("..."))
}

func TestTokenSet(t *testing.T) {
	set := TokenSet("asthma asthma bronchial")
	assert.Len(t, set, 2)
	assert.Contains(t, set, "asthma")
	assert.Contains(t, set, "bronchial")
}
