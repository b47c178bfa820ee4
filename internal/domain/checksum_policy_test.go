package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"retrieval-engine/internal/domain"
)

func TestChecksumPolicy_ComputeIsStableUnderWhitespace(t *testing.T) {
	policy := domain.NewChecksumPolicy()

	base := policy.Compute("restore from the latest snapshot")
	assert.Equal(t, base, policy.Compute("  restore from the latest snapshot\n"))
	assert.NotEqual(t, base, policy.Compute("restore from the oldest snapshot"))
	assert.Len(t, base, 64)
	assert.NoError(t, policy.Validate(base))
}

func TestChecksumPolicy_Validate(t *testing.T) {
	policy := domain.NewChecksumPolicy()

	tests := []struct {
		name     string
		checksum string
		wantErr  bool
	}{
		{"valid digest", policy.Compute("anything"), false},
		{"empty", "", true},
		{"too short", "abc123", true},
		{"uppercase hex", strings.ToUpper(policy.Compute("anything")), true},
		{"non-hex characters", strings.Repeat("z", 64), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(tt.checksum)
			if tt.wantErr {
				assert.True(t, domain.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
