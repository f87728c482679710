package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHotExpiry(t *testing.T) {
	tests := []struct {
		name        string
		forFlag     string
		clear       bool
		now         bool
		expected    *time.Duration
		expectError bool
		errorMsg    string
	}{
		{
			name:        "no flag set",
			expectError: true,
			errorMsg:    "required",
		},
		{
			name:     "for extends the deadline",
			forFlag:  "24h",
			expected: durationPtr(24 * time.Hour),
		},
		{
			name:     "negative for is already expired",
			forFlag:  "-1h",
			expected: durationPtr(-time.Hour),
		},
		{
			name:     "clear removes the deadline",
			clear:    true,
			expected: nil,
		},
		{
			name:     "now expires immediately",
			now:      true,
			expected: durationPtr(0),
		},
		{
			name:        "unparseable duration",
			forFlag:     "soon",
			expectError: true,
			errorMsg:    "invalid --for duration",
		},
		{
			name:        "for and clear together",
			forFlag:     "24h",
			clear:       true,
			expectError: true,
			errorMsg:    "mutually exclusive",
		},
		{
			name:        "clear and now together",
			clear:       true,
			now:         true,
			expectError: true,
			errorMsg:    "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveHotExpiry(tt.forFlag, tt.clear, tt.now)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}

			require.NoError(t, err)
			if tt.expected == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.expected, *got)
			}
		})
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
