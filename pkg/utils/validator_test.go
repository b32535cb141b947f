package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNTNCNIC(t *testing.T) {
	tests := []struct {
		value string
		valid bool
	}{
		{"1234567", true},
		{"1234567-8", true},
		{"3520212345671", true},
		{"35202-1234567-1", true},
		{"123456", false},
		{"12345678", false},
		{"1234567-", false},
		{"ABCDEFG", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsNTNCNIC(tt.value))
			if tt.valid {
				assert.NoError(t, ValidateNTNCNIC(tt.value))
			} else {
				assert.Error(t, ValidateNTNCNIC(tt.value))
			}
		})
	}
}

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList(" 3, 1,2,")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	_, err = ParseIDList("1,x")
	assert.Error(t, err)
	_, err = ParseIDList("-4")
	assert.Error(t, err)
	_, err = ParseIDList(" , ")
	assert.Error(t, err)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "confirm", SanitizeString("con\x00firm\x1b"))
}
