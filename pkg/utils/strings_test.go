package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWardCode(t *testing.T) {
	assert.Equal(t, "VN-01-00256", NormalizeWardCode(" vn-01-00256 "))
	assert.Equal(t, "", NormalizeWardCode("   "))
}

func TestIsValidWardCode(t *testing.T) {
	valid := []string{"VN-01-00256", "TH-10-ABC", "VN-0A-12345678"}
	for _, code := range valid {
		assert.True(t, IsValidWardCode(code), code)
	}

	invalid := []string{"", "vn-01-00256", "V-01-00256", "VN-1-00256", "VN-01-00", "VN0100256"}
	for _, code := range invalid {
		assert.False(t, IsValidWardCode(code), code)
	}
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 7, ParseInt("7", 0))
	assert.Equal(t, 3, ParseInt("", 3))
	assert.Equal(t, 3, ParseInt("x", 3))
}

func TestParseInt64(t *testing.T) {
	assert.Equal(t, int64(9000000000), ParseInt64("9000000000", 0))
	assert.Equal(t, int64(5), ParseInt64("", 5))
	assert.Equal(t, int64(5), ParseInt64("nope", 5))
}
