package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("+14155550123"))
	assert.True(t, IsValidPhone("+44 20 7946 0958"))
	assert.True(t, IsValidPhone("(415) 555-0123"))

	assert.False(t, IsValidPhone(""))
	assert.False(t, IsValidPhone("+0123456"))
	assert.False(t, IsValidPhone("not a number"))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+14155550123", NormalizePhone("+1 (415) 555-0123"))
	assert.Equal(t, "+14155550123", NormalizePhone("1-415-555-0123"))
	assert.Equal(t, "+442079460958", NormalizePhone("+44 20 7946 0958"))
}
