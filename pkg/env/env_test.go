package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_VALUE", "  checkout ")
	assert.Equal(t, "checkout", Get("STOREFRONT_TEST_VALUE", "x"))

	t.Setenv("STOREFRONT_TEST_VALUE", "   ")
	assert.Equal(t, "x", Get("STOREFRONT_TEST_VALUE", "x"))
	assert.Equal(t, "y", Get("STOREFRONT_TEST_UNSET", "y"))
}

func TestOneOf(t *testing.T) {
	t.Setenv("LOG_FORMAT", "CONSOLE")
	assert.Equal(t, "console", OneOf("LOG_FORMAT", "json", "json", "console"))

	t.Setenv("LOG_FORMAT", "xml")
	assert.Equal(t, "json", OneOf("LOG_FORMAT", "json", "json", "console"))
}
