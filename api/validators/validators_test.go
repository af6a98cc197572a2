package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type itemPayload struct {
	CartToken string `json:"cart_token" validate:"required,max=8"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abc \n", 0))
	assert.Equal(t, "abc", SanitizeString("a\x00b\x07c", 10))
	assert.Equal(t, "héll", SanitizeString("héllo", 4))
	assert.Equal(t, "", SanitizeString("   ", 5))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"cart_token":"way-too-long-token","quantity":0}`))
	var payload itemPayload

	err := DecodeJSONBody(req, &payload)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at most 8", details["cart_token"])
	assert.Equal(t, "is required", details["quantity"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"cart_token":"abc","quantity":1,"price":"0.01"}`))
	var payload itemPayload
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &payload), pkgerrors.CodeValidation))
}

func TestDecodeOptionalJSONBodyAcceptsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	var payload struct {
		CartToken string `json:"cart_token" validate:"omitempty,max=8"`
	}
	require.NoError(t, DecodeOptionalJSONBody(req, &payload))

	req = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &payload), pkgerrors.CodeValidation))
}
