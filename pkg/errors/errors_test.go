package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		details   bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true},
		{CodeUnauthorized, http.StatusUnauthorized, false, false},
		{CodeForbidden, http.StatusForbidden, false, false},
		{CodeNotFound, http.StatusNotFound, false, false},
		{CodeConflict, http.StatusConflict, false, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, false, true},
		{CodeInternal, http.StatusInternalServerError, true, false},
		{CodeDependency, http.StatusServiceUnavailable, true, true},
		{CodeEmptyCart, http.StatusUnprocessableEntity, false, false},
		{CodePriceChanged, http.StatusUnprocessableEntity, false, true},
		{CodeInsufficientStock, http.StatusUnprocessableEntity, false, true},
		{CodeUpstreamUnavailable, http.StatusServiceUnavailable, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.retryable, meta.Retryable)
			assert.Equal(t, tt.details, meta.DetailsAllowed)
			assert.NotEmpty(t, meta.PublicMessage)
		})
	}
}

func TestCheckoutOutcomeMessagesAreShopperFacing(t *testing.T) {
	assert.Equal(t, "Cart is empty.", MetadataFor(CodeEmptyCart).PublicMessage)
	assert.Equal(t, "Product price has changed. Please refresh your cart and try again.", MetadataFor(CodePriceChanged).PublicMessage)
	assert.Equal(t, "One or more items are out of stock or do not have enough quantity.", MetadataFor(CodeInsufficientStock).PublicMessage)
	assert.Equal(t, "Unable to validate product against Catalog.", MetadataFor(CodeUpstreamUnavailable).PublicMessage)
}

func TestUnknownCodeFallsBackToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestConstructorsAndDetails(t *testing.T) {
	err := New(CodeValidation, "missing foo")
	assert.Equal(t, CodeValidation, err.Code())
	assert.Equal(t, "missing foo", err.Message())
	assert.Nil(t, err.Details())

	err.WithDetails(map[string]any{"field": "foo"})
	assert.Equal(t, map[string]any{"field": "foo"}, err.Details())

	assert.Equal(t, "quantity 500 too large", Newf(CodeValidation, "quantity %d too large", 500).Message())
}

func TestWrapKeepsCauseInChainAndMessage(t *testing.T) {
	cause := stdErrors.New("dial tcp: refused")
	wrapped := Wrap(CodeDependency, cause, "catalog lookup")

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: catalog lookup: dial tcp: refused", wrapped.Error())
	assert.Equal(t, "NOT_FOUND: order missing", New(CodeNotFound, "order missing").Error())
}

func TestLookupHelpers(t *testing.T) {
	wrapped := fmt.Errorf("placing order: %w", New(CodePriceChanged, "price moved"))

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodePriceChanged, typed.Code())
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))

	assert.True(t, IsCode(wrapped, CodePriceChanged))
	assert.False(t, IsCode(wrapped, CodeInsufficientStock))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))

	assert.True(t, IsRetryable(fmt.Errorf("lookup: %w", New(CodeUpstreamUnavailable, "catalog down"))))
	assert.False(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(stdErrors.New("plain")))
}
