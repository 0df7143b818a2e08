package validator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,notblank"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=10000"`
	Method    string `json:"method,omitempty" validate:"omitempty,oneof=standard express"`
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, Validate(addItemRequest{ProductID: "p-1", Quantity: 3}))
}

func TestValidate_FieldsUseJSONNames(t *testing.T) {
	err := Validate(addItemRequest{ProductID: "   ", Quantity: 0})
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	fields := ve.Fields()
	assert.Equal(t, "must not be blank", fields["product_id"])
	assert.Equal(t, "is required", fields["quantity"])
}

func TestValidate_NumericBoundsMessage(t *testing.T) {
	err := Validate(addItemRequest{ProductID: "p-1", Quantity: 20000})

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "must be at most 10000", ve.Fields()["quantity"])
	assert.Contains(t, ve.Error(), "field 'quantity'")
}

func TestValidate_OneOf(t *testing.T) {
	err := Validate(addItemRequest{ProductID: "p-1", Quantity: 1, Method: "drone"})

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "must be one of: standard express", ve.Fields()["method"])
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"p-1","quantity":2}`))
		var dst addItemRequest
		require.NoError(t, DecodeAndValidate(req, &dst))
		assert.Equal(t, 2, dst.Quantity)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":`))
		var dst addItemRequest
		err := DecodeAndValidate(req, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode request body")
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"p-1","quantity":1,"unit_price":"0.01"}`))
		var dst addItemRequest
		require.Error(t, DecodeAndValidate(req, &dst))
	})
}
