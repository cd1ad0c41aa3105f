package httpx

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type payForm struct {
	Amount   int64  `json:"amount" validate:"gt=0"`
	MethodID string `json:"payment_method_id" validate:"required"`
}

func TestDecodeAndValidate(t *testing.T) {
	v := validator.New()

	var form payForm
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"amount":10,"payment_method_id":"cash"}`))
	require.NoError(t, DecodeAndValidate(req, v, &form))
	require.EqualValues(t, 10, form.Amount)

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"amount":0}`))
	err := DecodeAndValidate(req, v, &payForm{})
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorContains(t, err, "payForm.MethodID failed required")

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"amount":`))
	require.ErrorIs(t, DecodeAndValidate(req, v, &payForm{}), ErrBadRequest)
}
