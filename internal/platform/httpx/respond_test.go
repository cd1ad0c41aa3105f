package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var errOutOfStock = errors.New("out of stock")

func TestRespondErrorUsesCustomMappingFirst(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("sale: %w", errOutOfStock), ErrorMapping{Err: errOutOfStock, Status: http.StatusConflict, Title: "Stock"})

	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, "Stock", body.Title)
	require.Equal(t, "sale: out of stock", body.Detail)
}

func TestRespondErrorHidesUnknownErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("db password leaked"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "password")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":10,"extra":true}`))
	var dst struct {
		Amount int64 `json:"amount"`
	}
	err := DecodeJSON(req, &dst)
	require.ErrorIs(t, err, ErrBadRequest)
}
