package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

type nested struct {
	City string `json:"city" validate:"required"`
}

type payload struct {
	Email   string `json:"email" validate:"required,email"`
	Address nested `json:"shippingAddress"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","shippingAddress":{"city":"x"},"extra":1}`))
	var p payload
	err := DecodeJSONBody(r, &p)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsNestedFieldsByJSONName(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","shippingAddress":{}}`))
	var p payload
	err := DecodeJSONBody(r, &p)
	require.Error(t, err)

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "is required", details["shippingAddress.city"])
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var p payload
	err := DecodeJSONBody(r, &p)
	require.Error(t, err)
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())
}

func TestRequireQueryAndUUIDParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/checkout/verify?session_id=%20cs_1%20", nil)
	got, err := RequireQuery(r, "session_id")
	require.NoError(t, err)
	assert.Equal(t, "cs_1", got)

	_, err = RequireQuery(httptest.NewRequest(http.MethodGet, "/", nil), "session_id")
	assert.Error(t, err)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", "not-a-uuid")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	_, err = ParseUUIDParam(r, "orderId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsTrailingDocuments(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","shippingAddress":{"city":"x"}} {"email":"c@d.co"}`))
	var p payload
	err := DecodeJSONBody(r, &p)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	big := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	var p payload
	err := DecodeJSONBody(r, &p)
	require.Error(t, err)
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyNamesMistypedField(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":42}`))
	var p payload
	err := DecodeJSONBody(r, &p)
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "email", details["field"])
}
