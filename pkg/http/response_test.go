package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Symbol string  `json:"symbol" validate:"required"`
	Side   string  `json:"side" default:"BUY" validate:"oneof=BUY SELL"`
	Price  float64 `json:"current_price" validate:"gt=0"`
}

func newContext(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	c, _ := newContext(http.MethodPost, `{"symbol":"EURUSD","current_price":1.1}`)
	req := &sampleRequest{}
	require.Nil(t, ReadAndValidateRequest(c, req))
	assert.Equal(t, "BUY", req.Side)
}

func TestReadAndValidateRequestReportsJSONNames(t *testing.T) {
	c, _ := newContext(http.MethodPost, `{"side":"HOLD","current_price":0}`)
	errs := ReadAndValidateRequest(c, &sampleRequest{})
	require.Len(t, errs, 3)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_REQUIRED", byField["symbol"].Code)
	assert.Equal(t, "ERR_ONEOF", byField["side"].Code)
	assert.Equal(t, []string{"BUY", "SELL"}, byField["side"].Params["options"])
	assert.Equal(t, "current_price must be greater than 0", byField["current_price"].Message)
}

func TestReadAndValidateRequestMalformedBody(t *testing.T) {
	c, _ := newContext(http.MethodPost, `{"symbol":`)
	errs := ReadAndValidateRequest(c, &sampleRequest{})
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_MALFORMED", errs[0].Code)
}

func TestAppErrorResponseUsesStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{ConflictError("scalp already open"), http.StatusConflict, "ERR_CONFLICT"},
		{NotFoundErrorf("snapshot %s", "x"), http.StatusNotFound, "ERR_NOT_FOUND"},
		{UnprocessableError("denied").WithParam("check", "regime_allowed"), http.StatusUnprocessableEntity, "ERR_DENIED"},
		{errors.New("boom"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		c, rec := newContext(http.MethodGet, "")
		require.NoError(t, AppErrorResponse(c, tc.err))
		assert.Equal(t, tc.status, rec.Code)

		var body struct {
			Status int         `json:"status"`
			Data   []*AppError `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
		require.Len(t, body.Data, 1)
		assert.Equal(t, tc.code, body.Data[0].Code)
	}
}

func TestAppErrorKeepsCause(t *testing.T) {
	cause := errors.New("snapshot missing")
	err := NotFoundError("rollback").WithError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "rollback: snapshot missing", err.Error())
}
