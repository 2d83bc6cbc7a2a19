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

type credsRequest struct {
	APIKey   string `json:"apiKey" validate:"required,min=8"`
	Platform string `json:"platform" validate:"required,oneof=ozon wb"`
}

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.POST("/creds", func(c echo.Context) error {
		req := &credsRequest{}
		if verr := ReadAndValidateRequest(c, req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		return SuccessResponse(c, req.Platform)
	})
	e.GET("/boom", func(echo.Context) error { return errors.New("db down") })
	e.GET("/gone", func(echo.Context) error { return NotFoundError("gone") })
}

type errorBody struct {
	Status int `json:"status"`
	Data   []struct {
		Code    string `json:"code"`
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"data"`
}

func serve(t *testing.T, method, target, body string) (int, errorBody) {
	t.Helper()
	s := NewServer(nil, []Handler{routes{}}, WithMetricsPath(""))
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	var out errorBody
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}

func TestValidationErrorsUseClientFieldNames(t *testing.T) {
	code, body := serve(t, http.MethodPost, "/creds", `{"apiKey":"short"}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Len(t, body.Data, 2)

	assert.Equal(t, "ERR_MIN", body.Data[0].Code)
	assert.Equal(t, "apiKey", body.Data[0].Field)
	assert.Equal(t, "apiKey must be at least 8 characters", body.Data[0].Message)
	assert.Equal(t, "ERR_REQUIRED", body.Data[1].Code)
	assert.Equal(t, "platform", body.Data[1].Field)
}

func TestValidRequestPasses(t *testing.T) {
	code, _ := serve(t, http.MethodPost, "/creds", `{"apiKey":"long-enough","platform":"wb"}`)
	assert.Equal(t, http.StatusOK, code)
}

func TestErrorHandlerRendersEnvelope(t *testing.T) {
	code, body := serve(t, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, code)
	require.Len(t, body.Data, 1)
	assert.Equal(t, CodeNotFound, body.Data[0].Code)

	code, body = serve(t, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	require.Len(t, body.Data, 1)
	assert.Equal(t, CodeInternal, body.Data[0].Code)
	assert.NotContains(t, body.Data[0].Message, "db down")

	code, body = serve(t, http.MethodGet, "/gone", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "gone", body.Data[0].Message)
}
