package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/medlemine/ashport/pkg/errors"
)

func recordJSON(t *testing.T, write func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	write(c)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSuccessEnvelope(t *testing.T) {
	rec, body := recordJSON(t, func(c *gin.Context) {
		Success(c, http.StatusCreated, map[string]string{"status": "pending"})
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, body.Success)
	require.Nil(t, body.Error)
}

func TestErrorEnvelopeFromAppError(t *testing.T) {
	rec, body := recordJSON(t, func(c *gin.Context) {
		Error(c, appErrors.NewConflict("verification already processed"))
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	require.False(t, body.Success)
	require.Equal(t, "CONFLICT", body.Error.Code)
	require.Equal(t, "verification already processed", body.Error.Message)
}

func TestErrorEnvelopeHidesInternalDetail(t *testing.T) {
	rec, body := recordJSON(t, func(c *gin.Context) {
		Error(c, errors.New("pq: connection refused"))
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
	require.NotContains(t, body.Error.Message, "pq:")
}
