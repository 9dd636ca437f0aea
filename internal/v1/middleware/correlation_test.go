package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
)

func serveWithCorrelation(t *testing.T, req *http.Request, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationID())
	r.GET("/test", handler)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	return resp
}

func TestCorrelationID_GeneratesNew(t *testing.T) {
	var fromGin, fromRequestCtx any

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	resp := serveWithCorrelation(t, req, func(c *gin.Context) {
		fromGin, _ = c.Get(string(logging.CorrelationIDKey))
		fromRequestCtx = c.Request.Context().Value(logging.CorrelationIDKey)
	})

	generated := resp.Header().Get(HeaderXCorrelationID)
	assert.NotEmpty(t, generated, "a request without an id gets one assigned")
	assert.Equal(t, generated, fromGin)
	assert.Equal(t, generated, fromRequestCtx,
		"the id must ride the request context so the logger sees it at any depth")
}

func TestCorrelationID_PropagatesExisting(t *testing.T) {
	const existingID = "existing-uuid-123"

	var fromRequestCtx any

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderXCorrelationID, existingID)
	resp := serveWithCorrelation(t, req, func(c *gin.Context) {
		fromRequestCtx = c.Request.Context().Value(logging.CorrelationIDKey)
	})

	assert.Equal(t, existingID, resp.Header().Get(HeaderXCorrelationID),
		"a client-supplied id is echoed, not replaced")
	assert.Equal(t, existingID, fromRequestCtx)
}
