package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"festival/internal/shared/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respond(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondError(c, err)
	return w
}

func TestRespondErrorTyped(t *testing.T) {
	w := respond(fmt.Errorf("create: %w", apperror.Validation("day", "outside edition")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		StandardApiResponse
		Errors struct {
			Kind    string            `json:"kind"`
			Details map[string]string `json:"details"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, http.StatusBadRequest, body.StatusCode)
	assert.Equal(t, "day: outside edition", body.Message)
	assert.Equal(t, "validation", body.Errors.Kind)
	assert.Equal(t, "day", body.Errors.Details["field"])

	w = respond(apperror.NotFound("ticket_type"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRespondErrorUntypedIsHidden(t *testing.T) {
	w := respond(errors.New("dial tcp 10.0.0.1:5432: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Contains(t, w.Body.String(), `"kind":"internal"`)
}
