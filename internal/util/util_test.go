package util

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corgi-recs/corgi/internal/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, 5, ParseInt(" 5 ", 1))
	assert.Equal(t, 1, ParseInt("x", 1))

	n, err := ParseOptionalInt("")
	require.NoError(t, err)
	assert.Nil(t, n)
	n, err = ParseOptionalInt("3")
	require.NoError(t, err)
	assert.Equal(t, 3, *n)
	_, err = ParseOptionalInt("three")
	assert.Error(t, err)

	b, err := ParseOptionalBool("false")
	require.NoError(t, err)
	assert.False(t, *b)
	assert.True(t, ParseBool("nope", true))
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondError(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(errors.ErrInternalError), body.Code)
	assert.Empty(t, body.Details)
	assert.True(t, c.IsAborted())
}

func TestRequireUserAlias(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := RequireUserAlias(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c.Set(UserAliasKey, "abc")
	alias, ok := RequireUserAlias(c)
	assert.True(t, ok)
	assert.Equal(t, "abc", alias)
}
