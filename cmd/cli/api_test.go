package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	prevURL, prevToken := apiURL, authToken
	apiURL, authToken = srv.URL, "tok"
	t.Cleanup(func() { apiURL, authToken = prevURL, prevToken })
}

func TestCallSendsTokenAndDecodes(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "none", body["level"])
		_, _ = w.Write([]byte(`{"level":"none","allow_personalization":false}`))
	})

	var res privacyResult
	_, err := call(http.MethodPut, "/api/v1/privacy", map[string]string{"level": "none"}, &res)
	require.NoError(t, err)
	assert.Equal(t, "none", res.Level)
	assert.False(t, res.AllowPersonalization)
}

func TestCallSurfacesAPIMessage(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"UNAUTHORIZED","message":"invalid token"}`))
	})

	_, err := call(http.MethodGet, "/api/v1/privacy", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
}

func TestCallWithoutMessage(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := call(http.MethodGet, "/api/v1/privacy", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
