package targetclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, baseURL string, token *oauth2.Token, updater func(*oauth2.Token)) *Client {
	t.Helper()

	client, err := NewClient(Config{
		BaseURL:      baseURL,
		ClientID:     "client-id",
		ClientSecret: "secret",
		Scopes:       []string{"read_ads"},
		Token:        token,
		TokenUpdater: updater,
		Timeout:      5 * time.Second,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("requires client id", func(t *testing.T) {
		_, err := NewClient(Config{BaseURL: "https://example.com"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ClientID")
	})

	t.Run("rejects negative timeout", func(t *testing.T) {
		_, err := NewClient(Config{ClientID: "id", Timeout: -time.Second})
		require.Error(t, err)
	})

	t.Run("applies default timeout", func(t *testing.T) {
		client, err := NewClient(Config{ClientID: "id"})
		require.NoError(t, err)
		assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
		assert.Nil(t, client.Token())
	})

	t.Run("does not modify caller http client", func(t *testing.T) {
		custom := &http.Client{Timeout: time.Minute}
		client, err := NewClient(Config{ClientID: "id", HTTPClient: custom, Timeout: time.Second})
		require.NoError(t, err)
		assert.Equal(t, time.Second, client.httpClient.Timeout)
		assert.Equal(t, time.Minute, custom.Timeout)
	})
}

func TestURLs(t *testing.T) {
	client := newTestClient(t, "https://example.com", nil, nil)

	assert.Equal(t, "https://example.com/api/v2/oauth2/token.json", client.TokenURL())
	assert.Equal(t, "https://example.com/api/v2/ok/lead_ads/42.json", client.URL("v2/ok/lead_ads/42.json"))
	assert.Equal(t, "https://example.com/api/v2/oauth2/token.json", client.tokenManager.config.Endpoint.TokenURL)
}

func TestCallAPI(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test_access_token" {
			t.Errorf("Unexpected Authorization header: %s", r.Header.Get("Authorization"))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		switch r.URL.Path {
		case "/api/v2/test.json":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"message": "success",
				"method":  r.Method,
				"type":    r.Header.Get("Content-Type"),
				"trace":   r.Header.Get("X-Trace"),
				"q":       r.URL.Query().Get("q"),
			})
		case "/api/v2/missing.json":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		default:
			http.Error(w, "Not Found", http.StatusNotFound)
		}
	}))
	defer apiServer.Close()

	client := newTestClient(t, apiServer.URL, &oauth2.Token{AccessToken: "test_access_token", TokenType: "Bearer"}, nil)
	ctx := context.Background()

	t.Run("GET", func(t *testing.T) {
		resp, err := client.CallAPI(ctx, HttpGet, "v2/test.json", &RequestOptions{
			Headers: map[string]string{"X-Trace": "abc"},
			Query:   map[string][]string{"q": {"1"}},
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]string
		require.NoError(t, json.Unmarshal(resp.Body, &result))
		assert.Equal(t, "success", result["message"])
		assert.Equal(t, "GET", result["method"])
		assert.Equal(t, "abc", result["trace"])
		assert.Equal(t, "1", result["q"])
	})

	t.Run("POST", func(t *testing.T) {
		resp, err := client.CallAPI(ctx, HttpPost, "v2/test.json", &RequestOptions{
			Body: map[string]string{"key": "value"},
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]string
		require.NoError(t, json.Unmarshal(resp.Body, &result))
		assert.Equal(t, "POST", result["method"])
		assert.Equal(t, "application/json", result["type"])
	})

	t.Run("returns error responses unchecked", func(t *testing.T) {
		resp, err := client.CallAPI(ctx, HttpGet, "v2/missing.json", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.False(t, resp.OK())
		assert.JSONEq(t, `{"error":"not found"}`, string(resp.Body))
	})

	t.Run("check status", func(t *testing.T) {
		_, err := client.CallAPI(ctx, HttpGet, "v2/missing.json", &RequestOptions{CheckStatus: true})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAPI)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Equal(t, `HTTP Error. Body: {"error":"not found"}`, apiErr.Message)
	})
}

func TestCallAPI_BaseURLNotSet(t *testing.T) {
	client := newTestClient(t, "", nil, nil)

	_, err := client.CallAPI(context.Background(), HttpGet, "v2/test.json", nil)
	assert.ErrorIs(t, err, ErrBaseURLNotSet)
}

func TestCallAPI_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client := newTestClient(t, baseURL, nil, nil)
	_, err := client.CallAPI(context.Background(), HttpGet, "v2/test.json", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindAPI, apiErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestCallAPI_WithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil, nil)
	resp, err := client.CallAPI(context.Background(), HttpDelete, "v2/test.json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRequestData(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		check  func(t *testing.T, result *Result, err error)
	}{
		{
			name:   "200 returns JSON body",
			status: http.StatusOK,
			body:   `{"items":[{"id":1,"name":"lead"}],"count":1}`,
			check: func(t *testing.T, result *Result, err error) {
				require.NoError(t, err)
				assert.JSONEq(t, `{"items":[{"id":1,"name":"lead"}],"count":1}`, string(result.Raw))

				value, err := result.Value()
				require.NoError(t, err)
				assert.Equal(t, float64(1), value.(map[string]interface{})["count"])
			},
		},
		{
			name:   "200 with invalid JSON",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, result *Result, err error) {
				require.Error(t, err)
				assert.Nil(t, result)
			},
		},
		{
			name:   "204 returns true",
			status: http.StatusNoContent,
			check: func(t *testing.T, result *Result, err error) {
				require.NoError(t, err)
				assert.True(t, result.NoContent)

				value, err := result.Value()
				require.NoError(t, err)
				assert.Equal(t, true, value)
			},
		},
		{
			name:   "400 is a validation error",
			status: http.StatusBadRequest,
			body:   `{"limit":"must be at most 50","offset":["must be positive"]}`,
			check: func(t *testing.T, result *Result, err error) {
				assert.ErrorIs(t, err, ErrValidation)

				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusBadRequest, apiErr.Status)
				assert.Equal(t, map[string]interface{}{
					"limit":  "must be at most 50",
					"offset": []interface{}{"must be positive"},
				}, apiErr.Fields)
			},
		},
		{
			name:   "401 is an auth error with challenge",
			status: http.StatusUnauthorized,
			header: map[string]string{"WWW-Authenticate": `Bearer realm="target", error="invalid_token"`},
			body:   `{"error":"invalid_token"}`,
			check: func(t *testing.T, result *Result, err error) {
				assert.ErrorIs(t, err, ErrAuth)

				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
				assert.Equal(t, `Bearer realm="target", error="invalid_token"`, apiErr.Challenge)
				assert.Equal(t, map[string]interface{}{"error": "invalid_token"}, apiErr.Message)
			},
		},
		{
			name:   "401 without challenge",
			status: http.StatusUnauthorized,
			body:   `{"error":"invalid_token"}`,
			check: func(t *testing.T, result *Result, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, KindAuth, apiErr.Kind)
				assert.Empty(t, apiErr.Challenge)
			},
		},
		{
			name:   "403 is a generic error",
			status: http.StatusForbidden,
			body:   `{"error":"forbidden"}`,
			check: func(t *testing.T, result *Result, err error) {
				assert.ErrorIs(t, err, ErrAPI)

				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusForbidden, apiErr.Status)
				assert.Equal(t, map[string]interface{}{"error": "forbidden"}, apiErr.Message)
			},
		},
		{
			name:   "503 is a generic error",
			status: http.StatusServiceUnavailable,
			body:   `{"error":"maintenance"}`,
			check: func(t *testing.T, result *Result, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, KindAPI, apiErr.Kind)
				assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
			},
		},
		{
			name:   "non-JSON error body is kept as text",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(t *testing.T, result *Result, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusBadGateway, apiErr.Status)
				assert.Equal(t, "<html>bad gateway</html>", apiErr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for key, value := range tt.header {
					w.Header().Set(key, value)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, &oauth2.Token{AccessToken: "test_access_token"}, nil)
			result, err := client.requestData(context.Background(), HttpGet, "v2/test.json", &RequestOptions{CheckStatus: true})
			tt.check(t, result, err)
		})
	}
}
