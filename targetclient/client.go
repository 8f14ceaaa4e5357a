package targetclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// Client is an authenticated client for the myTarget API.
// It owns the OAuth2 session and maps unsuccessful responses to *APIError.
type Client struct {
	tokenManager *tokenManager
	baseURL      string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a new Client from cfg. It performs no network I/O.
//
// Example:
//
//	client, err := targetclient.NewClient(targetclient.Config{
//		BaseURL:  "https://target.my.com",
//		ClientID: "your_client_id",
//		Token:    &oauth2.Token{AccessToken: "..."},
//	})
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.verify(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		httpClient = &clone
	}
	httpClient.Timeout = timeout

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     logger,
	}
	client.tokenManager = &tokenManager{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:  client.TokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		updater:    cfg.TokenUpdater,
		logger:     logger,
		token:      cfg.Token,
	}
	return client, nil
}

// TokenURL is the endpoint used to obtain and refresh tokens.
func (c *Client) TokenURL() string {
	return c.baseURL + "/api/v2/oauth2/token.json"
}

// URL returns the absolute URL of an API resource path such as "v2/user.json".
func (c *Client) URL(rpath string) string {
	return c.baseURL + "/api/" + rpath
}

// Token returns the token the client currently uses, or nil.
func (c *Client) Token() *oauth2.Token {
	return c.tokenManager.currentToken()
}

// CallAPI makes an authenticated API call and returns the response whatever its
// status, unless opts.CheckStatus is set.
//
// A 401 response to a request made with a refreshable token triggers one token
// refresh and one retry.
//
// Example:
//
//	resp, err := client.CallAPI(ctx, targetclient.HttpGet, "v2/user.json", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Status: %d, Response: %s\n", resp.StatusCode, resp.Body)
func (c *Client) CallAPI(ctx context.Context, method HttpMethod, rpath string, opts *RequestOptions) (*Response, error) {
	if c.baseURL == "" {
		return nil, ErrBaseURLNotSet
	}
	if opts == nil {
		opts = &RequestOptions{}
	}

	payload, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	target := c.URL(rpath)
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	token, err := c.tokenManager.getValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, target, payload, contentType, opts.Headers, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && token != nil && token.RefreshToken != "" {
		// Token might have been revoked or expired early, refresh and call again
		c.logger.Debug("unauthorized, refreshing token", "method", method, "url", target)
		token, err = c.tokenManager.refreshToken(ctx, token)
		if err != nil {
			// Report the server's 401, challenge included, with the refresh failure as cause.
			apiErr := processError(resp).(*APIError)
			apiErr.Err = err
			return nil, apiErr
		}
		resp, err = c.send(ctx, method, target, payload, contentType, opts.Headers, token)
		if err != nil {
			return nil, err
		}
	}

	if opts.CheckStatus && !resp.OK() {
		return nil, &APIError{
			Kind:    KindAPI,
			Status:  resp.StatusCode,
			Message: "HTTP Error. Body: " + string(resp.Body),
			Body:    resp.Body,
		}
	}
	return resp, nil
}

// requestData calls the API and decodes the outcome: the JSON body for 200,
// a no-content Result for 204 and an *APIError for anything else.
func (c *Client) requestData(ctx context.Context, method HttpMethod, rpath string, opts *RequestOptions) (*Result, error) {
	if opts != nil && opts.CheckStatus {
		unchecked := *opts
		unchecked.CheckStatus = false
		opts = &unchecked
	}

	resp, err := c.CallAPI(ctx, method, rpath, opts)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if !json.Valid(resp.Body) {
			return nil, fmt.Errorf("failed to decode response body: invalid JSON from %s", rpath)
		}
		return &Result{Raw: json.RawMessage(resp.Body)}, nil
	case http.StatusNoContent:
		return &Result{NoContent: true}, nil
	}
	return nil, processError(resp)
}

func (c *Client) send(ctx context.Context, method HttpMethod, target string, payload []byte, contentType string, headers map[string]string, token *oauth2.Token) (*Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, string(method), target, bodyReader)
	if err != nil {
		return nil, transportError("failed to create request", err)
	}

	if token != nil {
		token.SetAuthHeader(req)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug("sending request", "method", method, "url", target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("failed to send request", err)
	}
	defer resp.Body.Close()

	var reader io.ReadCloser
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		reader, err = gzip.NewReader(resp.Body)
		if err != nil {
			return nil, transportError("failed to create gzip reader", err)
		}
		defer reader.Close()
	default:
		reader = resp.Body
	}

	responseBody, err := io.ReadAll(reader)
	if err != nil {
		return nil, transportError("failed to read response body", err)
	}

	c.logger.Debug("received response", "method", method, "url", target, "status", resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       responseBody,
	}, nil
}

func encodeBody(body interface{}) ([]byte, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(v), "text/plain", nil
	case []byte:
		return v, "application/octet-stream", nil
	case url.Values:
		return []byte(v.Encode()), "application/x-www-form-urlencoded", nil
	default:
		jsonBody, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		return jsonBody, "application/json", nil
	}
}

func transportError(message string, err error) error {
	return &APIError{
		Kind:    KindAPI,
		Status:  http.StatusInternalServerError,
		Message: message,
		Err:     err,
	}
}
