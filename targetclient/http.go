package targetclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
)

// HttpMethod represents an HTTP method.
type HttpMethod string

// HTTP Method constants
const (
	HttpGet     HttpMethod = "GET"
	HttpPost    HttpMethod = "POST"
	HttpPut     HttpMethod = "PUT"
	HttpDelete  HttpMethod = "DELETE"
	HttpPatch   HttpMethod = "PATCH"
	HttpHead    HttpMethod = "HEAD"
	HttpOptions HttpMethod = "OPTIONS"
)

// RequestOptions lists the per-request options CallAPI understands.
type RequestOptions struct {
	// Headers are set on the request after the Authorization and
	// Content-Type headers, so they can override either.
	Headers map[string]string

	// Query is appended to the resource URL.
	Query url.Values

	// Body can be nil, a string, []byte, url.Values, or any JSON-serializable type.
	Body interface{}

	// CheckStatus turns responses with a status of 400 or above into a KindAPI error.
	CheckStatus bool
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is below 400.
func (r *Response) OK() bool {
	return r.StatusCode < http.StatusBadRequest
}

// Result is the decoded payload of a successful API call.
type Result struct {
	// Raw is the JSON body of a 200 response.
	Raw json.RawMessage

	// NoContent is set for 204 responses.
	NoContent bool
}

// Decode unmarshals the JSON payload into v.
func (r *Result) Decode(v interface{}) error {
	if r.NoContent {
		return errors.New("response has no content")
	}
	return json.Unmarshal(r.Raw, v)
}

// Value returns the JSON payload as generic Go values, or true for a
// no-content response.
func (r *Result) Value() (interface{}, error) {
	if r.NoContent {
		return true, nil
	}
	var v interface{}
	if err := json.Unmarshal(r.Raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
