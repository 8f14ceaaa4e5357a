package targetclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorKind classifies an APIError.
type ErrorKind int

const (
	// KindAPI covers every failure not classified below, including transport errors.
	KindAPI ErrorKind = iota
	// KindValidation is a 400 response carrying per-field messages.
	KindValidation
	// KindAuth is a 401 response or a failed token refresh.
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	default:
		return "api"
	}
}

// Sentinels for errors.Is matching on an APIError's kind.
var (
	ErrAPI        = errors.New("target api error")
	ErrValidation = errors.New("target validation error")
	ErrAuth       = errors.New("target auth error")

	ErrBaseURLNotSet = errors.New("base url is not set")
)

// APIError is returned for every unsuccessful API call.
type APIError struct {
	Kind ErrorKind

	// Status is the HTTP status, or 500 when no response was received.
	Status int

	// Message is the decoded error body: JSON values as decoded by
	// encoding/json, or the raw text when the body is not JSON.
	Message interface{}

	// Fields maps field names to validation messages (KindValidation only).
	Fields map[string]interface{}

	// Challenge is the WWW-Authenticate header of a 401 response; empty when absent.
	Challenge string

	// Body is the raw response body, if any.
	Body []byte

	// Err is the underlying cause, if any.
	Err error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindValidation:
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)

		var b strings.Builder
		b.WriteString("Validation failed on:")
		for _, name := range names {
			fmt.Fprintf(&b, "\n  #%s: %s", name, render(e.Fields[name]))
		}
		return b.String()
	case KindAuth:
		msg := fmt.Sprintf("%s (http status %d)", render(e.Message), e.Status)
		if e.Challenge != "" {
			msg += " " + e.Challenge
		}
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	default:
		msg := fmt.Sprintf("%s (http status %d)", render(e.Message), e.Status)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
}

// Is matches the kind sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAPI:
		return e.Kind == KindAPI
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrAuth:
		return e.Kind == KindAuth
	}
	return false
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// render formats a decoded JSON value for an error message.
func render(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// processError maps a non-success response to an APIError. It always returns
// a non-nil error.
func processError(resp *Response) error {
	var body interface{}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		body = string(resp.Body)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		fields, _ := body.(map[string]interface{})
		return &APIError{
			Kind:    KindValidation,
			Status:  http.StatusBadRequest,
			Message: body,
			Fields:  fields,
			Body:    resp.Body,
		}
	case http.StatusUnauthorized:
		return &APIError{
			Kind:      KindAuth,
			Status:    http.StatusUnauthorized,
			Message:   body,
			Challenge: resp.Header.Get("WWW-Authenticate"),
			Body:      resp.Body,
		}
	default:
		return &APIError{
			Kind:    KindAPI,
			Status:  resp.StatusCode,
			Message: body,
			Body:    resp.Body,
		}
	}
}
