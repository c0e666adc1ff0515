package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AuthRedirectError means the server asked the client to authenticate at URL
// instead of answering.
type AuthRedirectError struct {
	URL string
}

func (e *AuthRedirectError) Error() string {
	return "authentication required: " + e.URL
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// AuthRedirect returns the redirect URL when err carries one.
func AuthRedirect(err error) (string, bool) {
	var redirect *AuthRedirectError
	if errors.As(err, &redirect) {
		return redirect.URL, true
	}
	return "", false
}

// StatusCode returns the HTTP status behind err, or 0.
func StatusCode(err error) int {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code
	}
	return 0
}

// Message returns the text to show an operator for err: the server's
// message when there is one, the error string otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var status *StatusError
	if errors.As(err, &status) && status.Message != "" {
		return status.Message
	}
	var redirect *AuthRedirectError
	if errors.As(err, &redirect) {
		return redirect.Error()
	}
	return strings.TrimPrefix(err.Error(), "graphql: ")
}

// errorMessage extracts errors[0].message from a GraphQL error body.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		return payload.Errors[0].Message
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) <= 200 {
		return s
	}
	return fallback
}
