package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrUpstream       = errors.New("upstream error")
	ErrSessionExpired = errors.New("OAuth session expired")
)

// ValidationError is a user-correctable problem with request input (eg, missing handle, empty post text).
type ValidationError struct {
	Field   string
	Message string

	// query marker used when the error is reported by redirecting home
	Marker string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UpstreamError wraps a failure from any external call: directory or profile lookups, the OAuth exchange, or record creation. The message shown to users is the wrapped error's message.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// PageError is returned by handlers which need an HTML error page rendered instead of their normal response. See [Server.errorHandler].
type PageError struct {
	Status int
	Title  string

	// optional text shown before the message
	Lead string

	// include the error chain in a collapsed details section
	ShowDetail bool

	Err error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

func authErrorPage(status int, err error, detail bool) *PageError {
	return &PageError{
		Status:     status,
		Title:      "Authentication Error",
		ShowDetail: detail,
		Err:        err,
	}
}

func postErrorPage(err error) *PageError {
	return &PageError{
		Status: http.StatusInternalServerError,
		Title:  "Error",
		Lead:   "Failed to create post:",
		Err:    err,
	}
}

// redirectHome sends the browser back to the home page, with an "error" query marker if err is a marked validation error or an expired session.
func redirectHome(c echo.Context, err error) error {
	if err == nil {
		return c.Redirect(http.StatusFound, "/")
	}
	marker := "unknown"
	var ve *ValidationError
	switch {
	case errors.As(err, &ve) && ve.Marker != "":
		marker = ve.Marker
	case errors.Is(err, ErrSessionExpired):
		marker = "session_expired"
	}
	return c.Redirect(http.StatusFound, "/?error="+url.QueryEscape(marker))
}

// errorChain renders each level of a wrapped error on its own line, outermost first.
func errorChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %s", e, e.Error()))
	}
	if len(lines) == 0 {
		return "No details available"
	}
	return strings.Join(lines, "\n")
}
