package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"syscall"
)

// Sentinel errors mapped from HTTP status codes.
var (
	// ErrResourceNotFound is returned for 404 responses.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrIllegalArgument is returned for 400 responses.
	ErrIllegalArgument = errors.New("illegal argument")

	// ErrAuthentication is returned for 401 responses.
	ErrAuthentication = errors.New("authentication failed")

	// ErrAuthorization is returned for 403 responses.
	ErrAuthorization = errors.New("permission denied")

	// ErrConflict is returned for 409 responses.
	ErrConflict = errors.New("conflict with existing resource")

	// ErrServerNotAvailable is returned for 502, 503 and 504 responses.
	ErrServerNotAvailable = errors.New("server not available")
)

// Temporary reports whether err comes from a server that was unavailable,
// so the same request may succeed later.
func Temporary(err error) bool {
	return errors.Is(err, ErrServerNotAvailable)
}

// ClientError is any other non-successful response.
type ClientError struct {
	Status  int
	Message string
}

func (e *ClientError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// OSError is a failure the server reported with an errno, as the storage
// service does for filesystem operations. It unwraps to both the errno
// and the status sentinel, so errors.Is(err, fs.ErrNotExist) and
// errors.Is(err, ErrResourceNotFound) both hold for a missing path.
type OSError struct {
	Errno   syscall.Errno
	Status  int
	Message string
}

func (e *OSError) Error() string {
	if e.Message == "" {
		return e.Errno.Error()
	}
	return fmt.Sprintf("%s: %s", e.Errno.Error(), e.Message)
}

func (e *OSError) Unwrap() []error {
	if s := statusSentinel(e.Status); s != nil {
		return []error{e.Errno, s}
	}
	return []error{e.Errno}
}

var errnoNames = map[string]syscall.Errno{
	"ENOENT":    syscall.ENOENT,
	"EEXIST":    syscall.EEXIST,
	"ENOTDIR":   syscall.ENOTDIR,
	"EISDIR":    syscall.EISDIR,
	"ENOTEMPTY": syscall.ENOTEMPTY,
	"EACCES":    syscall.EACCES,
	"EPERM":     syscall.EPERM,
	"EINVAL":    syscall.EINVAL,
	"ENOSPC":    syscall.ENOSPC,
	"EXDEV":     syscall.EXDEV,
}

// errorPayload is the JSON body platform services send with failures.
type errorPayload struct {
	Error       string          `json:"error"`
	Description string          `json:"description"`
	Message     string          `json:"message"`
	Detail      json.RawMessage `json:"detail"`
	Errno       json.RawMessage `json:"errno"`
}

func (p errorPayload) text() string {
	switch {
	case p.Error != "":
		return p.Error
	case p.Description != "":
		return p.Description
	case p.Message != "":
		return p.Message
	case len(p.Detail) > 0:
		var s string
		if json.Unmarshal(p.Detail, &s) == nil {
			return s
		}
		return string(p.Detail)
	}
	return ""
}

func (p errorPayload) errno() (syscall.Errno, bool) {
	if len(p.Errno) == 0 {
		return 0, false
	}
	var name string
	if json.Unmarshal(p.Errno, &name) == nil {
		if e, ok := errnoNames[strings.ToUpper(name)]; ok {
			return e, true
		}
		if n, err := strconv.Atoi(name); err == nil && n > 0 {
			return syscall.Errno(n), true
		}
		return 0, false
	}
	var n int
	if json.Unmarshal(p.Errno, &n) == nil && n > 0 {
		return syscall.Errno(n), true
	}
	return 0, false
}

func statusSentinel(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrIllegalArgument
	case http.StatusUnauthorized:
		return ErrAuthentication
	case http.StatusForbidden:
		return ErrAuthorization
	case http.StatusNotFound:
		return ErrResourceNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrServerNotAvailable
	}
	return nil
}

// mapError converts a failed response into a typed error.
func mapError(status int, body []byte) error {
	var payload errorPayload
	text := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil {
		if t := payload.text(); t != "" {
			text = t
		}
		if errno, ok := payload.errno(); ok {
			return &OSError{Errno: errno, Status: status, Message: text}
		}
	}

	if s := statusSentinel(status); s != nil {
		if text == "" {
			return s
		}
		return fmt.Errorf("%w: %s", s, text)
	}
	return &ClientError{Status: status, Message: text}
}
