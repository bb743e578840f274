package http

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies why a fetch failed
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindTimeout
	KindDecode
	KindStatus
	KindTooLarge
	KindRedirect
)

// Sentinel errors matched by FetchError.Is
var (
	ErrNetwork  = errors.New("network error")
	ErrTimeout  = errors.New("request timed out")
	ErrDecode   = errors.New("failed to decode response body")
	ErrStatus   = errors.New("unexpected HTTP status")
	ErrTooLarge = errors.New("response body too large")
	ErrRedirect = errors.New("too many redirects")
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindDecode:
		return "decode"
	case KindStatus:
		return "status"
	case KindTooLarge:
		return "too_large"
	case KindRedirect:
		return "redirect"
	default:
		return "network"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindDecode:
		return ErrDecode
	case KindStatus:
		return ErrStatus
	case KindTooLarge:
		return ErrTooLarge
	case KindRedirect:
		return ErrRedirect
	default:
		return ErrNetwork
	}
}

// FetchError describes a failed fetch of a single URL
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: HTTP status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind.sentinel(), e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind.sentinel())
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *FetchError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Reason returns a short human-readable description suitable for feed readers
func (e *FetchError) Reason() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("HTTP status %d", e.StatusCode)
	}
	return e.Kind.sentinel().Error()
}

// classifyTransportError maps an error from the transport or body read onto a FetchError
func classifyTransportError(url string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.URL == "" {
			fe.URL = url
		}
		return fe
	}

	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, errRedirectLimit):
		kind = KindRedirect
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}

	return &FetchError{Kind: kind, URL: url, Err: err}
}
