// Package transport issues the outbound HTTPS requests made while
// provisioning. Callers choose per request whether the peer certificate is
// verified; only gateway registration turns verification off, because PIA
// gateways present certificates that do not chain to a public root.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	KindHTTP = "http"
	KindCurl = "curl"
)

// Request describes a single outbound call.
type Request struct {
	URL    string
	Method string
	// Body is serialized as JSON when non-nil.
	Body any
	// Insecure disables certificate verification for this call only.
	Insecure bool
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// Transport sends a request and returns the raw response body.
type Transport interface {
	Send(ctx context.Context, req Request) ([]byte, error)
}

// NetworkError reports a request that could not be completed, or that
// completed without producing any output. Detail carries the diagnostic
// text (stderr of the subprocess, or the HTTP status line).
type NetworkError struct {
	Msg    string
	Detail string
	Err    error
}

func (e NetworkError) Error() string {
	msg := "network request failed"
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e NetworkError) Unwrap() error {
	return e.Err
}

func IsNetwork(err error) bool {
	var n NetworkError
	return errors.As(err, &n)
}

// New builds the transport named by kind. curlPath only applies to the
// curl transport.
func New(kind, curlPath string, timeout time.Duration, log *logrus.Entry) (Transport, error) {
	switch kind {
	case "", KindHTTP:
		return NewHTTP(timeout, log), nil
	case KindCurl:
		return NewCurl(curlPath, timeout, log), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s or %s)", kind, KindHTTP, KindCurl)
	}
}
