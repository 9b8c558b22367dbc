package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 30 * time.Second
	userAgent      = "piawg"
)

// HTTP sends requests with resty. It keeps two clients so that disabling
// certificate verification for one request never leaks into another.
type HTTP struct {
	verified *resty.Client
	insecure *resty.Client
	log      *logrus.Entry
}

func NewHTTP(timeout time.Duration, log *logrus.Entry) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &HTTP{
		verified: newRestyClient(timeout),
		insecure: newRestyClient(timeout).
			SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}), //nolint:gosec // gateway certificates are not publicly rooted
		log: log,
	}
}

func newRestyClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
}

func (h *HTTP) Send(ctx context.Context, req Request) ([]byte, error) {
	client := h.verified
	if req.Insecure {
		client = h.insecure
	}

	r := client.R().SetContext(ctx)
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		r.SetHeader("Content-Type", "application/json").SetBody(data)
	}

	resp, err := r.Execute(req.method(), req.URL)
	if err != nil {
		return nil, NetworkError{Msg: req.method() + " " + redactQuery(req.URL), Err: stripURL(err)}
	}

	h.log.WithFields(logrus.Fields{
		"method":   req.method(),
		"url":      redactQuery(req.URL),
		"status":   resp.StatusCode(),
		"insecure": req.Insecure,
		"elapsed":  resp.Time(),
	}).Debug("http request completed")

	body := resp.Body()
	if len(body) == 0 {
		return nil, NetworkError{Msg: "empty response from " + redactQuery(req.URL), Detail: resp.Status()}
	}
	return body, nil
}

// stripURL unwraps *url.Error, whose message repeats the full request URL.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
