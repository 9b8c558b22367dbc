package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func TestHTTPSendPostsJSON(t *testing.T) {
	var gotContentType string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Write([]byte(`{"token":"abc"}`))
	}))
	defer srv.Close()

	h := NewHTTP(5*time.Second, quietLogger())
	out, err := h.Send(context.Background(), Request{
		URL:    srv.URL,
		Method: http.MethodPost,
		Body:   map[string]string{"username": "p123", "password": "secret"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"abc"}`, string(out))
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "p123", gotBody["username"])
}

func TestHTTPSendReturnsBodyForErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"bad credentials"}`))
	}))
	defer srv.Close()

	out, err := NewHTTP(0, quietLogger()).Send(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, string(out), "bad credentials")
}

func TestHTTPSendEmptyBodyIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTP(0, quietLogger()).Send(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPSendVerifiesCertificatesUnlessInsecure(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK"}`))
	}))
	defer srv.Close()

	h := NewHTTP(5*time.Second, quietLogger())

	_, err := h.Send(context.Background(), Request{URL: srv.URL})
	require.Error(t, err, "self-signed certificate must be rejected for verified calls")
	assert.True(t, IsNetwork(err))

	out, err := h.Send(context.Background(), Request{URL: srv.URL, Insecure: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"OK"}`, string(out))

	// The insecure call must not have relaxed the verified client.
	_, err = h.Send(context.Background(), Request{URL: srv.URL})
	assert.Error(t, err)
}

func TestHTTPSendConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTP(time.Second, quietLogger()).Send(context.Background(), Request{URL: url + "/addKey?pt=secret"})
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.NotContains(t, err.Error(), "secret")
}

func TestNewTransportKinds(t *testing.T) {
	tr, err := New("", "", 0, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTP{}, tr)

	tr, err = New(KindCurl, "/usr/bin/curl", 0, nil)
	require.NoError(t, err)
	assert.IsType(t, &Curl{}, tr)
	assert.Equal(t, "/usr/bin/curl", tr.(*Curl).Path)

	_, err = New("carrier-pigeon", "", 0, nil)
	assert.Error(t, err)
}
