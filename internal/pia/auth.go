package pia

import (
	"context"
	"encoding/json"
	"net/http"

	"piawg/internal/transport"
)

// Authenticate exchanges credentials for a session token. A response
// without a token, whatever its shape, is an AuthError.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	if err := validate.Struct(creds); err != nil {
		return "", AuthError{Msg: "username and password are required", Err: err}
	}

	raw, err := c.transport.Send(ctx, transport.Request{
		URL:    c.endpoints.TokenURL,
		Method: http.MethodPost,
		Body:   creds,
	})
	if err != nil {
		return "", err
	}

	var resp tokenResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", AuthError{Msg: "authentication failed: unexpected response from token service", Err: err}
	}
	if resp.Token == "" {
		return "", AuthError{Msg: "authentication failed: check your credentials"}
	}

	c.log.WithField("username", creds.Username).Debug("session token issued")
	return resp.Token, nil
}
