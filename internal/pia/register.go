package pia

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"piawg/internal/transport"
)

const statusOK = "OK"

// PickServer chooses one of the region's WireGuard servers uniformly at random.
func (c *Client) PickServer(region Region) (Server, error) {
	if !region.HasWireGuard() {
		return Server{}, RegistrationError{Msg: "no WireGuard servers available in region " + region.ID}
	}
	return region.Servers.WG[c.pick(len(region.Servers.WG))], nil
}

// Register submits publicKey to one of the region's gateways and returns
// the tunnel parameters it assigns. Gateways present certificates that are
// not publicly rooted, so this is the one call made without verification.
func (c *Client) Register(ctx context.Context, token string, publicKey wgtypes.Key, region Region) (Registration, error) {
	server, err := c.PickServer(region)
	if err != nil {
		return Registration{}, err
	}

	log := c.log.WithFields(logrus.Fields{"region": region.ID, "server": server.CN, "ip": server.IP})
	log.Debug("registering public key")

	raw, err := c.transport.Send(ctx, transport.Request{
		URL:      c.addKeyURL(server, token, publicKey),
		Method:   http.MethodGet,
		Insecure: true,
	})
	if err != nil {
		return Registration{}, RegistrationError{Msg: "contact gateway " + server.IP, Err: err}
	}

	return parseAddKey(raw)
}

func (c *Client) addKeyURL(server Server, token string, publicKey wgtypes.Key) string {
	q := url.Values{}
	q.Set("pt", token)
	q.Set("pubkey", publicKey.String())
	u := url.URL{
		Scheme:   "https",
		Host:     net.JoinHostPort(server.IP, strconv.Itoa(c.endpoints.GatewayPort)),
		Path:     pathAddKey,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func parseAddKey(raw []byte) (Registration, error) {
	var resp addKeyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Registration{}, RegistrationError{Msg: "decode gateway response", Err: err}
	}
	if resp.Status != statusOK {
		msg := resp.Message
		if msg == "" {
			msg = "key registration failed"
		}
		return Registration{}, RegistrationError{Msg: msg}
	}
	if err := validate.Struct(resp.Registration); err != nil {
		return Registration{}, RegistrationError{Msg: "gateway returned incomplete tunnel parameters", Err: err}
	}
	return resp.Registration, nil
}
