// Package pia talks to the Private Internet Access provisioning endpoints:
// the token service, the region server list and the per-gateway key
// registration service.
package pia

import (
	"math/rand"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"piawg/internal/transport"
)

const (
	DefaultTokenURL      = "https://www.privateinternetaccess.com/api/client/v2/token"
	DefaultServerListURL = "https://serverlist.piaservers.net/vpninfo/servers/v6"
	DefaultGatewayPort   = 1337

	pathAddKey = "/addKey"
)

var validate = validator.New()

type Endpoints struct {
	TokenURL      string
	ServerListURL string
	GatewayPort   int
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		TokenURL:      DefaultTokenURL,
		ServerListURL: DefaultServerListURL,
		GatewayPort:   DefaultGatewayPort,
	}
}

// Picker returns an index in [0, n). It must be uniform.
type Picker func(n int) int

type Client struct {
	transport transport.Transport
	endpoints Endpoints
	pick      Picker
	log       *logrus.Entry
}

type Option func(*Client)

func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		if e.TokenURL != "" {
			c.endpoints.TokenURL = e.TokenURL
		}
		if e.ServerListURL != "" {
			c.endpoints.ServerListURL = e.ServerListURL
		}
		if e.GatewayPort > 0 {
			c.endpoints.GatewayPort = e.GatewayPort
		}
	}
}

func WithPicker(p Picker) Option {
	return func(c *Client) { c.pick = p }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = log }
}

func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		endpoints: DefaultEndpoints(),
		pick:      rand.Intn,
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
