package pia

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"piawg/internal/transport"
)

const okAddKey = `{"status":"OK","server_key":"hSDwCYkwp1R0i33ctD73Wg2/Og0mOBr066SpjqqbTmo=",` +
	`"server_port":1337,"server_ip":"10.0.0.1","server_vip":"10.0.0.1","peer_ip":"10.0.0.2",` +
	`"peer_pubkey":"Ma/bv+Q2mO9Jp8wCeB1Ox9QdK8NOs1Vd4bqoSmXrYH8=","dns_servers":["10.0.0.243"]}`

func mustKey(t *testing.T, s string) wgtypes.Key {
	t.Helper()
	k, err := wgtypes.ParseKey(s)
	require.NoError(t, err)
	return k
}

func testRegion(ips ...string) Region {
	r := Region{ID: "nl_amsterdam", Name: "Amsterdam"}
	for _, ip := range ips {
		r.Servers.WG = append(r.Servers.WG, Server{IP: ip, CN: "cn-" + ip})
	}
	return r
}

func TestRegisterReturnsTunnelParameters(t *testing.T) {
	ft := &fakeTransport{body: []byte(okAddKey)}
	c := newTestClient(t, ft)
	pub := mustKey(t, "Ma/bv+Q2mO9Jp8wCeB1Ox9QdK8NOs1Vd4bqoSmXrYH8=")

	reg, err := c.Register(context.Background(), "tok", pub, testRegion("10.1.2.3"))
	require.NoError(t, err)
	assert.Equal(t, Registration{
		PeerIP:     "10.0.0.2",
		ServerKey:  "hSDwCYkwp1R0i33ctD73Wg2/Og0mOBr066SpjqqbTmo=",
		ServerIP:   "10.0.0.1",
		ServerPort: 1337,
	}, reg)

	req := ft.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.True(t, req.Insecure, "gateway certificates are not publicly rooted")
	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3:1337", u.Host)
	assert.Equal(t, "/addKey", u.Path)
	assert.Equal(t, "tok", u.Query().Get("pt"))
	assert.Equal(t, pub.String(), u.Query().Get("pubkey"))
}

func TestRegisterUsesConfiguredGatewayPort(t *testing.T) {
	ft := &fakeTransport{body: []byte(okAddKey)}
	c := newTestClient(t, ft, WithEndpoints(Endpoints{GatewayPort: 8443}))

	_, err := c.Register(context.Background(), "tok", mustKey(t, "Ma/bv+Q2mO9Jp8wCeB1Ox9QdK8NOs1Vd4bqoSmXrYH8="), testRegion("10.1.2.3"))
	require.NoError(t, err)
	u, err := url.Parse(ft.last().URL)
	require.NoError(t, err)
	assert.Equal(t, "8443", u.Port())
}

func TestRegisterRejected(t *testing.T) {
	cases := []struct {
		name string
		body string
		msg  string
	}{
		{"provider message", `{"status":"ERROR","message":"Login failed!"}`, "Login failed!"},
		{"no message", `{"status":"ERROR"}`, "key registration failed"},
		{"missing status", `{"peer_ip":"10.0.0.2"}`, "key registration failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, &fakeTransport{body: []byte(tc.body)})
			_, err := c.Register(context.Background(), "tok", wgtypes.Key{}, testRegion("10.1.2.3"))
			require.Error(t, err)
			assert.True(t, IsRegistration(err))
			assert.Equal(t, tc.msg, err.Error())
		})
	}
}

func TestRegisterIncompleteParameters(t *testing.T) {
	cases := map[string]string{
		"missing peer ip": `{"status":"OK","server_key":"hSDwCYkwp1R0i33ctD73Wg2/Og0mOBr066SpjqqbTmo=","server_ip":"10.0.0.1","server_port":1337}`,
		"bad server ip":   `{"status":"OK","peer_ip":"10.0.0.2","server_key":"hSDwCYkwp1R0i33ctD73Wg2/Og0mOBr066SpjqqbTmo=","server_ip":"nope","server_port":1337}`,
		"zero port":       `{"status":"OK","peer_ip":"10.0.0.2","server_key":"hSDwCYkwp1R0i33ctD73Wg2/Og0mOBr066SpjqqbTmo=","server_ip":"10.0.0.1"}`,
		"not json":        `<html></html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, &fakeTransport{body: []byte(body)})
			_, err := c.Register(context.Background(), "tok", wgtypes.Key{}, testRegion("10.1.2.3"))
			require.Error(t, err)
			assert.True(t, IsRegistration(err))
		})
	}
}

func TestRegisterWithoutServers(t *testing.T) {
	ft := &fakeTransport{body: []byte(okAddKey)}
	c := newTestClient(t, ft)

	_, err := c.Register(context.Background(), "tok", wgtypes.Key{}, testRegion())
	require.Error(t, err)
	assert.True(t, IsRegistration(err))
	assert.Empty(t, ft.requests)
}

func TestRegisterTransportFailure(t *testing.T) {
	c := newTestClient(t, &fakeTransport{err: transport.NetworkError{Msg: "GET https://10.1.2.3:1337/addKey"}})
	_, err := c.Register(context.Background(), "tok", wgtypes.Key{}, testRegion("10.1.2.3"))
	require.Error(t, err)
	assert.True(t, IsRegistration(err))
	assert.True(t, transport.IsNetwork(err))
}

func TestPickServerUsesPicker(t *testing.T) {
	c := newTestClient(t, &fakeTransport{}, WithPicker(func(n int) int { return n - 1 }))
	s, err := c.PickServer(testRegion("1.1.1.1", "2.2.2.2", "3.3.3.3"))
	require.NoError(t, err)
	assert.Equal(t, "3.3.3.3", s.IP)
}

func TestPickServerIsUniform(t *testing.T) {
	const trials = 30000
	region := testRegion("1.1.1.1", "2.2.2.2", "3.3.3.3")
	c := newTestClient(t, &fakeTransport{})

	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		s, err := c.PickServer(region)
		require.NoError(t, err)
		counts[s.IP]++
	}

	want := trials / len(region.Servers.WG)
	for ip, n := range counts {
		assert.InDelta(t, want, n, float64(want)*0.05, ip)
	}
	assert.Len(t, counts, 3)
}
