package pia

// Credentials are exchanged once for a session token and never stored.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Server is one gateway of a region.
type Server struct {
	IP string `json:"ip"`
	CN string `json:"cn,omitempty"`
}

// Servers groups a region's gateways by protocol. Only WireGuard is used.
type Servers struct {
	WG []Server `json:"wg"`
}

type Region struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Country     string  `json:"country,omitempty" yaml:"country,omitempty"`
	PortForward bool    `json:"port_forward" yaml:"port_forward"`
	Geo         bool    `json:"geo" yaml:"geo"`
	Servers     Servers `json:"servers" yaml:"servers"`
}

// HasWireGuard reports whether the region exposes at least one WireGuard server.
func (r Region) HasWireGuard() bool {
	return len(r.Servers.WG) > 0
}

// Registration holds the tunnel parameters a gateway assigns to a public key.
type Registration struct {
	PeerIP     string `json:"peer_ip" validate:"required,ip"`
	ServerKey  string `json:"server_key" validate:"required,base64"`
	ServerIP   string `json:"server_ip" validate:"required,ip"`
	ServerPort int    `json:"server_port" validate:"min=1,max=65535"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type serverList struct {
	Regions []Region `json:"regions"`
}

type addKeyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Registration
}
