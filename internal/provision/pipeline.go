// Package provision runs one provisioning attempt end to end: fresh key
// pair, gateway registration and configuration document.
package provision

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"piawg/internal/pia"
	"piawg/internal/wgconf"
	"piawg/internal/wgkey"
)

// Provider is the subset of the PIA client the pipeline drives.
type Provider interface {
	Authenticate(ctx context.Context, creds pia.Credentials) (string, error)
	FetchRegions(ctx context.Context) ([]pia.Region, error)
	Register(ctx context.Context, token string, publicKey wgtypes.Key, region pia.Region) (pia.Registration, error)
}

type Pipeline struct {
	provider Provider
	newKey   func() (wgkey.KeyPair, error)
	log      *logrus.Entry
}

type Option func(*Pipeline)

// WithKeySource replaces crypto/rand key generation.
func WithKeySource(fn func() (wgkey.KeyPair, error)) Option {
	return func(p *Pipeline) { p.newKey = fn }
}

func New(provider Provider, log *logrus.Entry, opts ...Option) *Pipeline {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Pipeline{provider: provider, newKey: wgkey.New, log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Login exchanges credentials for a session token.
func (p *Pipeline) Login(ctx context.Context, creds pia.Credentials) (string, error) {
	return p.provider.Authenticate(ctx, creds)
}

// Regions returns the current WireGuard-capable catalog.
func (p *Pipeline) Regions(ctx context.Context) ([]pia.Region, error) {
	return p.provider.FetchRegions(ctx)
}

type Request struct {
	Token  string
	Region pia.Region
	// DNS is the resolved resolver address, see dnspreset.Resolve.
	DNS string
}

type Result struct {
	AttemptID    string           `json:"attempt_id"`
	RegionID     string           `json:"region_id"`
	Filename     string           `json:"filename"`
	PublicKey    string           `json:"public_key"`
	Registration pia.Registration `json:"registration"`
	Document     string           `json:"document"`
}

// Provision generates a fresh key pair, registers it in req.Region and
// renders the document. Nothing from a failed attempt is returned.
func (p *Pipeline) Provision(ctx context.Context, req Request) (Result, error) {
	if req.Token == "" {
		return Result{}, pia.AuthError{Msg: "no session token: log in first"}
	}
	if req.DNS == "" {
		return Result{}, fmt.Errorf("no DNS resolver given")
	}

	id := uuid.NewString()
	log := p.log.WithFields(logrus.Fields{"attempt": id, "region": req.Region.ID})

	kp, err := p.newKey()
	if err != nil {
		return Result{}, err
	}
	log.WithField("public_key", kp.Public.String()).Debug("key pair generated")

	reg, err := p.provider.Register(ctx, req.Token, kp.Public, req.Region)
	if err != nil {
		log.WithError(err).Warn("registration failed")
		return Result{}, err
	}
	log.WithFields(logrus.Fields{"peer_ip": reg.PeerIP, "server_ip": reg.ServerIP}).Info("key registered")

	return Result{
		AttemptID:    id,
		RegionID:     req.Region.ID,
		Filename:     wgconf.DefaultFilename(req.Region.ID),
		PublicKey:    kp.Public.String(),
		Registration: reg,
		Document:     wgconf.Build(kp, reg, req.DNS),
	}, nil
}

// ProvisionN runs n independent attempts, each with its own key pair. It
// stops at the first failure and returns the documents produced so far.
func (p *Pipeline) ProvisionN(ctx context.Context, req Request, n int) ([]Result, error) {
	if n < 1 {
		n = 1
	}
	out := make([]Result, 0, n)
	for i := 0; i < n; i++ {
		res, err := p.Provision(ctx, req)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}
