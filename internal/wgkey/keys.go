// Package wgkey generates WireGuard key pairs.
package wgkey

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

type KeyPair struct {
	Private wgtypes.Key
	Public  wgtypes.Key
}

// EntropyError reports that the random source could not supply key material.
type EntropyError struct {
	Err error
}

func (e EntropyError) Error() string {
	return fmt.Sprintf("read random key material: %v", e.Err)
}

func (e EntropyError) Unwrap() error {
	return e.Err
}

func IsEntropy(err error) bool {
	var e EntropyError
	return errors.As(err, &e)
}

// New generates a key pair from crypto/rand.
func New() (KeyPair, error) {
	return Generate(rand.Reader)
}

// Generate reads 32 bytes from r, clamps them into a Curve25519 scalar and
// derives the public key by X25519 base-point multiplication.
func Generate(r io.Reader) (KeyPair, error) {
	var scalar [wgtypes.KeyLen]byte
	if _, err := io.ReadFull(r, scalar[:]); err != nil {
		return KeyPair{}, EntropyError{Err: err}
	}
	Clamp(&scalar)

	pub, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive public key: %w", err)
	}

	public, err := wgtypes.NewKey(pub)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive public key: %w", err)
	}
	return KeyPair{Private: wgtypes.Key(scalar), Public: public}, nil
}

// Clamp applies the Curve25519 private key transform in place.
func Clamp(k *[wgtypes.KeyLen]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
