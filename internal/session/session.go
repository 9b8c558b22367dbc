// Package session keeps the PIA session token between CLI invocations in
// the operating system keyring.
package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	DefaultService = "piawg"
	entryName      = "session"
)

var ErrNoSession = errors.New("not logged in: run `piawg login` first")

// Session is what a successful login leaves behind.
type Session struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type Keyring struct {
	service string
}

func NewKeyring(service string) *Keyring {
	if service == "" {
		service = DefaultService
	}
	return &Keyring{service: service}
}

func (k *Keyring) Save(s Session) error {
	if s.Token == "" {
		return errors.New("refusing to store an empty session token")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := keyring.Set(k.service, entryName, string(data)); err != nil {
		return fmt.Errorf("store session in keyring: %w", err)
	}
	return nil
}

// Load returns the stored session or ErrNoSession.
func (k *Keyring) Load() (Session, error) {
	raw, err := keyring.Get(k.service, entryName)
	if errors.Is(err, keyring.ErrNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session from keyring: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Token == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Clear forgets the stored session. Clearing when nothing is stored is not
// an error.
func (k *Keyring) Clear() error {
	err := keyring.Delete(k.service, entryName)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("remove session from keyring: %w", err)
	}
	return nil
}
