package config

import (
	"errors"
	"strings"

	"piawg/internal/pia"
)

// Input is what the user typed at the login prompt or passed as flags.
type Input struct {
	Username string
	Password string
}

// Credentials normalises login input. The username is trimmed; the
// password is taken verbatim since whitespace may be part of it.
func Credentials(in Input) (pia.Credentials, error) {
	user := strings.TrimSpace(in.Username)
	if user == "" || in.Password == "" {
		return pia.Credentials{}, errors.New("username and password are required")
	}
	return pia.Credentials{Username: user, Password: in.Password}, nil
}
