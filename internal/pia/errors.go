package pia

import (
	"errors"
)

// AuthError reports rejected credentials or a token response without a token.
type AuthError struct {
	Msg string
	Err error
}

func (e AuthError) Error() string {
	return e.Msg
}

func (e AuthError) Unwrap() error {
	return e.Err
}

// CatalogError reports a server list that could not be fetched or parsed.
type CatalogError struct {
	Msg string
	Err error
}

func (e CatalogError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e CatalogError) Unwrap() error {
	return e.Err
}

// RegistrationError reports a gateway that refused or failed to register a key.
type RegistrationError struct {
	Msg string
	Err error
}

func (e RegistrationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e RegistrationError) Unwrap() error {
	return e.Err
}

var ErrRegionNotFound = errors.New("region not found")

func IsAuth(err error) bool {
	var a AuthError
	return errors.As(err, &a)
}

func IsCatalog(err error) bool {
	var c CatalogError
	return errors.As(err, &c)
}

func IsRegistration(err error) bool {
	var r RegistrationError
	return errors.As(err, &r)
}
