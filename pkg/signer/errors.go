package signer

import "errors"

var (
	ErrUnknownKey      = errors.New("unknown key id")
	ErrNoActiveKey     = errors.New("no active signing key")
	ErrInvalidSignature = errors.New("signature verification failed")
)
