package view

import (
	"crypto/rand"
	"encoding/base32"
)

// idEncoding is unpadded base32, safe inside a query string.
var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const (
	connIDBytes = 12
	tokenBytes  = 32
)

// newConnID labels one viewer connection for logs and control tracking.
func newConnID() string {
	buf := make([]byte, connIDBytes)
	_, _ = rand.Read(buf)
	return idEncoding.EncodeToString(buf)
}

// newToken mints the watch URL access token.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return idEncoding.EncodeToString(buf), nil
}
