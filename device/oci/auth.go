package oci

import (
	"context"
	"strings"

	"github.com/reglet-dev/thingpedia-registry/netutil"
)

// StaticAuthProvider serves one set of credentials for the registry host of
// the configured repository and none for any other host.
type StaticAuthProvider struct {
	host     string
	username string
	password string
}

// NewStaticAuthProvider binds username and password to the registry of
// repository.
func NewStaticAuthProvider(repository, username, password string) *StaticAuthProvider {
	return &StaticAuthProvider{
		host:     netutil.RegistryHost(repository),
		username: username,
		password: password,
	}
}

// GetCredentials implements ports.AuthProvider.
func (p *StaticAuthProvider) GetCredentials(_ context.Context, registry string) (username, password string, err error) {
	if !strings.EqualFold(registry, p.host) {
		return "", "", nil
	}
	return p.username, p.password, nil
}
