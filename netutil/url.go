package netutil

import (
	"net/url"
	"strings"
)

// StripCredentials removes user:password@ from a URL so it can be logged.
// Unparseable input is returned unchanged.
func StripCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.User = nil
	return parsed.String()
}

// RegistryHost returns the registry host of an OCI repository reference
// such as "ghcr.io/acme/packages" or "oci://localhost:5000/pkgs".
func RegistryHost(repository string) string {
	ref := strings.TrimPrefix(repository, "oci://")
	host, _, _ := strings.Cut(ref, "/")
	return strings.ToLower(host)
}
