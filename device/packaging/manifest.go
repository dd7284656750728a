// Package packaging prepares uploaded device packages and repacks them in
// the background once the submission that carried them has committed.
package packaging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/netutil"
	"github.com/reglet-dev/thingpedia-registry/validation"
)

// ManifestName is the manifest entry at the root of a package archive.
const ManifestName = "package.json"

// Keys injected into the manifest.
const (
	VersionKey  = "thingpedia-version"
	MetadataKey = "thingpedia-metadata"
)

// DefaultMaxManifestBytes bounds the uncompressed manifest.
const DefaultMaxManifestBytes = 1 << 20

// ManifestPreparer checks the manifest of an uploaded archive and produces
// the manifest the stored package will carry.
type ManifestPreparer struct {
	docs     validation.DocumentValidator
	document string
	maxBytes int64
}

// ManifestOption configures a ManifestPreparer.
type ManifestOption func(*ManifestPreparer)

// WithManifestSchema validates manifests against document in docs.
func WithManifestSchema(docs validation.DocumentValidator, document string) ManifestOption {
	return func(p *ManifestPreparer) {
		p.docs = docs
		p.document = document
	}
}

// WithMaxManifestBytes bounds the uncompressed manifest size.
func WithMaxManifestBytes(n int64) ManifestOption {
	return func(p *ManifestPreparer) { p.maxBytes = n }
}

// NewManifestPreparer creates a preparer. Without WithManifestSchema only
// the name and main members are checked.
func NewManifestPreparer(opts ...ManifestOption) *ManifestPreparer {
	p := &ManifestPreparer{maxBytes: DefaultMaxManifestBytes}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare reads package.json from archive, requires its name and main
// members, and returns it with the developer version and the descriptor
// metadata injected. Every manifest problem is a *entities.ManifestError.
func (p *ManifestPreparer) Prepare(archive []byte, version int, metadata json.RawMessage) ([]byte, error) {
	raw, err := readManifest(archive, p.maxBytes)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &entities.ManifestError{Reason: fmt.Sprintf("%s is not valid JSON: %v", ManifestName, err)}
	}
	manifest, ok := doc.(map[string]any)
	if !ok {
		return nil, &entities.ManifestError{Reason: ManifestName + " must be a JSON object"}
	}

	if err := p.check(manifest); err != nil {
		return nil, err
	}

	manifest[VersionKey] = version
	if len(metadata) > 0 {
		manifest[MetadataKey] = metadata
	}
	return json.Marshal(manifest)
}

func (p *ManifestPreparer) check(manifest map[string]any) error {
	if p.docs != nil {
		err := p.docs.Validate(p.document, manifest)
		var docErr *validation.DocumentError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &docErr):
			return &entities.ManifestError{Reason: describeViolations(docErr.Violations)}
		default:
			return fmt.Errorf("validate %s: %w", ManifestName, err)
		}
	}

	for _, key := range []string{"name", "main"} {
		if s, _ := manifest[key].(string); s == "" {
			return &entities.ManifestError{Reason: fmt.Sprintf("%s must declare %q", ManifestName, key)}
		}
	}
	return nil
}

func describeViolations(violations []validation.Violation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return ManifestName + ": " + strings.Join(parts, "; ")
}

func readManifest(archive []byte, limit int64) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, &entities.ManifestError{Reason: fmt.Sprintf("package is not a zip archive: %v", err)}
	}

	for _, f := range zr.File {
		if f.Name != ManifestName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, &entities.ManifestError{Reason: fmt.Sprintf("open %s: %v", ManifestName, err)}
		}
		defer func() { _ = rc.Close() }()

		data, err := netutil.ReadAll(rc, limit)
		if err != nil {
			return nil, &entities.ManifestError{Reason: fmt.Sprintf("read %s: %v", ManifestName, err)}
		}
		return data, nil
	}
	return nil, &entities.ManifestError{Reason: ManifestName + " is missing from the package"}
}
