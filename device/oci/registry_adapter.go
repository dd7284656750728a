// Package oci stores device packages as OCI artifacts.
package oci

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"

	"github.com/reglet-dev/thingpedia-registry/device/dto"
	"github.com/reglet-dev/thingpedia-registry/device/ports"
	"github.com/reglet-dev/thingpedia-registry/netutil"
)

// Media and artifact types of a stored package.
const (
	ArtifactType     = "application/vnd.thingpedia.device.package.v1"
	PackageMediaType = "application/vnd.thingpedia.device.package.v1+zip"
)

// Manifest annotations.
const (
	AnnotationKind    = "dev.thingpedia.device.kind"
	AnnotationVersion = "dev.thingpedia.device.version"
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]{0,127}$`)

// ErrInvalidKind is returned for kinds that cannot be expressed as a tag.
var ErrInvalidKind = errors.New("kind cannot be used as an OCI tag")

// RegistryAdapter implements ports.PackageStore and ports.PackageSource on
// one OCI repository. Each package version is a single-layer artifact
// tagged <kind>_v<version>.
type RegistryAdapter struct {
	repository string
	plainHTTP  bool
	auth       ports.AuthProvider
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ ports.PackageStore  = (*RegistryAdapter)(nil)
	_ ports.PackageSource = (*RegistryAdapter)(nil)
)

// Option configures a RegistryAdapter.
type Option func(*RegistryAdapter)

// WithPlainHTTP talks to the registry without TLS.
func WithPlainHTTP(plain bool) Option {
	return func(a *RegistryAdapter) { a.plainHTTP = plain }
}

// WithAuthProvider sets the credential source.
func WithAuthProvider(p ports.AuthProvider) Option {
	return func(a *RegistryAdapter) { a.auth = p }
}

// WithHTTPClient replaces the registry HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *RegistryAdapter) { a.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *RegistryAdapter) { a.logger = l }
}

// NewRegistryAdapter creates an adapter for repository, for example
// "ghcr.io/acme/thingpedia-packages".
func NewRegistryAdapter(repository string, opts ...Option) (*RegistryAdapter, error) {
	repository = strings.TrimPrefix(repository, "oci://")
	if repository == "" {
		return nil, fmt.Errorf("oci repository is required")
	}
	a := &RegistryAdapter{repository: repository, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if a.httpClient == nil {
		a.httpClient = netutil.NewHTTPClient(netutil.WithClientLogger(a.logger))
	}
	if _, err := a.repo(context.Background()); err != nil {
		return nil, err
	}
	return a, nil
}

// Tag returns the tag under which version of kind is stored.
func Tag(kind string, version int) (string, error) {
	tag := kind + "_v" + strconv.Itoa(version)
	if kind == "" || version < 0 || !tagPattern.MatchString(tag) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return tag, nil
}

func (a *RegistryAdapter) repo(ctx context.Context) (*remote.Repository, error) {
	repo, err := remote.NewRepository(a.repository)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	repo.PlainHTTP = a.plainHTTP

	client := &auth.Client{
		Client: a.httpClient,
		Cache:  auth.NewCache(),
	}
	if a.auth != nil {
		host := repo.Reference.Registry
		username, password, err := a.auth.GetCredentials(ctx, host)
		if err == nil && username != "" {
			client.Credential = auth.StaticCredential(host, auth.Credential{
				Username: username,
				Password: password,
			})
		}
	}
	repo.Client = client
	return repo, nil
}

// Store pushes the archive as an artifact and tags it.
func (a *RegistryAdapter) Store(ctx context.Context, data []byte, kind string, version int) error {
	tag, err := Tag(kind, version)
	if err != nil {
		return err
	}
	repo, err := a.repo(ctx)
	if err != nil {
		return err
	}

	staging := memory.New()
	layer, err := oras.PushBytes(ctx, staging, PackageMediaType, data)
	if err != nil {
		return fmt.Errorf("stage package layer: %w", err)
	}
	layer.Annotations = map[string]string{ocispec.AnnotationTitle: kind + ".zip"}

	manifest, err := oras.PackManifest(ctx, staging, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers: []ocispec.Descriptor{layer},
		ManifestAnnotations: map[string]string{
			AnnotationKind:    kind,
			AnnotationVersion: strconv.Itoa(version),
		},
	})
	if err != nil {
		return fmt.Errorf("pack manifest: %w", err)
	}
	if err := staging.Tag(ctx, manifest, tag); err != nil {
		return fmt.Errorf("tag manifest: %w", err)
	}

	if _, err := oras.Copy(ctx, staging, tag, repo, tag, oras.DefaultCopyOptions); err != nil {
		return fmt.Errorf("push %s:%s: %w", netutil.StripCredentials(a.repository), tag, err)
	}
	a.logger.Debug("package pushed", "kind", kind, "version", version, "digest", manifest.Digest.String())
	return nil
}

// Fetch pulls the artifact of kind at version.
func (a *RegistryAdapter) Fetch(ctx context.Context, kind string, version int) (*dto.PackageArtifactDTO, error) {
	tag, err := Tag(kind, version)
	if err != nil {
		return nil, err
	}
	repo, err := a.repo(ctx)
	if err != nil {
		return nil, err
	}

	staging := memory.New()
	manifestDesc, err := oras.Copy(ctx, repo, tag, staging, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, fmt.Errorf("pull %s:%s: %w", netutil.StripCredentials(a.repository), tag, err)
	}

	manifestBytes, err := content.FetchAll(ctx, staging, manifestDesc)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}

	layer, err := findPackageLayer(manifest)
	if err != nil {
		return nil, err
	}
	data, err := content.FetchAll(ctx, staging, layer)
	if err != nil {
		return nil, fmt.Errorf("fetch package layer: %w", err)
	}
	return dto.NewPackageArtifactDTO(kind, version, data), nil
}

// Versions lists the tagged versions of kind in ascending order.
func (a *RegistryAdapter) Versions(ctx context.Context, kind string) ([]int, error) {
	if _, err := Tag(kind, 0); err != nil {
		return nil, err
	}
	repo, err := a.repo(ctx)
	if err != nil {
		return nil, err
	}

	prefix := kind + "_v"
	var versions []int
	err = repo.Tags(ctx, "", func(tags []string) error {
		for _, tag := range tags {
			rest, ok := strings.CutPrefix(tag, prefix)
			if !ok {
				continue
			}
			if v, err := strconv.Atoi(rest); err == nil && v >= 0 {
				versions = append(versions, v)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errdef.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list tags: %w", err)
	}
	slices.Sort(versions)
	return versions, nil
}

func findPackageLayer(manifest ocispec.Manifest) (ocispec.Descriptor, error) {
	for _, layer := range manifest.Layers {
		if layer.MediaType == PackageMediaType {
			return layer, nil
		}
	}
	return ocispec.Descriptor{}, fmt.Errorf("no package layer found")
}
