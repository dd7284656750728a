package dto

import (
	"bytes"
	"io"

	"github.com/reglet-dev/thingpedia-registry/device/values"
)

// PackagingJobDTO carries a prepared package from the request to the
// background packager.
type PackagingJobDTO struct {
	ID      string
	Kind    string
	Version int
	// Archive is the zip as uploaded.
	Archive []byte
	// Manifest replaces package.json inside Archive.
	Manifest []byte
}

// PackageArtifactDTO is a stored package archive.
type PackageArtifactDTO struct {
	Kind    string
	Version int
	Digest  values.Digest
	Data    io.ReadCloser
}

// NewPackageArtifactDTO wraps archive bytes.
func NewPackageArtifactDTO(kind string, version int, data []byte) *PackageArtifactDTO {
	return &PackageArtifactDTO{
		Kind:    kind,
		Version: version,
		Digest:  values.DigestOf(data),
		Data:    io.NopCloser(bytes.NewReader(data)),
	}
}

func (d *PackageArtifactDTO) Close() error {
	if d.Data != nil {
		return d.Data.Close()
	}
	return nil
}
