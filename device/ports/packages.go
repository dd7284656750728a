package ports

import (
	"context"

	"github.com/reglet-dev/thingpedia-registry/device/dto"
)

// PackageStore uploads device package archives.
type PackageStore interface {
	// Store saves the archive of kind at the given developer version.
	Store(ctx context.Context, data []byte, kind string, version int) error
}

// PackageSource reads stored archives back.
type PackageSource interface {
	// Fetch returns the archive of kind at version.
	Fetch(ctx context.Context, kind string, version int) (*dto.PackageArtifactDTO, error)

	// Versions lists the stored versions of kind.
	Versions(ctx context.Context, kind string) ([]int, error)
}

// PackagingQueue accepts repackaging jobs that run after the submitting
// request has returned.
type PackagingQueue interface {
	Enqueue(job dto.PackagingJobDTO) error
}

// AuthProvider retrieves authentication credentials for registries.
type AuthProvider interface {
	// GetCredentials returns (username, password, error).
	GetCredentials(ctx context.Context, registry string) (string, string, error)
}
