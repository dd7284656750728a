// Package repository implements package store adapters.
package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/reglet-dev/thingpedia-registry/device/dto"
	"github.com/reglet-dev/thingpedia-registry/device/ports"
	"github.com/reglet-dev/thingpedia-registry/device/values"
)

const (
	archiveExt = ".zip"
	digestExt  = ".digest"
)

// FSPackageStore keeps package archives under root as
// <root>/<kind>/<version>.zip with a digest file beside each archive.
type FSPackageStore struct {
	root string
}

var (
	_ ports.PackageStore  = (*FSPackageStore)(nil)
	_ ports.PackageSource = (*FSPackageStore)(nil)
)

// NewFSPackageStore creates the store, defaulting root to
// ~/.thingpedia/packages.
func NewFSPackageStore(root string) (*FSPackageStore, error) {
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".thingpedia", "packages")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create package directory: %w", err)
	}
	return &FSPackageStore{root: root}, nil
}

// Store writes the archive and its digest. The archive is written to a
// temporary file first so readers never see a partial package.
func (r *FSPackageStore) Store(ctx context.Context, data []byte, kind string, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := r.kindPath(kind)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create package directory: %w", err)
	}

	base := filepath.Join(dir, strconv.Itoa(version))
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write package: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write package: %w", err)
	}
	if err := os.Rename(tmpName, base+archiveExt); err != nil {
		return fmt.Errorf("install package: %w", err)
	}

	digest := values.DigestOf(data)
	if err := os.WriteFile(base+digestExt, []byte(digest.String()), 0o600); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	return nil
}

// Fetch reads a stored archive and checks it against its digest.
func (r *FSPackageStore) Fetch(ctx context.Context, kind string, version int) (*dto.PackageArtifactDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := r.kindPath(kind)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(dir, strconv.Itoa(version))

	data, err := os.ReadFile(filepath.Clean(base + archiveExt))
	if os.IsNotExist(err) {
		return nil, &PackageNotFoundError{Kind: kind, Version: version}
	}
	if err != nil {
		return nil, fmt.Errorf("read package: %w", err)
	}

	raw, err := os.ReadFile(filepath.Clean(base + digestExt))
	if err != nil {
		return nil, fmt.Errorf("read digest: %w", err)
	}
	want, err := values.ParseDigest(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse digest: %w", err)
	}
	if err := want.Verify(data); err != nil {
		return nil, fmt.Errorf("package %s version %d: %w", kind, version, err)
	}
	return dto.NewPackageArtifactDTO(kind, version, data), nil
}

// Versions lists the stored versions of kind in ascending order.
func (r *FSPackageStore) Versions(ctx context.Context, kind string) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := r.kindPath(kind)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list packages of %s: %w", kind, err)
	}

	var versions []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), archiveExt)
		if !ok || e.IsDir() {
			continue
		}
		if v, err := strconv.Atoi(name); err == nil && v >= 0 {
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// kindPath resolves the directory of kind, rejecting kinds that would
// escape root.
func (r *FSPackageStore) kindPath(kind string) (string, error) {
	if kind == "" || filepath.IsAbs(kind) || strings.ContainsAny(kind, `/\`) {
		return "", fmt.Errorf("security violation: invalid package kind %q", kind)
	}

	cleanRoot := filepath.Clean(r.root)
	cleanPath := filepath.Clean(filepath.Join(cleanRoot, kind))
	if !strings.HasPrefix(cleanPath, cleanRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("security violation: path traversal detected for package kind %q", kind)
	}
	return cleanPath, nil
}

// PackageNotFoundError is returned by Fetch for a missing archive.
type PackageNotFoundError struct {
	Kind    string
	Version int
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package %s version %d not found", e.Kind, e.Version)
}
