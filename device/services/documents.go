package services

import (
	"fmt"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/registry"
	"github.com/reglet-dev/thingpedia-registry/validation"
)

// Document names registered by NewDocumentValidator.
const (
	DocumentDescriptor      = "descriptor"
	DocumentPackageManifest = "package-manifest"
)

// PackageManifestSchema describes the package.json every uploaded package
// must carry.
const PackageManifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "main"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "main": {"type": "string", "minLength": 1}
  }
}`

// NewDocumentValidator registers the descriptor and package manifest
// schemas and returns a validator for them. The descriptor schema is
// generated from entities.Descriptor and only constrains member types.
func NewDocumentValidator() (*validation.SchemaValidator, error) {
	reg := registry.NewRegistry()
	if err := reg.Register(DocumentDescriptor, entities.Descriptor{}); err != nil {
		return nil, fmt.Errorf("register descriptor schema: %w", err)
	}
	if err := reg.Register(DocumentPackageManifest, PackageManifestSchema); err != nil {
		return nil, fmt.Errorf("register manifest schema: %w", err)
	}
	return validation.NewSchemaValidator(reg), nil
}
