package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reglet-dev/thingpedia-registry/device/dto"
	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/device/ports"
	"github.com/reglet-dev/thingpedia-registry/device/values"
	"github.com/reglet-dev/thingpedia-registry/netutil"
	"github.com/reglet-dev/thingpedia-registry/types"
	"github.com/reglet-dev/thingpedia-registry/validation"
)

// DefaultMaxPackageBytes bounds uploaded package archives.
const DefaultMaxPackageBytes = 32 << 20

var validAuthTypes = map[string]bool{
	entities.AuthNone:    true,
	entities.AuthOAuth2:  true,
	entities.AuthBasic:   true,
	entities.AuthBuiltin: true,
}

// Validator checks a submission and produces its normalized descriptor.
// Checks run in a fixed order and the first failure is returned as a
// *entities.ValidationError.
type Validator struct {
	documents       validation.DocumentValidator
	reserved        values.ReservedKinds
	maxPackageBytes int64
	logger          *slog.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithDocumentValidator sets the schema validator used for the descriptor
// shape check.
func WithDocumentValidator(dv validation.DocumentValidator) ValidatorOption {
	return func(v *Validator) { v.documents = dv }
}

// WithReservedKinds sets the namespaces whose devices need no package.
func WithReservedKinds(r values.ReservedKinds) ValidatorOption {
	return func(v *Validator) { v.reserved = r }
}

// WithMaxPackageBytes bounds the accepted package size.
func WithMaxPackageBytes(n int64) ValidatorOption {
	return func(v *Validator) { v.maxPackageBytes = n }
}

// WithValidatorLogger sets the logger.
func WithValidatorLogger(l *slog.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = l }
}

// NewValidator creates a validator. Without WithDocumentValidator the
// descriptor shape check is skipped.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		reserved:        values.DefaultReservedKinds(),
		maxPackageBytes: DefaultMaxPackageBytes,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every check against sub. Interface types named by the
// descriptor are resolved through lookup, which must observe the same
// transaction the rest of the submission is written in.
func (v *Validator) Validate(ctx context.Context, sub dto.DeviceSubmissionDTO, lookup ports.InterfaceLookup) (*entities.Descriptor, error) {
	if err := v.checkRequiredFields(sub); err != nil {
		return nil, err
	}

	d, err := v.parse(sub.Code)
	if err != nil {
		return nil, err
	}

	d.ApplyDefaults()

	if !validAuthTypes[d.Auth.Type] {
		return nil, &entities.ValidationError{
			Code:    entities.CodeInvalidAuthType,
			Field:   "auth.type",
			Message: fmt.Sprintf("auth type %q is not one of none, oauth2, basic, builtin", d.Auth.Type),
		}
	}

	if sub.FullCode && d.Auth.Type == entities.AuthBasic && (!d.HasParam("username") || !d.HasParam("password")) {
		return nil, &entities.ValidationError{
			Code:    entities.CodeMissingCredentialParams,
			Field:   "params",
			Message: "username and password must be provided for basic authentication",
		}
	}

	if d.HasType(entities.TagOnlineAccount) && d.HasType(entities.TagDataSource) {
		return nil, &entities.ValidationError{
			Code:    entities.CodeConflictingTypeTags,
			Field:   "types",
			Message: "interface cannot be both online-account and data-source",
		}
	}

	if err := v.checkChannels(d); err != nil {
		return nil, err
	}

	if sub.FullCode {
		if err := v.checkFullCode(d); err != nil {
			return nil, err
		}
	} else if err := v.checkPackage(sub); err != nil {
		return nil, err
	}

	if err := v.checkInterfaces(ctx, d, lookup); err != nil {
		return nil, err
	}

	return d, nil
}

func (v *Validator) checkRequiredFields(sub dto.DeviceSubmissionDTO) error {
	fields := []struct {
		name  string
		value string
	}{
		{"name", sub.Name},
		{"description", sub.Description},
		{"code", sub.Code},
		{"primary_kind", sub.PrimaryKind},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &entities.ValidationError{
				Code:    entities.CodeMissingField,
				Field:   f.name,
				Message: "field is required",
			}
		}
	}
	return nil
}

func (v *Validator) parse(code string) (*entities.Descriptor, error) {
	var doc any
	if err := json.Unmarshal([]byte(code), &doc); err != nil {
		return nil, &entities.ValidationError{
			Code:    entities.CodeMalformedDescriptor,
			Field:   "code",
			Message: "descriptor is not valid JSON: " + err.Error(),
		}
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, &entities.ValidationError{
			Code:    entities.CodeMalformedDescriptor,
			Field:   "code",
			Message: "descriptor must be a JSON object",
		}
	}

	if v.documents != nil {
		if err := v.documents.Validate(DocumentDescriptor, doc); err != nil {
			var docErr *validation.DocumentError
			if !errors.As(err, &docErr) {
				return nil, fmt.Errorf("validate descriptor shape: %w", err)
			}
			field := "code"
			if len(docErr.Violations) > 0 && docErr.Violations[0].Location != "" {
				field = docErr.Violations[0].Location
			}
			return nil, &entities.ValidationError{
				Code:    entities.CodeMalformedDescriptor,
				Field:   field,
				Message: docErr.Error(),
			}
		}
	}

	var d entities.Descriptor
	if err := json.Unmarshal([]byte(code), &d); err != nil {
		return nil, &entities.ValidationError{
			Code:    entities.CodeMalformedDescriptor,
			Field:   "code",
			Message: err.Error(),
		}
	}
	return &d, nil
}

func (v *Validator) checkChannels(d *entities.Descriptor) error {
	for _, class := range values.ChannelClasses {
		channels := d.Channels(class)
		for _, name := range entities.SortedNames(channels) {
			ch := channels[name]
			if ch == nil || ch.Schema == nil {
				return &entities.ValidationError{
					Code:    entities.CodeMissingSchema,
					Field:   class.DescriptorKey(),
					Channel: name,
					Message: fmt.Sprintf("missing %s schema", class),
				}
			}
			arity := len(ch.Schema)
			if ch.Args != nil && len(ch.Args) != arity {
				return arityError(class, name, "args", len(ch.Args), arity)
			}
			if ch.Params != nil && len(ch.Params) != arity {
				return arityError(class, name, "params", len(ch.Params), arity)
			}
			if ch.Questions != nil && len(ch.Questions) != arity {
				return arityError(class, name, "questions", len(ch.Questions), arity)
			}
			for i, s := range ch.Schema {
				if _, err := types.Parse(s); err != nil {
					return &entities.ValidationError{
						Code:    entities.CodeInvalidTypeSyntax,
						Field:   fmt.Sprintf("%s.%s.schema[%d]", class.DescriptorKey(), name, i),
						Channel: name,
						Message: err.Error(),
					}
				}
			}
		}
	}
	return nil
}

func arityError(class values.ChannelClass, name, list string, got, want int) error {
	return &entities.ValidationError{
		Code:    entities.CodeArityMismatch,
		Field:   fmt.Sprintf("%s.%s.%s", class.DescriptorKey(), name, list),
		Channel: name,
		Message: fmt.Sprintf("%d %s declared for a schema of %d types", got, list, want),
	}
}

func (v *Validator) checkFullCode(d *entities.Descriptor) error {
	if d.Name == "" {
		return &entities.ValidationError{Code: entities.CodeMissingField, Field: "code.name", Message: "descriptor name is required"}
	}
	if d.Description == "" {
		return &entities.ValidationError{Code: entities.CodeMissingField, Field: "code.description", Message: "descriptor description is required"}
	}
	for _, class := range values.ChannelClasses {
		channels := d.Channels(class)
		for _, name := range entities.SortedNames(channels) {
			if channels[name].URL == "" {
				return &entities.ValidationError{
					Code:    entities.CodeMissingChannelURL,
					Field:   class.DescriptorKey(),
					Channel: name,
					Message: fmt.Sprintf("missing %s url", class),
				}
			}
		}
	}
	return nil
}

func (v *Validator) checkPackage(sub dto.DeviceSubmissionDTO) error {
	if v.reserved.Contains(sub.PrimaryKind) {
		return nil
	}
	if len(sub.Package) == 0 {
		return &entities.ValidationError{
			Code:    entities.CodeMissingPackage,
			Field:   "package",
			Message: "a zip package is required unless the descriptor is full code",
		}
	}
	if v.maxPackageBytes > 0 && int64(len(sub.Package)) > v.maxPackageBytes {
		return &entities.ValidationError{
			Code:  entities.CodeMissingPackage,
			Field: "package",
			Message: fmt.Sprintf("package is %s, limit is %s",
				netutil.FormatSize(int64(len(sub.Package))), netutil.FormatSize(v.maxPackageBytes)),
		}
	}
	return nil
}

func (v *Validator) checkInterfaces(ctx context.Context, d *entities.Descriptor, lookup ports.InterfaceLookup) error {
	if len(d.Types) == 0 {
		return nil
	}

	required, err := lookup.GetRequiredSchemasByKinds(ctx, d.Types)
	if err != nil {
		return fmt.Errorf("lookup interface types: %w", err)
	}

	for _, typ := range d.Types {
		sigs, ok := required[typ]
		if !ok {
			// A device may list its own alias before the alias schema exists.
			if typ == d.GlobalName {
				v.logger.Debug("interface type is the device alias, skipping", "type", typ)
				continue
			}
			return &entities.ValidationError{
				Code:          entities.CodeUnknownInterfaceType,
				Field:         "types",
				InterfaceType: typ,
				Message:       fmt.Sprintf("invalid device type %s", typ),
			}
		}

		for _, class := range values.ChannelClasses {
			declared := d.Channels(class)
			reqs := sigs.ByClass(class)
			for _, name := range sortedKeys(reqs) {
				ch, ok := declared[name]
				if !ok {
					return &entities.ValidationError{
						Code:          entities.CodeMissingRequiredChannel,
						Field:         class.DescriptorKey(),
						Channel:       name,
						InterfaceType: typ,
						Message:       fmt.Sprintf("type %s requires %s %s", typ, class, name),
					}
				}
				if !types.IsCompatible(ch.Schema, reqs[name]) {
					return &entities.ValidationError{
						Code:          entities.CodeIncompatibleSchema,
						Field:         class.DescriptorKey(),
						Channel:       name,
						InterfaceType: typ,
						Message:       fmt.Sprintf("schema for %s is not compatible with type %s", name, typ),
					}
				}
			}
		}
	}
	return nil
}
