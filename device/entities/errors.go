package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common error patterns.
// These allow both errors.Is() checks and errors.As() for detailed information.
var (
	// ErrValidation matches every descriptor validation failure.
	ErrValidation = errors.New("descriptor validation failed")

	ErrMissingField            = errors.New("missing required field")
	ErrMalformedDescriptor     = errors.New("malformed descriptor")
	ErrInvalidAuthType         = errors.New("invalid auth type")
	ErrMissingCredentialParams = errors.New("missing credential params")
	ErrConflictingTypeTags     = errors.New("conflicting type tags")
	ErrMissingSchema           = errors.New("missing channel schema")
	ErrArityMismatch           = errors.New("channel arity mismatch")
	ErrInvalidTypeSyntax       = errors.New("invalid type syntax")
	ErrMissingChannelURL       = errors.New("missing channel url")
	ErrMissingPackage          = errors.New("missing device package")
	ErrUnknownInterfaceType    = errors.New("unknown interface type")
	ErrMissingRequiredChannel  = errors.New("missing required channel")
	ErrIncompatibleSchema      = errors.New("incompatible channel schema")

	// ErrNotAuthorized is returned when the requester may not modify a device.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidPackageManifest is returned when the uploaded package has no
	// usable package.json.
	ErrInvalidPackageManifest = errors.New("invalid package manifest")

	// ErrSchemaNotFound is returned when no schema record exists for a kind.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrDeviceNotFound is returned when no device record exists.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrKindTaken is returned when creating a device whose primary kind is
	// already registered.
	ErrKindTaken = errors.New("primary kind already registered")

	// ErrConcurrentModification is returned when a versioned record changed
	// between read and write.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ValidationCode names the validation failure class.
type ValidationCode string

const (
	CodeMissingField            ValidationCode = "MissingField"
	CodeMalformedDescriptor     ValidationCode = "MalformedDescriptor"
	CodeInvalidAuthType         ValidationCode = "InvalidAuthType"
	CodeMissingCredentialParams ValidationCode = "MissingCredentialParams"
	CodeConflictingTypeTags     ValidationCode = "ConflictingTypeTags"
	CodeMissingSchema           ValidationCode = "MissingSchema"
	CodeArityMismatch           ValidationCode = "ArityMismatch"
	CodeInvalidTypeSyntax       ValidationCode = "InvalidTypeSyntax"
	CodeMissingChannelURL       ValidationCode = "MissingChannelUrl"
	CodeMissingPackage          ValidationCode = "MissingPackage"
	CodeUnknownInterfaceType    ValidationCode = "UnknownInterfaceType"
	CodeMissingRequiredChannel  ValidationCode = "MissingRequiredChannel"
	CodeIncompatibleSchema      ValidationCode = "IncompatibleSchema"
)

var codeSentinels = map[ValidationCode]error{
	CodeMissingField:            ErrMissingField,
	CodeMalformedDescriptor:     ErrMalformedDescriptor,
	CodeInvalidAuthType:         ErrInvalidAuthType,
	CodeMissingCredentialParams: ErrMissingCredentialParams,
	CodeConflictingTypeTags:     ErrConflictingTypeTags,
	CodeMissingSchema:           ErrMissingSchema,
	CodeArityMismatch:           ErrArityMismatch,
	CodeInvalidTypeSyntax:       ErrInvalidTypeSyntax,
	CodeMissingChannelURL:       ErrMissingChannelURL,
	CodeMissingPackage:          ErrMissingPackage,
	CodeUnknownInterfaceType:    ErrUnknownInterfaceType,
	CodeMissingRequiredChannel:  ErrMissingRequiredChannel,
	CodeIncompatibleSchema:      ErrIncompatibleSchema,
}

// ValidationError describes why a submission was rejected. Field names the
// offending submission field or descriptor key, Channel the offending
// channel and InterfaceType the interface being checked, when relevant.
type ValidationError struct {
	Code          ValidationCode
	Field         string
	Channel       string
	InterfaceType string
	Message       string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Field != "" {
		fmt.Fprintf(&b, " [%s]", e.Field)
	}
	if e.Channel != "" {
		fmt.Fprintf(&b, " [channel %s]", e.Channel)
	}
	if e.InterfaceType != "" {
		fmt.Fprintf(&b, " [type %s]", e.InterfaceType)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is implements error matching for errors.Is() checks.
// This allows: errors.Is(err, entities.ErrArityMismatch)
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || codeSentinels[e.Code] == target
}

// AuthorizationError indicates the requester may not edit a device.
type AuthorizationError struct {
	DeviceID     int64
	Organization int64
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized: organization %d does not own device %d", e.Organization, e.DeviceID)
}

// Is implements error matching for errors.Is() checks.
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrNotAuthorized
}

// SchemaNotFoundError indicates no schema record exists for Kind.
type SchemaNotFoundError struct {
	Kind string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("schema not found: %s", e.Kind)
}

// Is implements error matching for errors.Is() checks.
func (e *SchemaNotFoundError) Is(target error) bool {
	return target == ErrSchemaNotFound
}

// DeviceNotFoundError indicates no device record matched the lookup.
type DeviceNotFoundError struct {
	ID   int64
	Kind string
}

func (e *DeviceNotFoundError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("device not found: %s", e.Kind)
	}
	return fmt.Sprintf("device not found: %d", e.ID)
}

// Is implements error matching for errors.Is() checks.
func (e *DeviceNotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}

// KindTakenError indicates the primary kind belongs to another device.
type KindTakenError struct {
	Kind string
}

func (e *KindTakenError) Error() string {
	return fmt.Sprintf("primary kind already registered: %s", e.Kind)
}

// Is implements error matching for errors.Is() checks.
func (e *KindTakenError) Is(target error) bool {
	return target == ErrKindTaken
}

// ConcurrentModificationError reports a failed compare-and-set on a
// versioned record.
type ConcurrentModificationError struct {
	Entity          string
	Key             string
	ExpectedVersion int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %s: version %d is stale", e.Entity, e.Key, e.ExpectedVersion)
}

// Is implements error matching for errors.Is() checks.
func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}

// ManifestError describes an unusable package.json.
type ManifestError struct {
	Reason string
}

func (e *ManifestError) Error() string {
	return "invalid package manifest: " + e.Reason
}

// Is implements error matching for errors.Is() checks.
func (e *ManifestError) Is(target error) bool {
	return target == ErrInvalidPackageManifest
}

// PackagingError wraps a failure of the packaging step. Committed reports
// whether the registry changes of the same submission were already
// committed when the failure happened.
type PackagingError struct {
	Kind      string
	Version   int
	Committed bool
	Err       error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging %s version %d: %v", e.Kind, e.Version, e.Err)
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}
