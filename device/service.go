// Package device registers device interfaces and keeps the schemas and
// examples derived from them in step.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/thingpedia-registry/device/dto"
	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/device/packaging"
	"github.com/reglet-dev/thingpedia-registry/device/ports"
	"github.com/reglet-dev/thingpedia-registry/device/services"
	"github.com/reglet-dev/thingpedia-registry/device/values"
	"github.com/reglet-dev/thingpedia-registry/expand"
)

// DeviceService orchestrates device submissions.
// Validation, schema sync, example generation and the device write share
// one transaction; packaging runs after commit.
type DeviceService struct {
	uow       ports.UnitOfWork
	queue     ports.PackagingQueue
	validator *services.Validator
	sync      *services.Synchronizer
	examples  *services.ExampleGenerator
	expander  ports.Expander
	manifests *packaging.ManifestPreparer
	reserved  values.ReservedKinds
	logger    *slog.Logger
}

// DeviceServiceOption configures a DeviceService.
type DeviceServiceOption func(*DeviceService)

// NewDeviceService creates a device service. The unit of work and the
// packaging queue are required dependencies.
func NewDeviceService(uow ports.UnitOfWork, queue ports.PackagingQueue, opts ...DeviceServiceOption) *DeviceService {
	s := &DeviceService{
		uow:      uow,
		queue:    queue,
		reserved: values.DefaultReservedKinds(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.expander == nil {
		s.expander = expand.New()
	}
	if s.validator == nil {
		s.validator = services.NewValidator(
			services.WithReservedKinds(s.reserved),
			services.WithValidatorLogger(s.logger),
		)
	}
	if s.manifests == nil {
		s.manifests = packaging.NewManifestPreparer()
	}
	s.sync = services.NewSynchronizer(s.logger)
	s.examples = services.NewExampleGenerator(s.expander, s.logger)
	return s
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DeviceServiceOption {
	return func(s *DeviceService) { s.logger = l }
}

// WithValidator replaces the default descriptor validator.
func WithValidator(v *services.Validator) DeviceServiceOption {
	return func(s *DeviceService) { s.validator = v }
}

// WithExpander sets the template expander used for examples.
func WithExpander(e ports.Expander) DeviceServiceOption {
	return func(s *DeviceService) { s.expander = e }
}

// WithReservedKinds sets the namespaces whose devices are never packaged.
// It also applies to the default validator.
func WithReservedKinds(r values.ReservedKinds) DeviceServiceOption {
	return func(s *DeviceService) { s.reserved = r }
}

// WithManifestPreparer replaces the package.json checker.
func WithManifestPreparer(p *packaging.ManifestPreparer) DeviceServiceOption {
	return func(s *DeviceService) { s.manifests = p }
}

// CreateOrUpdate registers a new device when existingID is nil and
// updates device *existingID otherwise. It returns the primary kind.
//
// Errors before commit leave the registry untouched. A bad package.json is
// only found after commit and is returned as a *entities.PackagingError
// with Committed set.
func (s *DeviceService) CreateOrUpdate(
	ctx context.Context,
	existingID *int64,
	sub dto.DeviceSubmissionDTO,
	requester values.Requester,
) (string, error) {
	var (
		saved entities.DeviceRecord
		code  []byte
	)
	err := s.uow.Transact(ctx, func(ctx context.Context, stores ports.Stores) error {
		var previous *entities.DeviceRecord
		if existingID != nil {
			old, err := stores.Devices().Get(ctx, *existingID)
			if err != nil {
				return err
			}
			if !requester.CanEdit(old.Owner) {
				return &entities.AuthorizationError{DeviceID: old.ID, Organization: requester.Organization}
			}
			previous = &old
		}

		d, err := s.validator.Validate(ctx, sub, stores.Interfaces())
		if err != nil {
			return err
		}

		if err := s.checkKindFree(ctx, stores.Devices(), sub.PrimaryKind, previous); err != nil {
			return err
		}
		if _, err := s.sync.Sync(ctx, stores.Schemas(), sub.PrimaryKind, d); err != nil {
			return fmt.Errorf("sync schemas of %s: %w", sub.PrimaryKind, err)
		}
		if _, err := s.examples.Generate(ctx, stores.Schemas(), stores.Examples(), d); err != nil {
			return fmt.Errorf("generate examples of %s: %w", sub.PrimaryKind, err)
		}

		if code, err = json.Marshal(d); err != nil {
			return fmt.Errorf("encode descriptor: %w", err)
		}
		rec := entities.DeviceRecord{
			PrimaryKind: sub.PrimaryKind,
			GlobalName:  d.GlobalName,
			Name:        sub.Name,
			Description: sub.Description,
			FullCode:    sub.FullCode,
			Kinds:       d.Types,
			ChildKinds:  d.ChildTypes,
		}
		if previous == nil {
			saved, err = s.create(ctx, stores.Devices(), rec, requester, sub.Approve, string(code))
		} else {
			saved, err = s.update(ctx, stores.Devices(), *previous, rec, requester, sub.Approve, string(code))
		}
		return err
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("device saved",
		"kind", saved.PrimaryKind,
		"version", saved.DeveloperVersion,
		"approved", saved.IsApproved(),
		"online", saved.IsOnlineAccount())

	if saved.FullCode || s.reserved.Contains(saved.PrimaryKind) {
		return saved.PrimaryKind, nil
	}
	if err := s.schedulePackage(sub.Package, saved, code); err != nil {
		return "", err
	}
	return saved.PrimaryKind, nil
}

// checkKindFree rejects kinds registered by a device other than previous.
func (s *DeviceService) checkKindFree(ctx context.Context, devices ports.DeviceStore, kind string, previous *entities.DeviceRecord) error {
	other, err := devices.GetByPrimaryKind(ctx, kind)
	switch {
	case errors.Is(err, entities.ErrDeviceNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("look up kind %s: %w", kind, err)
	case previous != nil && other.ID == previous.ID:
		return nil
	default:
		return &entities.KindTakenError{Kind: kind}
	}
}

func (s *DeviceService) create(
	ctx context.Context,
	devices ports.DeviceStore,
	rec entities.DeviceRecord,
	requester values.Requester,
	approve bool,
	code string,
) (entities.DeviceRecord, error) {
	rec.Owner = requester.Organization
	rec.DeveloperVersion = 0
	if approve && requester.CanApprove() {
		v := 0
		rec.ApprovedVersion = &v
	}
	created, err := devices.Create(ctx, rec, code)
	if err != nil {
		return entities.DeviceRecord{}, err
	}
	return created, nil
}

func (s *DeviceService) update(
	ctx context.Context,
	devices ports.DeviceStore,
	old entities.DeviceRecord,
	rec entities.DeviceRecord,
	requester values.Requester,
	approve bool,
	code string,
) (entities.DeviceRecord, error) {
	rec.ID = old.ID
	rec.Owner = old.Owner
	rec.DeveloperVersion = old.DeveloperVersion + 1
	rec.ApprovedVersion = old.ApprovedVersion
	if approve && requester.CanApprove() {
		v := rec.DeveloperVersion
		rec.ApprovedVersion = &v
	}
	if err := devices.Update(ctx, rec, old.DeveloperVersion, code); err != nil {
		return entities.DeviceRecord{}, err
	}
	return rec, nil
}

// schedulePackage checks the manifest of archive and hands the package to
// the packaging queue. Queue failures are logged, not returned.
func (s *DeviceService) schedulePackage(archive []byte, rec entities.DeviceRecord, descriptor []byte) error {
	manifest, err := s.manifests.Prepare(archive, rec.DeveloperVersion, descriptor)
	if err != nil {
		return &entities.PackagingError{
			Kind:      rec.PrimaryKind,
			Version:   rec.DeveloperVersion,
			Committed: true,
			Err:       err,
		}
	}

	job := dto.PackagingJobDTO{
		Kind:     rec.PrimaryKind,
		Version:  rec.DeveloperVersion,
		Archive:  archive,
		Manifest: manifest,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Error("failed to schedule package upload",
			"kind", rec.PrimaryKind,
			"version", rec.DeveloperVersion,
			"error", err)
	}
	return nil
}

// Get returns a device by ID.
func (s *DeviceService) Get(ctx context.Context, id int64) (entities.DeviceRecord, error) {
	var rec entities.DeviceRecord
	err := s.uow.Transact(ctx, func(ctx context.Context, stores ports.Stores) error {
		var err error
		rec, err = stores.Devices().Get(ctx, id)
		return err
	})
	return rec, err
}

// List returns every device.
func (s *DeviceService) List(ctx context.Context) ([]entities.DeviceRecord, error) {
	var out []entities.DeviceRecord
	err := s.uow.Transact(ctx, func(ctx context.Context, stores ports.Stores) error {
		var err error
		out, err = stores.Devices().List(ctx)
		return err
	})
	return out, err
}

// Source returns the device with its current descriptor for editing. Only
// the owner or an administrator may read it.
func (s *DeviceService) Source(ctx context.Context, id int64, requester values.Requester) (dto.DeviceSourceDTO, error) {
	var out dto.DeviceSourceDTO
	err := s.uow.Transact(ctx, func(ctx context.Context, stores ports.Stores) error {
		rec, err := stores.Devices().Get(ctx, id)
		if err != nil {
			return err
		}
		if !requester.CanEdit(rec.Owner) {
			return &entities.AuthorizationError{DeviceID: rec.ID, Organization: requester.Organization}
		}
		code, err := stores.Devices().GetCanonicalSourceByID(ctx, id)
		if err != nil {
			return err
		}
		out = dto.DeviceSourceDTO{
			ID:          rec.ID,
			Name:        rec.Name,
			Description: rec.Description,
			PrimaryKind: rec.PrimaryKind,
			FullCode:    rec.FullCode,
			Code:        indentCode(code),
		}
		return nil
	})
	return out, err
}

// indentCode pretty-prints code when it is JSON and returns it unchanged
// otherwise.
func indentCode(code string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(code), "", "  "); err != nil {
		return code
	}
	return buf.String()
}
