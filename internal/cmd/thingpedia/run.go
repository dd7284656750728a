package thingpedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/reglet-dev/thingpedia-registry/config"
	"github.com/reglet-dev/thingpedia-registry/device"
	"github.com/reglet-dev/thingpedia-registry/device/catalog"
	"github.com/reglet-dev/thingpedia-registry/device/dto"
	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/device/oci"
	"github.com/reglet-dev/thingpedia-registry/device/packaging"
	"github.com/reglet-dev/thingpedia-registry/device/ports"
	"github.com/reglet-dev/thingpedia-registry/device/repository"
	"github.com/reglet-dev/thingpedia-registry/device/resolvers"
	"github.com/reglet-dev/thingpedia-registry/device/services"
	"github.com/reglet-dev/thingpedia-registry/device/sqlite"
	"github.com/reglet-dev/thingpedia-registry/device/values"
	"github.com/reglet-dev/thingpedia-registry/netutil"
	"github.com/reglet-dev/thingpedia-registry/parser"
)

type packageBackend interface {
	ports.PackageStore
	ports.PackageSource
}

// app is the wired registry behind one command.
type app struct {
	store    *sqlite.Store
	packages packageBackend
	packager *packaging.Packager
	service  *device.DeviceService
	logger   *slog.Logger
}

func (a *app) Close() error {
	var errs []error
	if a.packager != nil {
		errs = append(errs, a.packager.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// Run executes the thingpedia command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) (err error) {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	logger, err := newLogger(cfg.Env, errOut)
	if err != nil {
		return err
	}

	if cfg.Command == CommandTemplate {
		return runTemplate(cfg, out)
	}

	a, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	switch cfg.Command {
	case CommandSubmit:
		return a.submit(ctx, cfg, out)
	case CommandGet:
		return a.get(ctx, cfg, out)
	case CommandSource:
		return a.source(ctx, cfg, out)
	case CommandList:
		return a.list(ctx, cfg, out)
	case CommandSeed:
		return a.seed(ctx, cfg, out)
	case CommandPackage:
		return a.pkg(ctx, cfg, out)
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

func openApp(cfg Config, logger *slog.Logger) (*app, error) {
	docs, err := services.NewDocumentValidator()
	if err != nil {
		return nil, err
	}
	reserved, err := values.NewReservedKinds(cfg.Env.ReservedKinds...)
	if err != nil {
		return nil, err
	}
	packages, err := openPackageBackend(cfg.Env, logger)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.Env.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}

	packager := packaging.NewPackager(packages,
		packaging.WithWorkers(cfg.Env.PackagingWorkers),
		packaging.WithPackagerLogger(logger),
	)
	validator := services.NewValidator(
		services.WithDocumentValidator(docs),
		services.WithReservedKinds(reserved),
		services.WithMaxPackageBytes(cfg.Env.MaxPackageBytes),
		services.WithValidatorLogger(logger),
	)
	service := device.NewDeviceService(store, packager,
		device.WithLogger(logger),
		device.WithValidator(validator),
		device.WithReservedKinds(reserved),
		device.WithManifestPreparer(packaging.NewManifestPreparer(
			packaging.WithManifestSchema(docs, services.DocumentPackageManifest),
		)),
	)

	return &app{
		store:    store,
		packages: packages,
		packager: packager,
		service:  service,
		logger:   logger,
	}, nil
}

func openPackageBackend(env config.Config, logger *slog.Logger) (packageBackend, error) {
	switch env.PackageStore {
	case config.PackageStoreOCI:
		opts := []oci.Option{
			oci.WithPlainHTTP(env.OCIPlainHTTP),
			oci.WithLogger(logger),
		}
		if env.OCIUsername != "" {
			opts = append(opts, oci.WithAuthProvider(
				oci.NewStaticAuthProvider(env.OCIRepository, env.OCIUsername, env.OCIPassword)))
		}
		return oci.NewRegistryAdapter(env.OCIRepository, opts...)
	default:
		return repository.NewFSPackageStore(env.PackageDir)
	}
}

func runTemplate(cfg Config, out io.Writer) error {
	class := ""
	if len(cfg.Args) > 0 {
		class = cfg.Args[0]
	}
	code, err := Template(class, "org"+strconv.FormatInt(cfg.Org, 10))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, code)
	return err
}

func (a *app) submit(ctx context.Context, cfg Config, out io.Writer) error {
	sub, err := readSubmission(cfg)
	if err != nil {
		return err
	}

	requester := cfg.Requester()
	if cfg.Interactive && !sub.Approve && requester.CanApprove() {
		prompter := cfg.Prompter
		if prompter == nil {
			prompter = NewTerminalPrompter()
		}
		if sub.Approve, err = prompter.ConfirmApproval(sub.PrimaryKind); err != nil {
			return fmt.Errorf("approval prompt: %w", err)
		}
	}

	var existing *int64
	if cfg.ID > 0 {
		existing = &cfg.ID
	}
	kind, err := a.service.CreateOrUpdate(ctx, existing, sub, requester)
	if err != nil {
		return explain(err)
	}
	_, err = fmt.Fprintf(out, "saved %s\n", kind)
	return err
}

func readSubmission(cfg Config) (dto.DeviceSubmissionDTO, error) {
	p, err := parser.ForPath(cfg.DescriptorPath)
	if err != nil {
		return dto.DeviceSubmissionDTO{}, err
	}
	raw, err := os.ReadFile(filepath.Clean(cfg.DescriptorPath))
	if err != nil {
		return dto.DeviceSubmissionDTO{}, fmt.Errorf("read descriptor: %w", err)
	}
	code, err := p.Parse(raw)
	if err != nil {
		return dto.DeviceSubmissionDTO{}, fmt.Errorf("%s: %w", cfg.DescriptorPath, err)
	}

	sub := dto.DeviceSubmissionDTO{
		Name:        cfg.Name,
		Description: cfg.Description,
		PrimaryKind: cfg.Kind,
		Code:        string(code),
		FullCode:    cfg.FullCode,
		Approve:     cfg.Approve,
	}
	if cfg.PackagePath != "" {
		f, err := os.Open(filepath.Clean(cfg.PackagePath))
		if err != nil {
			return dto.DeviceSubmissionDTO{}, fmt.Errorf("open package: %w", err)
		}
		defer func() { _ = f.Close() }()
		if sub.Package, err = netutil.ReadAll(f, cfg.Env.MaxPackageBytes); err != nil {
			return dto.DeviceSubmissionDTO{}, fmt.Errorf("read package: %w", err)
		}
	}
	return sub, nil
}

// explain turns service errors into messages for the terminal.
func explain(err error) error {
	var (
		ve *entities.ValidationError
		pe *entities.PackagingError
	)
	switch {
	case errors.As(err, &ve):
		return fmt.Errorf("descriptor rejected: %w", err)
	case errors.As(err, &pe) && pe.Committed:
		return fmt.Errorf("version %d of %s was saved, but its package was not: %w", pe.Version, pe.Kind, pe.Err)
	case errors.Is(err, entities.ErrNotAuthorized):
		return fmt.Errorf("permission denied: %w", err)
	case errors.Is(err, entities.ErrConcurrentModification):
		return fmt.Errorf("the device changed while saving, try again: %w", err)
	default:
		return err
	}
}

type deviceView struct {
	ID               int64    `json:"id"`
	PrimaryKind      string   `json:"primary_kind"`
	GlobalName       string   `json:"global_name,omitempty"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	FullCode         bool     `json:"fullcode"`
	Owner            int64    `json:"owner"`
	DeveloperVersion int      `json:"developer_version"`
	ApprovedVersion  *int     `json:"approved_version"`
	Kinds            []string `json:"kinds"`
	ChildKinds       []string `json:"child_kinds"`
	Online           bool     `json:"online"`
}

func newDeviceView(rec entities.DeviceRecord) deviceView {
	return deviceView{
		ID:               rec.ID,
		PrimaryKind:      rec.PrimaryKind,
		GlobalName:       rec.GlobalName,
		Name:             rec.Name,
		Description:      rec.Description,
		FullCode:         rec.FullCode,
		Owner:            rec.Owner,
		DeveloperVersion: rec.DeveloperVersion,
		ApprovedVersion:  rec.ApprovedVersion,
		Kinds:            rec.Kinds,
		ChildKinds:       rec.ChildKinds,
		Online:           rec.IsOnlineAccount(),
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func approvedLabel(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func (a *app) get(ctx context.Context, cfg Config, out io.Writer) error {
	id, err := cfg.deviceID()
	if err != nil {
		return err
	}
	rec, err := a.service.Get(ctx, id)
	if err != nil {
		return err
	}
	if cfg.JSON {
		return writeJSON(out, newDeviceView(rec))
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%d\n", rec.ID)
	fmt.Fprintf(tw, "kind:\t%s\n", rec.PrimaryKind)
	if rec.GlobalName != "" {
		fmt.Fprintf(tw, "global name:\t%s\n", rec.GlobalName)
	}
	fmt.Fprintf(tw, "name:\t%s\n", rec.Name)
	fmt.Fprintf(tw, "description:\t%s\n", rec.Description)
	fmt.Fprintf(tw, "owner:\t%d\n", rec.Owner)
	fmt.Fprintf(tw, "developer version:\t%d\n", rec.DeveloperVersion)
	fmt.Fprintf(tw, "approved version:\t%s\n", approvedLabel(rec.ApprovedVersion))
	fmt.Fprintf(tw, "types:\t%s\n", strings.Join(rec.Kinds, ", "))
	return tw.Flush()
}

func (a *app) source(ctx context.Context, cfg Config, out io.Writer) error {
	id, err := cfg.deviceID()
	if err != nil {
		return err
	}
	src, err := a.service.Source(ctx, id, cfg.Requester())
	if err != nil {
		return explain(err)
	}
	_, err = fmt.Fprintln(out, src.Code)
	return err
}

func (a *app) list(ctx context.Context, cfg Config, out io.Writer) error {
	devices, err := a.service.List(ctx)
	if err != nil {
		return err
	}
	if cfg.JSON {
		views := make([]deviceView, len(devices))
		for i, rec := range devices {
			views[i] = newDeviceView(rec)
		}
		return writeJSON(out, views)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tNAME\tVERSION\tAPPROVED")
	for _, rec := range devices {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			rec.ID, rec.PrimaryKind, rec.Name, rec.DeveloperVersion, approvedLabel(rec.ApprovedVersion))
	}
	return tw.Flush()
}

func (a *app) seed(ctx context.Context, cfg Config, out io.Writer) error {
	var (
		c   *catalog.Catalog
		err error
	)
	if cfg.CatalogPath != "" {
		c, err = catalog.Load(cfg.CatalogPath)
	} else {
		c, err = catalog.Default()
	}
	if err != nil {
		return err
	}
	res, err := catalog.Seed(ctx, a.store, c, a.logger)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "created %d, updated %d, unchanged %d interfaces\n",
		len(res.Created), len(res.Updated), len(res.Unchanged))
	return err
}

func (a *app) pkg(ctx context.Context, cfg Config, out io.Writer) error {
	action, kind := cfg.Args[0], cfg.Args[1]
	versions, err := a.packages.Versions(ctx, kind)
	if err != nil {
		return err
	}

	if action == "versions" {
		for _, v := range versions {
			if _, err := fmt.Fprintln(out, v); err != nil {
				return err
			}
		}
		return nil
	}

	constraint := resolvers.Latest
	if len(cfg.Args) > 2 {
		constraint = cfg.Args[2]
	}
	version, err := resolvers.NewVersionResolver().Resolve(constraint, versions)
	if err != nil {
		return fmt.Errorf("package %s: %w", kind, err)
	}

	artifact, err := a.packages.Fetch(ctx, kind, version)
	if err != nil {
		return err
	}
	defer func() { _ = artifact.Close() }()

	path := cfg.OutputPath
	if path == "" {
		path = fmt.Sprintf("%s-v%d.zip", kind, version)
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, artifact.Data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	_, err = fmt.Fprintf(out, "%s version %d (%s) -> %s\n", kind, version, artifact.Digest, path)
	return err
}
