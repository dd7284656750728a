// Package thingpedia implements the thingpedia command line tool.
package thingpedia

import (
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/reglet-dev/thingpedia-registry/config"
	"github.com/reglet-dev/thingpedia-registry/device/values"
)

// Commands.
const (
	CommandSubmit   = "submit"
	CommandGet      = "get"
	CommandSource   = "source"
	CommandList     = "list"
	CommandSeed     = "seed"
	CommandTemplate = "template"
	CommandPackage  = "package"
)

// Config holds thingpedia command configuration.
type Config struct {
	Env config.Config

	Command string
	// Args are the positional arguments after the command flags.
	Args []string

	Org         int64
	Tier        values.Tier
	Interactive bool
	JSON        bool

	// submit
	ID             int64
	Kind           string
	Name           string
	Description    string
	DescriptorPath string
	PackagePath    string
	FullCode       bool
	Approve        bool

	// seed
	CatalogPath string

	// package fetch
	OutputPath string

	// Prompter asks for approval in interactive submits. Nil uses the
	// terminal.
	Prompter ApprovalPrompter
}

// Requester returns the identity submissions are made as.
func (c Config) Requester() values.Requester {
	return values.NewRequester(c.Org, c.Tier)
}

// ParseConfig parses global flags, the command and its flags.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	env, err := config.Load()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{Env: env}

	var tier string
	fs.StringVar(&cfg.Env.DBPath, "db", cfg.Env.DBPath, "path to the registry sqlite database (default: THINGPEDIA_DB_PATH or thingpedia.db)")
	fs.StringVar(&cfg.Env.PackageStore, "package-store", cfg.Env.PackageStore, "package store backend (fs|oci)")
	fs.StringVar(&cfg.Env.PackageDir, "package-dir", cfg.Env.PackageDir, "directory of the fs package store (default: ~/.thingpedia/packages)")
	fs.StringVar(&cfg.Env.OCIRepository, "oci-repository", cfg.Env.OCIRepository, "OCI repository of the oci package store")
	fs.StringVar(&cfg.Env.LogLevel, "log-level", cfg.Env.LogLevel, "log level (debug|info|warn|error)")
	fs.Int64Var(&cfg.Org, "org", 0, "organization the request is made for")
	fs.StringVar(&tier, "tier", values.TierDeveloper.String(), "developer tier (user|developer|trusted-developer|admin)")
	fs.BoolVar(&cfg.Interactive, "i", false, "prompt before approving submissions")
	fs.BoolVar(&cfg.JSON, "json", false, "print records as JSON")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Env.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.Tier, err = values.ParseTier(tier); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, errors.New("missing command (submit|get|source|list|seed|template|package)")
	}
	cfg.Command = rest[0]

	sub := flag.NewFlagSet(cfg.Command, flag.ContinueOnError)
	sub.SetOutput(fs.Output())
	switch cfg.Command {
	case CommandSubmit:
		sub.Int64Var(&cfg.ID, "id", 0, "ID of the device to update (0 = create)")
		sub.StringVar(&cfg.Kind, "kind", "", "primary kind of the device")
		sub.StringVar(&cfg.Name, "name", "", "device name")
		sub.StringVar(&cfg.Description, "description", "", "device description")
		sub.StringVar(&cfg.DescriptorPath, "descriptor", "", "descriptor file (.json, .yaml or .yml)")
		sub.StringVar(&cfg.PackagePath, "package", "", "zip package of the device implementation")
		sub.BoolVar(&cfg.FullCode, "full-code", false, "the descriptor is the complete implementation")
		sub.BoolVar(&cfg.Approve, "approve", false, "approve the new version (trusted developers only)")
	case CommandSeed:
		sub.StringVar(&cfg.CatalogPath, "catalog", "", "interface catalog file (default: built-in catalog)")
	case CommandPackage:
		sub.StringVar(&cfg.OutputPath, "o", "", "output file of package fetch (default: <kind>-v<version>.zip)")
	case CommandGet, CommandSource, CommandList, CommandTemplate:
	default:
		return Config{}, fmt.Errorf("unknown command %q", cfg.Command)
	}
	if err := sub.Parse(rest[1:]); err != nil {
		return Config{}, err
	}
	cfg.Args = sub.Args()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Command {
	case CommandSubmit:
		if c.DescriptorPath == "" {
			return errors.New("-descriptor is required")
		}
		if c.ID < 0 {
			return errors.New("-id must not be negative")
		}
	case CommandGet, CommandSource:
		if len(c.Args) != 1 {
			return fmt.Errorf("usage: %s <device-id>", c.Command)
		}
		if _, err := c.deviceID(); err != nil {
			return err
		}
	case CommandPackage:
		if len(c.Args) < 2 || (c.Args[0] != "fetch" && c.Args[0] != "versions") {
			return errors.New("usage: package fetch <kind> [constraint] | package versions <kind>")
		}
	}
	return nil
}

func (c Config) deviceID() (int64, error) {
	id, err := strconv.ParseInt(c.Args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid device id %q", c.Args[0])
	}
	return id, nil
}
