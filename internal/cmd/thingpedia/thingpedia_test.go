package thingpedia

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/thingpedia-registry/config"
	"github.com/reglet-dev/thingpedia-registry/device/values"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("thingpedia", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseConfig(t *testing.T) {
	t.Setenv("THINGPEDIA_DB_PATH", "/tmp/registry.db")

	t.Run("submit", func(t *testing.T) {
		cfg, err := ParseConfig(newFlagSet(), []string{
			"-org", "7", "-tier", "trusted-developer",
			"submit", "-kind", "com.example.lamp", "-name", "Lamp",
			"-descriptor", "lamp.yaml", "-approve", "-id", "3",
		})
		require.NoError(t, err)
		assert.Equal(t, CommandSubmit, cfg.Command)
		assert.Equal(t, "/tmp/registry.db", cfg.Env.DBPath)
		assert.Equal(t, values.NewRequester(7, values.TierTrustedDeveloper), cfg.Requester())
		assert.Equal(t, "com.example.lamp", cfg.Kind)
		assert.Equal(t, "lamp.yaml", cfg.DescriptorPath)
		assert.Equal(t, int64(3), cfg.ID)
		assert.True(t, cfg.Approve)
	})

	t.Run("flags override env", func(t *testing.T) {
		cfg, err := ParseConfig(newFlagSet(), []string{"-db", "other.db", "list"})
		require.NoError(t, err)
		assert.Equal(t, "other.db", cfg.Env.DBPath)
		assert.Equal(t, values.TierDeveloper, cfg.Tier)
	})

	t.Run("get", func(t *testing.T) {
		cfg, err := ParseConfig(newFlagSet(), []string{"get", "12"})
		require.NoError(t, err)
		id, err := cfg.deviceID()
		require.NoError(t, err)
		assert.Equal(t, int64(12), id)
	})

	t.Run("package fetch", func(t *testing.T) {
		cfg, err := ParseConfig(newFlagSet(), []string{"package", "-o", "out.zip", "fetch", "com.example.lamp", ">=1"})
		require.NoError(t, err)
		assert.Equal(t, "out.zip", cfg.OutputPath)
		assert.Equal(t, []string{"fetch", "com.example.lamp", ">=1"}, cfg.Args)
	})

	errCases := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate"}},
		{"submit without descriptor", []string{"submit", "-kind", "x"}},
		{"get without id", []string{"get"}},
		{"get with bad id", []string{"get", "abc"}},
		{"source with zero id", []string{"source", "0"}},
		{"package bad action", []string{"package", "delete", "x"}},
		{"package without kind", []string{"package", "versions"}},
		{"bad tier", []string{"-tier", "wizard", "list"}},
		{"bad store", []string{"-package-store", "s3", "list"}},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig(newFlagSet(), tc.args)
			assert.Error(t, err)
		})
	}
}

func TestTemplate(t *testing.T) {
	for _, class := range []string{"", ClassPhysical, ClassOnline, ClassData} {
		code, err := Template(class, "org3")
		require.NoError(t, err, class)
		assert.True(t, json.Valid([]byte(code)), class)
		assert.Contains(t, code, "of org3")
	}

	_, err := Template("robot", "org3")
	assert.Error(t, err)
}

type fakePrompter struct {
	answer bool
	asked  []string
}

func (p *fakePrompter) ConfirmApproval(kind string) (bool, error) {
	p.asked = append(p.asked, kind)
	return p.answer, nil
}

const lampYAML = `
name: Lamp
description: A lamp
global-name: lamp
types: [light-bulb]
queries:
  power:
    args: [power]
    schema: ["Enum(on,off)"]
actions:
  set_power:
    args: [power]
    schema: ["Enum(on,off)"]
    examples: ["turn $power the lamp"]
`

func testEnv(dir string) config.Config {
	return config.Config{
		DBPath:           filepath.Join(dir, "thingpedia.db"),
		PackageStore:     config.PackageStoreFS,
		PackageDir:       filepath.Join(dir, "packages"),
		ReservedKinds:    []string{"org.thingpedia.builtin.*"},
		PackagingWorkers: 1,
		MaxPackageBytes:  1 << 20,
		LogLevel:         "error",
		LogFormat:        "text",
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func run(t *testing.T, cfg Config) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, &out, io.Discard))
	return out.String()
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	env := testEnv(dir)

	out := run(t, Config{Env: env, Command: CommandSeed})
	assert.Equal(t, "created 4, updated 0, unchanged 0 interfaces\n", out)

	out = run(t, Config{Env: env, Command: CommandSeed})
	assert.Equal(t, "created 0, updated 0, unchanged 4 interfaces\n", out)

	t.Run("full code device from template", func(t *testing.T) {
		code := run(t, Config{Env: env, Command: CommandTemplate, Args: []string{ClassPhysical}, Org: 7})
		assert.Contains(t, code, "Example Device of org7")
		path := filepath.Join(dir, "device.json")
		require.NoError(t, os.WriteFile(path, []byte(code), 0o600))

		out := run(t, Config{
			Env: env, Command: CommandSubmit, Org: 7, Tier: values.TierDeveloper,
			Kind: "com.example.device", Name: "Example", Description: "An example device",
			DescriptorPath: path, FullCode: true,
		})
		assert.Equal(t, "saved com.example.device\n", out)

		versions := run(t, Config{Env: env, Command: CommandPackage, Args: []string{"versions", "com.example.device"}})
		assert.Empty(t, versions)
	})

	t.Run("packaged device", func(t *testing.T) {
		descriptor := filepath.Join(dir, "lamp.yaml")
		require.NoError(t, os.WriteFile(descriptor, []byte(lampYAML), 0o600))
		archive := filepath.Join(dir, "lamp.zip")
		writeZip(t, archive, map[string]string{
			"package.json": `{"name":"lamp","main":"index.js"}`,
			"index.js":     "module.exports = {};",
		})

		prompter := &fakePrompter{answer: true}
		out := run(t, Config{
			Env: env, Command: CommandSubmit, Org: 9, Tier: values.TierTrustedDeveloper,
			Interactive: true, Prompter: prompter,
			Kind: "com.example.lamp", Name: "Lamp", Description: "A lamp",
			DescriptorPath: descriptor, PackagePath: archive,
		})
		assert.Equal(t, "saved com.example.lamp\n", out)
		assert.Equal(t, []string{"com.example.lamp"}, prompter.asked)

		list := run(t, Config{Env: env, Command: CommandList, JSON: true})
		var views []deviceView
		require.NoError(t, json.Unmarshal([]byte(list), &views))
		require.Len(t, views, 2)
		var lamp deviceView
		for _, v := range views {
			if v.PrimaryKind == "com.example.lamp" {
				lamp = v
			}
		}
		assert.Equal(t, int64(9), lamp.Owner)
		assert.Equal(t, 0, lamp.DeveloperVersion)
		require.NotNil(t, lamp.ApprovedVersion)
		assert.Equal(t, 0, *lamp.ApprovedVersion)
		assert.Equal(t, []string{"light-bulb"}, lamp.Kinds)

		id := jsonID(lamp.ID)
		table := run(t, Config{Env: env, Command: CommandGet, Args: []string{id}})
		assert.Contains(t, table, "com.example.lamp")
		assert.Contains(t, table, "global name:")

		src := run(t, Config{Env: env, Command: CommandSource, Args: []string{id}, Org: 9})
		assert.Contains(t, src, "\n  \"global-name\": \"lamp\"")

		err := Run(context.Background(), Config{Env: env, Command: CommandSource, Args: []string{id}, Org: 1}, io.Discard, io.Discard)
		assert.ErrorContains(t, err, "permission denied")

		versions := run(t, Config{Env: env, Command: CommandPackage, Args: []string{"versions", "com.example.lamp"}})
		assert.Equal(t, "0\n", versions)

		fetched := filepath.Join(dir, "fetched.zip")
		out = run(t, Config{Env: env, Command: CommandPackage, OutputPath: fetched, Args: []string{"fetch", "com.example.lamp"}})
		assert.Contains(t, out, "com.example.lamp version 0 (sha256:")

		zr, err := zip.OpenReader(fetched)
		require.NoError(t, err)
		defer func() { _ = zr.Close() }()
		var manifest map[string]any
		for _, f := range zr.File {
			if f.Name != "package.json" {
				continue
			}
			rc, err := f.Open()
			require.NoError(t, err)
			require.NoError(t, json.NewDecoder(rc).Decode(&manifest))
			_ = rc.Close()
		}
		assert.Equal(t, "lamp", manifest["name"])
		assert.EqualValues(t, 0, manifest["thingpedia-version"])
		assert.Contains(t, manifest, "thingpedia-metadata")
	})

	t.Run("rejected descriptor", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"queries":{"q":{"args":["a","b"],"schema":["String"]}}}`), 0o600))

		err := Run(context.Background(), Config{
			Env: env, Command: CommandSubmit, Org: 7, Tier: values.TierDeveloper,
			Kind: "com.example.bad", Name: "Bad", Description: "Bad",
			DescriptorPath: path, FullCode: true,
		}, io.Discard, io.Discard)
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "descriptor rejected: "), err.Error())
	})
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
