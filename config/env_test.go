package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "thingpedia.db", cfg.DBPath)
	assert.Equal(t, PackageStoreFS, cfg.PackageStore)
	assert.Equal(t, []string{"org.thingpedia.builtin.*"}, cfg.ReservedKinds)
	assert.Equal(t, 2, cfg.PackagingWorkers)
	assert.Equal(t, int64(32<<20), cfg.MaxPackageBytes)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("THINGPEDIA_PACKAGE_STORE", "oci")
	t.Setenv("THINGPEDIA_OCI_REPOSITORY", "localhost:5000/packages")
	t.Setenv("THINGPEDIA_OCI_PLAIN_HTTP", "true")
	t.Setenv("THINGPEDIA_RESERVED_KINDS", "org.thingpedia.builtin.*,com.example.**")
	t.Setenv("THINGPEDIA_PACKAGING_WORKERS", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost:5000/packages", cfg.OCIRepository)
	assert.True(t, cfg.OCIPlainHTTP)
	assert.Equal(t, []string{"org.thingpedia.builtin.*", "com.example.**"}, cfg.ReservedKinds)
	assert.Equal(t, 4, cfg.PackagingWorkers)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"bad int":          {"THINGPEDIA_PACKAGING_WORKERS": "many"},
		"unknown store":    {"THINGPEDIA_PACKAGE_STORE": "s3"},
		"oci without repo": {"THINGPEDIA_PACKAGE_STORE": "oci"},
		"zero workers":     {"THINGPEDIA_PACKAGING_WORKERS": "0"},
		"bad level":        {"THINGPEDIA_LOG_LEVEL": "loud"},
		"bad format":       {"THINGPEDIA_LOG_FORMAT": "xml"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg Config
	t.Setenv("THINGPEDIA_MAX_PACKAGE_BYTES", "lots")
	err := ParseEnv(&cfg)
	assert.ErrorContains(t, err, "parse env:")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
