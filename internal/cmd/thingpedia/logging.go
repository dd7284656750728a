package thingpedia

import (
	"io"
	"log/slog"
	"strings"

	"github.com/reglet-dev/thingpedia-registry/config"
)

func newLogger(env config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(env.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(env.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
