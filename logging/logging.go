// Package logging builds the structured loggers used across a simulation.
//
// A Factory is created once per simulation and hands out named loggers per
// component. Each component may override the global level, which replaces
// process-wide log toggles with explicit configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/netsim/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoding.
type Format string

// Supported formats.
const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config describes how loggers are built.
type Config struct {
	// Level is the global level, one of debug, info, warn, error. Empty means
	// warn.
	Level string

	// Format is console or json. Empty means console.
	Format Format

	// Components maps a component name to a level that overrides Level.
	Components map[string]string

	// Output receives the log lines. Nil means stderr.
	Output io.Writer
}

// A Factory creates component loggers that share one output.
type Factory struct {
	encoder    zapcore.Encoder
	out        zapcore.WriteSyncer
	level      zapcore.Level
	components map[string]zapcore.Level
	nop        bool
}

// New creates a Factory from the configuration.
func New(cfg Config) (*Factory, error) {
	level, err := parseLevel("logLevel", cfg.Level, zapcore.WarnLevel)
	if err != nil {
		return nil, err
	}

	f := &Factory{
		level:      level,
		components: make(map[string]zapcore.Level, len(cfg.Components)),
	}

	for name, l := range cfg.Components {
		cl, err := parseLevel(name, l, level)
		if err != nil {
			return nil, err
		}

		f.components[name] = cl
	}

	f.encoder, err = newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}

	if cfg.Output == nil {
		f.out = zapcore.Lock(os.Stderr)
	} else {
		f.out = zapcore.AddSync(cfg.Output)
	}

	return f, nil
}

// Nop returns a Factory whose loggers discard everything.
func Nop() *Factory {
	return &Factory{nop: true}
}

// For returns the logger of a component.
func (f *Factory) For(component string) *zap.Logger {
	if f == nil || f.nop {
		return zap.NewNop()
	}

	level, ok := f.components[component]
	if !ok {
		level = f.level
	}

	core := zapcore.NewCore(f.encoder, f.out, level)

	return zap.New(core).Named(component)
}

// Enabled tells if a component logs at the given level.
func (f *Factory) Enabled(component string, level zapcore.Level) bool {
	if f == nil || f.nop {
		return false
	}

	l, ok := f.components[component]
	if !ok {
		l = f.level
	}

	return l.Enabled(level)
}

// Sync flushes the shared output.
func (f *Factory) Sync() error {
	if f == nil || f.nop {
		return nil
	}

	return f.out.Sync()
}

func newEncoder(format Format) (zapcore.Encoder, error) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""

	switch Format(strings.ToLower(string(format))) {
	case "", FormatConsole:
		return zapcore.NewConsoleEncoder(encCfg), nil
	case FormatJSON:
		prodCfg := zap.NewProductionEncoderConfig()
		prodCfg.TimeKey = ""
		return zapcore.NewJSONEncoder(prodCfg), nil
	default:
		return nil, &config.OptionError{
			Name:  "logFormat",
			Value: string(format),
			Err:   config.ErrInvalidOptionValue,
		}
	}
}

func parseLevel(
	name, text string,
	fallback zapcore.Level,
) (zapcore.Level, error) {
	if text == "" {
		return fallback, nil
	}

	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(text))); err != nil {
		return fallback, &config.OptionError{
			Name:  name,
			Value: text,
			Err:   fmt.Errorf("%w: %v", config.ErrInvalidOptionValue, err),
		}
	}

	return l, nil
}
