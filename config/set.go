// Package config declares and validates the named options of a scenario.
//
// Values may come from a configuration file, from environment variables, or
// from command-line flags. All of them go through the same conversion and
// validation, so a bad value is reported before any simulation entity is
// built.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment variables that set options.
const EnvPrefix = "NETSIM"

// A Set is a collection of declared options and their current values.
type Set struct {
	name    string
	order   []string
	options map[string]*Option
	byLower map[string]string
	values  map[string]any
}

// NewSet creates an empty option set.
func NewSet(name string) *Set {
	return &Set{
		name:    name,
		options: make(map[string]*Option),
		byLower: make(map[string]string),
		values:  make(map[string]any),
	}
}

// Name returns the name of the set.
func (s *Set) Name() string {
	return s.name
}

// Add declares an option. The default value must be valid for the option.
func (s *Set) Add(o Option) *Set {
	lower := strings.ToLower(o.Name)
	if _, found := s.byLower[lower]; found {
		panic(fmt.Sprintf("option %s is declared twice", o.Name))
	}

	opt := o
	v, err := opt.convert(o.Default)
	if err != nil {
		panic(fmt.Sprintf("bad default for option %s: %v", o.Name, err))
	}

	s.options[o.Name] = &opt
	s.byLower[lower] = o.Name
	s.order = append(s.order, o.Name)
	s.values[o.Name] = v

	return s
}

// Options returns the declared options in declaration order.
func (s *Set) Options() []Option {
	opts := make([]Option, 0, len(s.order))
	for _, name := range s.order {
		opts = append(opts, *s.options[name])
	}

	return opts
}

// Apply sets options from a name-to-value mapping. Option names are matched
// case-insensitively. Either all values are applied or none is.
func (s *Set) Apply(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	converted := make(map[string]any, len(values))
	for _, k := range keys {
		name, found := s.byLower[strings.ToLower(k)]
		if !found {
			return &OptionError{
				Name:  k,
				Value: values[k],
				Err:   ErrUnknownOption,
			}
		}

		v, err := s.options[name].convert(values[k])
		if err != nil {
			return err
		}

		converted[name] = v
	}

	for name, v := range converted {
		s.values[name] = v
	}

	return nil
}

// LoadFile applies the options found in a YAML, JSON or TOML file.
func (s *Set) LoadFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return s.Apply(v.AllSettings())
}

// LoadEnv applies the options set through environment variables. The
// variable of option nWifi is NETSIM_NWIFI.
func (s *Set) LoadEnv() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)

	values := make(map[string]any)
	for _, name := range s.order {
		if err := v.BindEnv(name); err != nil {
			return err
		}

		if v.IsSet(name) {
			values[name] = v.Get(name)
		}
	}

	return s.Apply(values)
}

// BindFlags defines one flag per option on the flag set.
func (s *Set) BindFlags(fs *pflag.FlagSet) {
	for _, name := range s.order {
		o := s.options[name]
		def := s.values[name]

		switch o.Kind {
		case KindInt:
			fs.Int(name, def.(int), o.Usage)
		case KindUint:
			fs.Uint64(name, def.(uint64), o.Usage)
		case KindFloat:
			fs.Float64(name, def.(float64), o.Usage)
		case KindBool:
			fs.Bool(name, def.(bool), o.Usage)
		case KindString:
			fs.String(name, def.(string), o.Usage)
		case KindDuration:
			fs.Duration(name, def.(time.Duration), o.Usage)
		}
	}
}

// ApplyFlags applies the flags that were explicitly set on the command line.
func (s *Set) ApplyFlags(fs *pflag.FlagSet) error {
	values := make(map[string]any)

	fs.Visit(func(f *pflag.Flag) {
		if _, found := s.options[f.Name]; found {
			values[f.Name] = f.Value.String()
		}
	})

	return s.Apply(values)
}

func (s *Set) mustGet(name string, kind Kind) any {
	o, found := s.options[name]
	if !found {
		panic(fmt.Sprintf("option %s is not declared", name))
	}

	if o.Kind != kind {
		panic(fmt.Sprintf("option %s is %s, not %s", name, o.Kind, kind))
	}

	return s.values[name]
}

// Int returns the value of an int option.
func (s *Set) Int(name string) int {
	return s.mustGet(name, KindInt).(int)
}

// Uint returns the value of a uint option.
func (s *Set) Uint(name string) uint64 {
	return s.mustGet(name, KindUint).(uint64)
}

// Float returns the value of a float option.
func (s *Set) Float(name string) float64 {
	return s.mustGet(name, KindFloat).(float64)
}

// Bool returns the value of a bool option.
func (s *Set) Bool(name string) bool {
	return s.mustGet(name, KindBool).(bool)
}

// String returns the value of a string option.
func (s *Set) String(name string) string {
	return s.mustGet(name, KindString).(string)
}

// Duration returns the value of a duration option.
func (s *Set) Duration(name string) time.Duration {
	return s.mustGet(name, KindDuration).(time.Duration)
}

// Values returns a copy of the effective values.
func (s *Set) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}

	return out
}

// YAML renders the effective values in declaration order.
func (s *Set) YAML() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	for _, name := range s.order {
		v := s.values[name]
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}

		key := &yaml.Node{Kind: yaml.ScalarNode, Value: name}
		val := &yaml.Node{}
		if err := val.Encode(v); err != nil {
			return nil, err
		}

		if o := s.options[name]; o.Usage != "" {
			key.HeadComment = o.Usage
		}

		root.Content = append(root.Content, key, val)
	}

	return yaml.Marshal(root)
}

// Summary renders the effective values on a single line, for logs.
func (s *Set) Summary() string {
	parts := make([]string, 0, len(s.order))
	for _, name := range s.order {
		v := s.values[name]
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}

		parts = append(parts, name+"="+cast.ToString(v))
	}

	return strings.Join(parts, " ")
}
