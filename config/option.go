package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
)

// Kind is the type of an option value.
type Kind int

// Supported kinds.
const (
	KindInt Kind = iota
	KindUint
	KindFloat
	KindBool
	KindString
	KindDuration
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindDuration:
		return "duration"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// An Option declares a named, typed configuration value.
type Option struct {
	Name    string
	Kind    Kind
	Default any
	Usage   string

	// Validate, if set, checks a converted value.
	Validate func(v any) error
}

func (o *Option) convert(raw any) (any, error) {
	var (
		v   any
		err error
	)

	if err := o.checkKind(raw); err != nil {
		return nil, &OptionError{
			Name:  o.Name,
			Value: raw,
			Err:   fmt.Errorf("%w: expecting %s: %v", ErrInvalidOptionValue, o.Kind, err),
		}
	}

	switch o.Kind {
	case KindInt:
		v, err = cast.ToIntE(raw)
	case KindUint:
		v, err = toUint64(raw)
	case KindFloat:
		v, err = cast.ToFloat64E(raw)
	case KindBool:
		v, err = cast.ToBoolE(raw)
	case KindString:
		v, err = cast.ToStringE(raw)
	case KindDuration:
		v, err = cast.ToDurationE(raw)
	default:
		panic(fmt.Sprintf("unknown option kind %s", o.Kind))
	}

	if err != nil {
		return nil, &OptionError{
			Name:  o.Name,
			Value: raw,
			Err:   fmt.Errorf("%w: expecting %s: %v", ErrInvalidOptionValue, o.Kind, err),
		}
	}

	if o.Validate != nil {
		if err := o.Validate(v); err != nil {
			return nil, &OptionError{
				Name:  o.Name,
				Value: raw,
				Err:   fmt.Errorf("%w: %v", ErrInvalidOptionValue, err),
			}
		}
	}

	return v, nil
}

// checkKind rejects the values cast would quietly coerce into a different
// meaning. Strings are left to cast, except for durations.
func (o *Option) checkKind(raw any) error {
	switch o.Kind {
	case KindInt, KindUint:
		switch x := raw.(type) {
		case bool:
			return errors.New("got a bool")
		case time.Duration:
			return errors.New("got a duration")
		case float32:
			return checkIntegral(float64(x))
		case float64:
			return checkIntegral(x)
		}
	case KindFloat:
		switch raw.(type) {
		case bool:
			return errors.New("got a bool")
		case time.Duration:
			return errors.New("got a duration")
		}
	case KindDuration:
		switch x := raw.(type) {
		case time.Duration:
			return nil
		case string:
			_, err := time.ParseDuration(x)
			return err
		default:
			return fmt.Errorf("got %T, a duration needs a unit, such as 10s", raw)
		}
	}

	return nil
}

func checkIntegral(f float64) error {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return fmt.Errorf("got fractional value %v", f)
	}

	return nil
}

// cast happily wraps negative numbers around when converting to unsigned
// types, so they are checked first.
func toUint64(raw any) (uint64, error) {
	i, err := cast.ToInt64E(raw)
	if err == nil && i < 0 {
		return 0, fmt.Errorf("negative value %d", i)
	}

	return cast.ToUint64E(raw)
}

// AtLeast returns a validator that requires a numeric value to be no smaller
// than min.
func AtLeast(min float64) func(v any) error {
	return func(v any) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}

		if f < min {
			return fmt.Errorf("must be at least %v", min)
		}

		return nil
	}
}

// Between returns a validator that requires a numeric value in [min, max].
func Between(min, max float64) func(v any) error {
	return func(v any) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}

		if f < min || f > max {
			return fmt.Errorf("must be between %v and %v", min, max)
		}

		return nil
	}
}

// NonNegativeDuration rejects negative durations.
func NonNegativeDuration(v any) error {
	d, err := cast.ToDurationE(v)
	if err != nil {
		return err
	}

	if d < 0 {
		return fmt.Errorf("must not be negative, got %s", d)
	}

	return nil
}
