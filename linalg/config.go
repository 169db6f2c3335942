// SPDX-License-Identifier: MIT

package linalg

import (
	"errors"
	"io"
	"maps"
	"math"
	"slices"

	"gopkg.in/yaml.v3"
)

// WithConfig applies a keyed option dictionary, e.g.
//
//	linalg.WithConfig(map[string]any{"max_niter": 200, "v_init": "eye"})
//
// Keys are applied in sorted order. Unknown keys and values of the wrong type
// are reported as ErrConfig. Numbers may be any Go integer or float type as
// long as integral keys receive integral values that fit in an int.
func WithConfig(cfg map[string]any) Option {
	return func(o *options) {
		for _, k := range slices.Sorted(maps.Keys(cfg)) {
			conv, ok := keyedSetters[k]
			if !ok {
				o.fail(configErrorf("unknown option %q", k))
				return
			}
			opt, err := conv(cfg[k])
			if err != nil {
				o.fail(configErrorf("option %q: %v", k, err))
				return
			}
			opt(o)
		}
	}
}

// keyedSetters converts a dictionary value into the matching Option.
// Structural keys (M, E) are not configurable by dictionary.
var keyedSetters = map[string]func(any) (Option, error){
	KeyMethod: func(v any) (Option, error) {
		s, err := toString(v)
		return WithMethod(Method(s)), err
	},
	KeyMode: func(v any) (Option, error) {
		s, err := toString(v)
		return WithMode(Mode(s)), err
	},
	KeyMaxNiter:    intSetter(WithMaxNiter),
	KeyNGuess:      intSetter(WithNGuess),
	KeyMaxAddition: intSetter(WithMaxAddition),
	KeyRestart:     intSetter(WithRestart),
	KeyVInit: func(v any) (Option, error) {
		s, err := toString(v)
		return WithVInit(s), err
	},
	KeyMinEps: floatSetter(WithMinEps),
	KeyRTol:   floatSetter(WithRTol),
	KeyATol:   floatSetter(WithATol),
	KeyVerbose: func(v any) (Option, error) {
		b, err := toBool(v)
		return WithVerbose(b), err
	},
	KeyStrict: func(v any) (Option, error) {
		b, err := toBool(v)
		return WithStrict(b), err
	},
	KeySeed: func(v any) (Option, error) {
		if u, ok := v.(uint64); ok {
			return WithSeed(u), nil
		}
		n, err := toInt(v)
		if err == nil && n < 0 {
			err = errors.New("must be >= 0")
		}
		return WithSeed(uint64(n)), err
	},
}

func intSetter(with func(int) Option) func(any) (Option, error) {
	return func(v any) (Option, error) {
		n, err := toInt(v)
		return with(n), err
	}
}

func floatSetter(with func(float64) Option) func(any) (Option, error) {
	return func(v any) (Option, error) {
		f, err := toFloat(v)
		return with(f), err
	}
}

var (
	errNotString  = errors.New("want a string")
	errNotBool    = errors.New("want a bool")
	errNotInteger = errors.New("want an integer")
	errNotNumber  = errors.New("want a number")
	errOutOfRange = errors.New("out of range for int")
)

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case Method:
		return string(s), nil
	case Mode:
		return string(s), nil
	}

	return "", errNotString
}

func toBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errNotBool
	}

	return b, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, errOutOfRange
		}
		return int(n), nil
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return uintToInt(uint64(n))
	case uint64:
		return uintToInt(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	}

	return 0, errNotInteger
}

func uintToInt(n uint64) (int, error) {
	if n > math.MaxInt {
		return 0, errOutOfRange
	}

	return int(n), nil
}

// floatToInt accepts integral values that fit in an int.
func floatToInt(f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, errNotInteger
	}
	if f < math.MinInt || f >= -math.MinInt {
		return 0, errOutOfRange
	}

	return int(f), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}

	return 0, errNotNumber
}

// Config is the file form of the keyed options. Absent fields keep their
// defaults.
type Config struct {
	Method      *string  `yaml:"method"`
	Mode        *string  `yaml:"mode"`
	MaxNiter    *int     `yaml:"max_niter"`
	NGuess      *int     `yaml:"nguess"`
	VInit       *string  `yaml:"v_init"`
	MaxAddition *int     `yaml:"max_addition"`
	MinEps      *float64 `yaml:"min_eps"`
	Verbose     *bool    `yaml:"verbose"`
	Seed        *uint64  `yaml:"seed"`
	Strict      *bool    `yaml:"strict"`
	RTol        *float64 `yaml:"rtol"`
	ATol        *float64 `yaml:"atol"`
	Restart     *int     `yaml:"restart"`
}

// LoadConfig decodes a YAML document into a Config. Unknown keys are rejected.
// An empty document yields an empty Config.
func LoadConfig(r io.Reader) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, configErrorf("decode: %v", err)
	}

	return &c, nil
}

// Options converts the present fields into Options, in a fixed order.
func (c *Config) Options() []Option {
	var opts []Option
	if c.Method != nil {
		opts = append(opts, WithMethod(Method(*c.Method)))
	}
	if c.Mode != nil {
		opts = append(opts, WithMode(Mode(*c.Mode)))
	}
	if c.MaxNiter != nil {
		opts = append(opts, WithMaxNiter(*c.MaxNiter))
	}
	if c.NGuess != nil {
		opts = append(opts, WithNGuess(*c.NGuess))
	}
	if c.VInit != nil {
		opts = append(opts, WithVInit(*c.VInit))
	}
	if c.MaxAddition != nil {
		opts = append(opts, WithMaxAddition(*c.MaxAddition))
	}
	if c.MinEps != nil {
		opts = append(opts, WithMinEps(*c.MinEps))
	}
	if c.Verbose != nil {
		opts = append(opts, WithVerbose(*c.Verbose))
	}
	if c.Seed != nil {
		opts = append(opts, WithSeed(*c.Seed))
	}
	if c.Strict != nil {
		opts = append(opts, WithStrict(*c.Strict))
	}
	if c.RTol != nil {
		opts = append(opts, WithRTol(*c.RTol))
	}
	if c.ATol != nil {
		opts = append(opts, WithATol(*c.ATol))
	}
	if c.Restart != nil {
		opts = append(opts, WithRestart(*c.Restart))
	}

	return opts
}
