// SPDX-License-Identifier: MIT

// Package linalg: functional configuration for Eigh and Solve.
// This file defines:
//   - Option / options (functional options with internal state),
//   - documented defaults (constants),
//   - WithX constructors with strong validation,
//   - WithConfig for keyed dictionaries,
//   - gatherOptions (internal), which rejects keys the entry point does not use.
//
// Design goals:
//   - Deterministic behavior: no global state; randomness only through Seed.
//   - No dead switches: each key is accepted only by the engine that reads it.
//   - Errors, not panics: invalid values surface as ErrConfig from the entry point.
package linalg

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"

	"github.com/katalvlaran/lvlinalg/linop"
	"github.com/katalvlaran/lvlinalg/matrix"
)

// Method selects the numerical engine.
type Method string

// Supported methods.
const (
	MethodExactEig Method = "exacteig" // dense eigendecomposition
	MethodDavidson Method = "davidson" // iterative subspace eigensolver
	MethodDirect   Method = "direct"   // dense LU solve
	MethodGMRES    Method = "gmres"    // restarted Krylov solve
)

// Mode selects which end of the spectrum Eigh returns.
type Mode string

// Supported modes.
const (
	Lowest Mode = "lowest"
	Uppest Mode = "uppest"
)

// Initial subspace generators for davidson.
const (
	VInitRandn  = "randn"
	VInitRand   = "rand"
	VInitRandom = "random" // alias of rand
	VInitEye    = "eye"
)

// Option keys, shared by WithConfig and the YAML Config.
const (
	KeyMethod      = "method"
	KeyMode        = "mode"
	KeyM           = "M"
	KeyE           = "E"
	KeyMaxNiter    = "max_niter"
	KeyNGuess      = "nguess"
	KeyVInit       = "v_init"
	KeyMaxAddition = "max_addition"
	KeyMinEps      = "min_eps"
	KeyVerbose     = "verbose"
	KeySeed        = "seed"
	KeyStrict      = "strict"
	KeyRTol        = "rtol"
	KeyATol        = "atol"
	KeyRestart     = "restart"
)

// DEFAULTS - single source of truth for zero-value behavior.
const (
	// DefaultEigMaxNiter caps davidson iterations.
	DefaultEigMaxNiter = 1000

	// DefaultVInit is the davidson initial subspace generator.
	DefaultVInit = VInitRandn

	// DefaultMinEps is the davidson max-abs residual tolerance.
	DefaultMinEps = 1e-6

	// DefaultSeed seeds the initial subspace and refills of dependent directions.
	DefaultSeed uint64 = 12421

	// DefaultRTol is the gmres tolerance relative to ‖b‖ per column.
	DefaultRTol = 1e-10

	// DefaultATol is the gmres absolute residual floor.
	DefaultATol = 1e-14

	// DefaultRestart is the gmres Krylov dimension before restart (clamped to n).
	DefaultRestart = 30

	// DefaultSolveNiterPerDim sets the gmres iteration cap to this multiple of n.
	DefaultSolveNiterPerDim = 10
)

const (
	engineEigh  = "Eigh"
	engineSolve = "Solve"
)

// keys each entry point reads; anything else is a ConfigError.
var engineKeys = map[string]map[string]bool{
	engineEigh: {
		KeyMethod: true, KeyMode: true, KeyM: true, KeyMaxNiter: true, KeyNGuess: true,
		KeyVInit: true, KeyMaxAddition: true, KeyMinEps: true, KeyVerbose: true,
		KeySeed: true, KeyStrict: true,
	},
	engineSolve: {
		KeyMethod: true, KeyM: true, KeyE: true, KeyRTol: true, KeyATol: true,
		KeyMaxNiter: true, KeyRestart: true, KeyVerbose: true, KeyStrict: true,
	},
}

var engineMethods = map[string][]Method{
	engineEigh:  {MethodExactEig, MethodDavidson},
	engineSolve: {MethodDirect, MethodGMRES},
}

// Option mutates internal options. Invalid values are recorded and reported
// by the entry point as ErrConfig.
type Option func(*options)

// options stores the effective configuration after applying Option setters.
type options struct {
	set map[string]bool // keys explicitly provided
	err error           // first configuration error

	method Method
	mode   Mode
	m      linop.Operator
	e      *matrix.Dense
	logger *slog.Logger

	maxNiter    int // 0: engine default
	nguess      int // 0: neig
	vInit       string
	maxAddition int // 0: neig
	minEps      float64
	verbose     bool
	seed        uint64
	strict      bool

	rtol    float64
	atol    float64
	restart int // 0: min(n, DefaultRestart)
}

func defaultOptions(engine string) *options {
	o := &options{
		set:    make(map[string]bool),
		mode:   Lowest,
		vInit:  DefaultVInit,
		minEps: DefaultMinEps,
		seed:   DefaultSeed,
		rtol:   DefaultRTol,
		atol:   DefaultATol,
		logger: slog.Default(),
	}
	if engine == engineEigh {
		o.method = MethodExactEig
	} else {
		o.method = MethodDirect
	}

	return o
}

// fail records the first error only.
func (o *options) fail(err error) {
	if o.err == nil {
		o.err = err
	}
}

// gatherOptions applies opts over the engine defaults and enforces invariants.
func gatherOptions(engine string, opts []Option) (*options, error) {
	o := defaultOptions(engine)
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.err != nil {
		return nil, fmt.Errorf("%s: %w", engine, o.err)
	}
	allowed := engineKeys[engine]
	for _, k := range slices.Sorted(maps.Keys(o.set)) {
		if !allowed[k] {
			return nil, fmt.Errorf("%s: %w", engine, configErrorf("option %q is not accepted", k))
		}
	}
	if !slices.Contains(engineMethods[engine], o.method) {
		return nil, fmt.Errorf("%s: %w", engine, configErrorf("unknown method %q", o.method))
	}

	return o, nil
}

// ---------- Structural options ----------

// WithMethod selects the engine ("exacteig"/"davidson" for Eigh,
// "direct"/"gmres" for Solve).
func WithMethod(m Method) Option {
	return func(o *options) {
		o.set[KeyMethod] = true
		o.method = m
	}
}

// WithMode selects the lowest or uppest eigenpairs.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.set[KeyMode] = true
		if m != Lowest && m != Uppest {
			o.fail(configErrorf("unknown mode %q", m))
			return
		}
		o.mode = m
	}
}

// WithM sets the metric/mass operator M.
func WithM(m linop.Operator) Option {
	return func(o *options) {
		o.set[KeyM] = true
		o.m = m
	}
}

// WithE sets the per-column shifts E (*batch, ncols) for Solve.
func WithE(e *matrix.Dense) Option {
	return func(o *options) {
		o.set[KeyE] = true
		o.e = e
	}
}

// WithLogger sets the logger used for verbose tracing and convergence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// ---------- Tuning options ----------

// WithMaxNiter caps the number of iterations (davidson) or Krylov steps (gmres).
func WithMaxNiter(n int) Option {
	return func(o *options) {
		o.set[KeyMaxNiter] = true
		if n < 1 {
			o.fail(configErrorf("%s must be >= 1, got %d", KeyMaxNiter, n))
			return
		}
		o.maxNiter = n
	}
}

// WithNGuess sets the initial subspace size for davidson.
func WithNGuess(n int) Option {
	return func(o *options) {
		o.set[KeyNGuess] = true
		if n < 1 {
			o.fail(configErrorf("%s must be >= 1, got %d", KeyNGuess, n))
			return
		}
		o.nguess = n
	}
}

// WithVInit selects the initial subspace generator: "randn", "rand"
// ("random") or "eye".
func WithVInit(v string) Option {
	return func(o *options) {
		o.set[KeyVInit] = true
		switch v {
		case VInitRandn, VInitRand, VInitRandom, VInitEye:
			o.vInit = v
		default:
			o.fail(configErrorf("unknown %s %q", KeyVInit, v))
		}
	}
}

// WithMaxAddition caps the directions added per davidson iteration.
func WithMaxAddition(n int) Option {
	return func(o *options) {
		o.set[KeyMaxAddition] = true
		if n < 1 {
			o.fail(configErrorf("%s must be >= 1, got %d", KeyMaxAddition, n))
			return
		}
		o.maxAddition = n
	}
}

// WithMinEps sets the davidson residual tolerance.
func WithMinEps(eps float64) Option {
	return func(o *options) {
		o.set[KeyMinEps] = true
		if !(eps > 0) || math.IsInf(eps, 0) {
			o.fail(configErrorf("%s must be finite and > 0, got %g", KeyMinEps, eps))
			return
		}
		o.minEps = eps
	}
}

// WithVerbose enables per-iteration logging at Info level.
func WithVerbose(v bool) Option {
	return func(o *options) {
		o.set[KeyVerbose] = true
		o.verbose = v
	}
}

// WithSeed seeds every random draw of the call.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.set[KeySeed] = true
		o.seed = seed
	}
}

// WithStrict turns exhaustion of the iteration budget into ErrNotConverged.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.set[KeyStrict] = true
		o.strict = strict
	}
}

// WithRTol sets the gmres relative tolerance.
func WithRTol(tol float64) Option {
	return func(o *options) {
		o.set[KeyRTol] = true
		if !(tol >= 0) || math.IsInf(tol, 0) {
			o.fail(configErrorf("%s must be finite and >= 0, got %g", KeyRTol, tol))
			return
		}
		o.rtol = tol
	}
}

// WithATol sets the gmres absolute tolerance.
func WithATol(tol float64) Option {
	return func(o *options) {
		o.set[KeyATol] = true
		if !(tol >= 0) || math.IsInf(tol, 0) {
			o.fail(configErrorf("%s must be finite and >= 0, got %g", KeyATol, tol))
			return
		}
		o.atol = tol
	}
}

// WithRestart sets the gmres Krylov dimension between restarts.
func WithRestart(n int) Option {
	return func(o *options) {
		o.set[KeyRestart] = true
		if n < 1 {
			o.fail(configErrorf("%s must be >= 1, got %d", KeyRestart, n))
			return
		}
		o.restart = n
	}
}
