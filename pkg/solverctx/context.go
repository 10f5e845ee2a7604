// Package solverctx replaces the global mutable state of the original
// device solver (SolverSpecify::*, Genius::processor_id, PhysicalUnit) with
// an explicit context aggregate threaded through every call that needs it.
package solverctx

import "github.com/gotcad/mixsolve/internal/consts"

// AnalysisType selects the top-level mode the Mode Controller dispatches
// among (spec.md Configuration: Type).
type AnalysisType int

const (
	OP AnalysisType = iota
	DCSweep
	Transient
)

func (t AnalysisType) String() string {
	switch t {
	case OP:
		return "OP"
	case DCSweep:
		return "DCSWEEP"
	case Transient:
		return "TRANSIENT"
	default:
		return "UNKNOWN"
	}
}

// TSType selects the time-stepping scheme (spec.md Configuration: TS_type).
type TSType int

const (
	BDF1 TSType = iota
	BDF2
)

// AdvancedModel carries the per-region advanced-physics flags (spec.md
// Configuration: advanced_model flags).
type AdvancedModel struct {
	EnableTl bool // lattice-temperature equation active
	EnableTn bool // electron-temperature (energy-balance) equation active
	EnableTp bool // hole-temperature (energy-balance) equation active
}

// Context is the single aggregate passed to every assembler, the damping
// strategies, the time integrator and the nonlinear driver. It stands in
// for SolverSpecify plus the single-rank identity this module models
// (spec.md Concurrency & Resource Model is reduced to one logical rank;
// Reduce/Broadcast are the seams a multi-rank backend would replace).
type Context struct {
	Type           AnalysisType
	TSType         TSType
	BDF2LowerOrder bool
	TimeDependent  bool

	TSRtol float64
	TSAtol float64

	Dt         float64
	DtLast     float64
	DtLastLast float64

	// TExternal is the ambient/contact temperature used by damping and
	// invariant checks (spec.md: T_ext).
	TExternal float64

	// MaxNewtonIter bounds the inexact-Newton loop (spec.md §4.7
	// divergence: "iterate count exceeds limit").
	MaxNewtonIter int

	// DivergeGrowthFactor and DivergeGrowthStreak implement "residual
	// grows by more than a configured factor for three consecutive steps".
	DivergeGrowthFactor float64
	DivergeGrowthStreak int

	// HMin is the time-step floor; falling below it escalates
	// NewtonDiverged/CircuitFailure recovery to a fatal error.
	HMin float64

	// ProcessorID and NumProcessors model the distributed-rank identity
	// spec.md §5 assumes; this module is single-process, so ProcessorID is
	// always 0 and NumProcessors is always 1, but call sites address them
	// explicitly rather than through a global, so a future multi-rank
	// backend only has to replace this struct's construction.
	ProcessorID   int
	NumProcessors int

	// AdvancedModel carries the per-region advanced-physics flags (spec.md
	// Configuration: advanced_model flags).
	AdvancedModel AdvancedModel
}

// New returns a Context with the defaults the original solver assumes
// (room temperature, 1.0 BDF2 lower-order fallback enabled, a sane Newton
// iteration cap).
func New() *Context {
	return &Context{
		Type:                OP,
		TSType:              BDF1,
		BDF2LowerOrder:      true,
		TSRtol:              1e-3,
		TSAtol:              1e-12,
		TExternal:           consts.RoomTemperature,
		MaxNewtonIter:       30,
		DivergeGrowthFactor: 2.0,
		DivergeGrowthStreak: 3,
		HMin:                1e-14,
		ProcessorID:         0,
		NumProcessors:       1,
	}
}

// IsLastProcessor reports whether this rank owns the circuit subsystem
// (spec.md §5: "The circuit subsystem lives only on the last rank").
func (c *Context) IsLastProcessor() bool {
	return c.ProcessorID == c.NumProcessors-1
}

// ReduceKind names the named synchronisation points spec.md §5 requires to
// occur at specific call sites (dV_max, LTE count, norms, BDF2 failure
// count, spice norm).
type ReduceKind int

const (
	ReduceMax ReduceKind = iota
	ReduceSum
)

// Reduce performs the named collective reduction across ranks. On this
// single-process model it is the identity. No code in this module calls
// it: the norm, LTE and damping computations read their process-local
// values directly.
func (c *Context) Reduce(kind ReduceKind, local float64) float64 {
	return local
}

// Broadcast mirrors a value computed on the last processor (e.g. the
// spice residual norm) to every rank. Identity on one process; no code in
// this module calls it.
func (c *Context) Broadcast(v float64) float64 {
	return v
}
