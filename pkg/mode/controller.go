// Package mode is the Mode Controller of spec.md §8: the top-level
// create -> pre_solve(load) -> solve -> post_solve sequence, dispatching
// among operating-point, DC-sweep, and transient analyses. Grounded on
// the teacher's pkg/analysis dispatch shape (OperatingPoint/DCSweep/
// Transient each with their own Setup/Execute), generalised to drive
// pkg/newton.Driver instead of a bare circuit matrix.
package mode

import (
	"fmt"

	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/newton"
	"github.com/gotcad/mixsolve/pkg/simerror"
	"github.com/gotcad/mixsolve/pkg/solverctx"
	"github.com/gotcad/mixsolve/pkg/timeintegrator"
)

// Analysis is one {operating point, DC sweep, transient} strategy.
type Analysis interface {
	// PreSolve loads any per-step configuration (a sweep voltage, a
	// time-step value) into the Driver's assemblers/bridge before Solve.
	PreSolve(ctx *solverctx.Context) error
	// Solve runs the Driver to a converged (or diverged) verdict.
	Solve(d *newton.Driver) (*newton.Norms, error)
	// PostSolve inspects the trial iterate still sitting in d.X (Accept
	// has not run yet) and decides whether to keep it. Returning
	// accept=false rejects the step (the Controller rolls X back and
	// retries without advancing analysis state, e.g. a shrunk dt); on
	// acceptance, PostSolve is where analysis-specific bookkeeping
	// (sweep voltage, time-step growth, history rotation) happens.
	PostSolve(d *newton.Driver, ctx *solverctx.Context, norms *newton.Norms) (accept bool, err error)
	Done() bool
}

// Controller runs create -> pre_solve -> solve -> post_solve until the
// active Analysis reports Done.
type Controller struct {
	Driver   *newton.Driver
	Ctx      *solverctx.Context
	Analysis Analysis
}

func New(d *newton.Driver, ctx *solverctx.Context, a Analysis) *Controller {
	return &Controller{Driver: d, Ctx: ctx, Analysis: a}
}

// Run drives the controller to completion, matching the create-once,
// iterate-steps shape of the teacher's OperatingPoint.Execute /
// DCSweep.Execute / Transient.Execute loops.
func (c *Controller) Run() error {
	c.Driver.FillInitial()
	for !c.Analysis.Done() {
		xAccepted := c.Driver.X.Clone()

		if err := c.Analysis.PreSolve(c.Ctx); err != nil {
			return fmt.Errorf("mode: pre_solve: %w", err)
		}

		norms, err := c.Analysis.Solve(c.Driver)
		if err != nil {
			c.Driver.Rollback(xAccepted)
			if recoverable, nextErr := c.retryWithSmallerStep(err); recoverable {
				if nextErr != nil {
					return nextErr
				}
				continue
			}
			return fmt.Errorf("mode: solve: %w", err)
		}

		accept, err := c.Analysis.PostSolve(c.Driver, c.Ctx, norms)
		if err != nil {
			return fmt.Errorf("mode: post_solve: %w", err)
		}
		if !accept {
			c.Driver.Rollback(xAccepted)
			continue
		}

		if err := c.Driver.Accept(xAccepted); err != nil {
			return fmt.Errorf("mode: accept: %w", err)
		}
	}
	return nil
}

// retryWithSmallerStep implements the NewtonDiverged/CircuitFailure
// recovery policy of spec.md §7: halve dt and retry, fatal once
// dt < dt_min. Errors whose simerror.Kind is Fatal (IndexError,
// InvariantViolation) are never retried.
func (c *Controller) retryWithSmallerStep(err error) (recoverable bool, fatalErr error) {
	if !c.Ctx.TimeDependent {
		return false, nil
	}
	if kind, ok := simerror.KindOf(err); ok && kind.Fatal() {
		return false, nil
	}
	c.Ctx.Dt /= 2
	if c.Ctx.Dt < c.Ctx.HMin {
		return false, fmt.Errorf("mode: step size below floor after divergence: %w", err)
	}
	return true, nil
}

// TransientAnalysis drives the Time Integrator across accepted steps,
// adapting dt via LTE control and falling back from BDF2 to BDF1 when
// BDF2PositiveDefined fails (spec.md §4.6).
type TransientAnalysis struct {
	History    *timeintegrator.History
	Integrator *timeintegrator.Integrator
	TEnd       float64
	TNow       float64
	EpsR, EpsA float64

	SemiNodes func() []timeintegrator.SemiNode
	lastXp    *linalg.Vec
	done      bool
}

func (t *TransientAnalysis) Done() bool { return t.done || t.TNow >= t.TEnd }

func (t *TransientAnalysis) PreSolve(ctx *solverctx.Context) error {
	ctx.TimeDependent = true
	higherOrder := ctx.TSType == solverctx.BDF2 && !ctx.BDF2LowerOrder
	if ctx.TSType == solverctx.BDF2 && t.SemiNodes != nil {
		if !timeintegrator.BDF2PositiveDefined(t.SemiNodes(), ctx.DtLast, ctx.Dt) {
			higherOrder = false
		}
	}
	t.lastXp = timeintegrator.Predict(t.History, ctx.TSType, higherOrder)
	return nil
}

func (t *TransientAnalysis) Solve(d *newton.Driver) (*newton.Norms, error) {
	return d.Step()
}

// PostSolve implements spec.md §4.6's accept/reject/grow rule: it scores
// the just-converged trial iterate against its predictor with LTENorm,
// rejects (halving dt) when the LTE exceeds 1, and otherwise rotates
// history, advances TNow by the step just taken, and grows dt when the
// integrator says so.
func (t *TransientAnalysis) PostSolve(d *newton.Driver, ctx *solverctx.Context, norms *newton.Norms) (bool, error) {
	higherOrder := ctx.TSType == solverctx.BDF2 && !ctx.BDF2LowerOrder
	if ctx.TSType == solverctx.BDF2 && t.SemiNodes != nil {
		if !timeintegrator.BDF2PositiveDefined(t.SemiNodes(), ctx.DtLast, ctx.Dt) {
			higherOrder = false
		}
	}

	lte := t.Integrator.LTENorm(d.X, t.lastXp, t.History, ctx.TSType, higherOrder, t.EpsR, t.EpsA)
	decision, hNext := t.Integrator.Evaluate(lte, ctx.Dt)

	if decision == timeintegrator.RejectHalve {
		if hNext < ctx.HMin {
			return false, fmt.Errorf("mode: transient step size below floor after LTE rejection")
		}
		ctx.Dt = hNext
		return false, nil
	}

	timeintegrator.RotateHistory(t.History, d.X, ctx.Dt)
	ctx.DtLastLast = ctx.DtLast
	ctx.DtLast = ctx.Dt
	ctx.Dt = hNext

	t.TNow += ctx.DtLast
	if t.TNow >= t.TEnd {
		t.done = true
	}
	return true, nil
}

// OperatingPointAnalysis runs exactly one Driver.Step (no sweep, no time
// dependence) and stops, mirroring the teacher's OperatingPoint.Execute.
type OperatingPointAnalysis struct {
	done bool
}

func (o *OperatingPointAnalysis) Done() bool                                    { return o.done }
func (o *OperatingPointAnalysis) PreSolve(ctx *solverctx.Context) error         { ctx.TimeDependent = false; return nil }
func (o *OperatingPointAnalysis) Solve(d *newton.Driver) (*newton.Norms, error) { return d.Step() }

func (o *OperatingPointAnalysis) PostSolve(d *newton.Driver, ctx *solverctx.Context, norms *newton.Norms) (bool, error) {
	o.done = true
	return true, nil
}

// DCSweepAnalysis steps an electrode's voltage from Start to Stop by
// Step, mirroring the teacher's DCSweep voltage-stepping loop.
type DCSweepAnalysis struct {
	Start, Stop, Step float64
	current           float64
	started           bool
	SetVoltage        func(v float64)
	Results           []float64
}

func (s *DCSweepAnalysis) Done() bool {
	if !s.started {
		return false
	}
	if s.Step > 0 {
		return s.current > s.Stop+1e-12
	}
	return s.current < s.Stop-1e-12
}

func (s *DCSweepAnalysis) PreSolve(ctx *solverctx.Context) error {
	ctx.TimeDependent = false
	if !s.started {
		s.current = s.Start
		s.started = true
	}
	if s.SetVoltage != nil {
		s.SetVoltage(s.current)
	}
	return nil
}

func (s *DCSweepAnalysis) Solve(d *newton.Driver) (*newton.Norms, error) { return d.Step() }

func (s *DCSweepAnalysis) PostSolve(d *newton.Driver, ctx *solverctx.Context, norms *newton.Norms) (bool, error) {
	s.Results = append(s.Results, s.current)
	s.current += s.Step
	return true, nil
}
