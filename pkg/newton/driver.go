// Package newton is the Nonlinear Driver of spec.md §4.7: the damped
// inexact-Newton outer loop wired to the linear backend, row scaling L,
// and the convergence test of §4.8. Grounded on the teacher's
// pkg/analysis doNRiter shape (scatter -> stamp -> solve -> converged?)
// generalised to the unified region/boundary/circuit assembly sequence.
package newton

import (
	"math"

	"github.com/gotcad/mixsolve/pkg/boundary"
	"github.com/gotcad/mixsolve/pkg/circuitbridge"
	"github.com/gotcad/mixsolve/pkg/damping"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/region"
	"github.com/gotcad/mixsolve/pkg/simerror"
	"github.com/gotcad/mixsolve/pkg/solverctx"
)

// Driver owns X, L, the Jacobian J, the residual r, and the lx/lf
// localised views (spec.md §3 Ownership: "the Nonlinear Driver
// exclusively owns X, L, lx, lf, the Jacobian matrix J, the residual r").
type Driver struct {
	Regions    []region.Assembler
	BCs        []boundary.Condition
	Bridge     circuitbridge.Bridge // nil if this run has no circuit block
	Damping    damping.Strategy
	DampTable  *damping.Table
	Tags       []RowTag
	Tolerances *Tolerances

	Ctx *solverctx.Context

	X, L *linalg.Vec
	J    *linalg.Mat

	MaxIter        int
	DivergeLimit   int // consecutive residual-growth steps before NewtonDiverged
	mode           region.InsertMode
}

// New allocates a Driver's X/L/J for a unified system of size n.
func New(n int, ctx *solverctx.Context) (*Driver, error) {
	mat, err := linalg.NewMat(n)
	if err != nil {
		return nil, err
	}
	return &Driver{
		Ctx:          ctx,
		X:            linalg.NewVec(n),
		L:            linalg.NewVec(n),
		J:            mat,
		MaxIter:      ctx.MaxNewtonIter,
		DivergeLimit: ctx.DivergeGrowthStreak,
		mode:         region.NotSet,
	}, nil
}

// FillInitial runs fill_initial over every region and the circuit bridge
// (spec.md §4.2/§4.4), establishing X and an initial L.
func (d *Driver) FillInitial() {
	for _, r := range d.Regions {
		r.FillInitial(d.X, d.L)
	}
	if d.Bridge != nil {
		d.Bridge.FillValue(d.X, d.L)
	}
}

// assemble runs the residual+Jacobian sequence spec.md §4.7 steps 2-3
// name: regions -> time-dependent -> hanging nodes -> circuit -> BC
// preprocess -> BC assemble. Residual and Jacobian are filled together
// per contributor since every contributor's Residual/Jacobian pair
// shares the same loop structure and local offsets.
func (d *Driver) assemble(lx *linalg.Vec, r *linalg.Vec, n int) error {
	r.Zero()
	d.J.Zero()
	d.mode = d.mode.Promote()

	for _, reg := range d.Regions {
		if err := reg.Residual(lx, r, d.mode); err != nil {
			return err
		}
		if err := reg.Jacobian(lx, d.J, d.mode); err != nil {
			return err
		}
		if d.Ctx.TimeDependent {
			if err := reg.TimeDependentResidual(lx, r, d.mode, d.Ctx); err != nil {
				return err
			}
			if err := reg.TimeDependentJacobian(lx, d.J, d.mode, d.Ctx); err != nil {
				return err
			}
		}
		if err := reg.HangingNodeFunction(lx, r, d.mode); err != nil {
			return err
		}
		if err := reg.HangingNodeJacobian(lx, d.J, d.mode); err != nil {
			return err
		}
	}

	if d.Bridge != nil {
		if err := d.Bridge.Residual(lx, r, d.mode); err != nil {
			return err
		}
		if err := d.Bridge.Jacobian(lx, d.J, d.mode); err != nil {
			return err
		}
	}

	for _, bc := range d.BCs {
		if err := boundary.ApplyPreprocess(bc, lx, r, d.J); err != nil {
			return err
		}
	}
	for _, bc := range d.BCs {
		if err := bc.AssembleResidual(lx, r, d.mode); err != nil {
			return err
		}
		if err := bc.AssembleJacobian(lx, d.J, d.mode); err != nil {
			return err
		}
	}

	if !d.J.ReserveDone() {
		d.J.MarkReserved()
	}

	// refresh row scaling L from the freshly assembled diagonal
	// (spec.md §3: "Row scaling L is refreshed after each Jacobian
	// assembly").
	for i := 1; i <= n; i++ {
		diag := d.J.Diagonal(i)
		if diag == 0 {
			d.L.Set(i, 1.0)
			continue
		}
		d.L.Set(i, 1.0/diag)
	}

	return nil
}

// Step runs one full inexact-Newton solve to convergence (the 8 numbered
// steps of spec.md §4.7), returning the accepted iterate's norms. On
// success it overwrites d.X with the accepted iterate; on failure it
// returns the error and leaves d.X as it was. Step restores nothing
// itself: Controller.Run calls Rollback with its own snapshot.
func (d *Driver) Step() (*Norms, error) {
	n := d.X.Len()
	lx := d.X.Clone()
	r := linalg.NewVec(n)

	lastNorm := math.Inf(1)
	growthStreak := 0

	for iter := 0; iter < d.MaxIter; iter++ {
		if err := d.assemble(lx, r, n); err != nil {
			return nil, err
		}

		if r.HasNaN() {
			return nil, simerror.New(simerror.AssemblyNaN, "newton.Step: residual")
		}

		// row-scale: r <- L (x) r, J <- diag(L)*J
		scaled := linalg.NewVec(n)
		scaled.PointwiseMult(d.L, r)
		d.J.DiagonalScale(d.L)

		y, err := d.J.Solve(scaled)
		if err != nil {
			return nil, simerror.Wrap(simerror.LinearSolveFailure, "newton.Step: linear solve", err)
		}

		w := lx.Clone()
		w.AXPY(-1, y)
		if d.Damping != nil {
			d.Damping.Apply(lx, y, w)
		}

		if err := d.assembleResidualOnly(w, r, n); err != nil {
			return nil, err
		}
		if r.HasNaN() {
			return nil, simerror.New(simerror.AssemblyNaN, "newton.Step: post-damping residual")
		}

		cktNorm := 0.0
		if d.Bridge != nil {
			cktNorm = d.Bridge.ResidualNorm2()
		}
		norms := Compute(r, w, d.Tags)

		total := r.Norm2()
		if total > lastNorm*d.Ctx.DivergeGrowthFactor {
			growthStreak++
			if growthStreak >= d.DivergeLimit {
				return nil, simerror.New(simerror.NewtonDiverged, "newton.Step: residual growth streak")
			}
		} else {
			growthStreak = 0
		}
		lastNorm = total

		if d.Tolerances != nil && d.Tolerances.Converged(norms, cktNorm) {
			d.X.CopyFrom(w)
			return norms, nil
		}

		lx = w
	}

	return nil, simerror.New(simerror.NewtonDiverged, "newton.Step: iteration limit exceeded")
}

// assembleResidualOnly re-evaluates r(w) after damping without rebuilding
// J (spec.md §4.7 step 7: "optionally re-evaluate r(w)").
func (d *Driver) assembleResidualOnly(lx *linalg.Vec, r *linalg.Vec, n int) error {
	r.Zero()
	mode := d.mode
	for _, reg := range d.Regions {
		if err := reg.Residual(lx, r, mode); err != nil {
			return err
		}
		if d.Ctx.TimeDependent {
			if err := reg.TimeDependentResidual(lx, r, mode, d.Ctx); err != nil {
				return err
			}
		}
		if err := reg.HangingNodeFunction(lx, r, mode); err != nil {
			return err
		}
	}
	if d.Bridge != nil {
		if err := d.Bridge.Residual(lx, r, mode); err != nil {
			return err
		}
	}
	for _, bc := range d.BCs {
		src, dst, clear := bc.Preprocess(lx)
		for i := range src {
			r.Add(dst[i], r.Get(src[i]))
		}
		for _, row := range clear {
			r.Set(row, 0)
		}
	}
	for _, bc := range d.BCs {
		if err := bc.AssembleResidual(lx, r, mode); err != nil {
			return err
		}
	}
	return nil
}

// Accept finalises an accepted step: projection, a post-projection
// invariant check, then per-region UpdateSolution and a circuit
// SaveSolution (spec.md §4.7 step 8, §7's fatal sanity check).
func (d *Driver) Accept(xOld *linalg.Vec) error {
	if d.DampTable != nil {
		damping.Project(d.DampTable, d.X, xOld)
		if err := damping.CheckInvariants(d.DampTable, d.X); err != nil {
			return err
		}
	}
	for _, r := range d.Regions {
		r.UpdateSolution(d.X)
	}
	if d.Bridge != nil {
		d.Bridge.SaveSolution()
	}
	return nil
}

// Rollback restores the last accepted X and the circuit snapshot after a
// NewtonDiverged/CircuitFailure verdict (spec.md §5, §7).
func (d *Driver) Rollback(xAccepted *linalg.Vec) {
	d.X.CopyFrom(xAccepted)
	if d.Bridge != nil {
		d.Bridge.RestoreSolution()
		d.Bridge.FillValue(d.X, d.L)
	}
}
