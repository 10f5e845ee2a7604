// Package circuitbridge is the Circuit Bridge (spec.md §4.4): it lets
// the teacher's unmodified SPICE device stamps (pkg/device, pkg/circuit,
// pkg/netlist) participate in the unified mixed-mode Newton iteration
// alongside the Region Assemblers, without either side knowing about
// the other's representation of state.
package circuitbridge

import (
	"fmt"
	"math"

	"github.com/gotcad/mixsolve/pkg/circuit"
	"github.com/gotcad/mixsolve/pkg/device"
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/netlist"
	"github.com/gotcad/mixsolve/pkg/region"
	"github.com/gotcad/mixsolve/pkg/simerror"
)

// Bridge is the contract the Driver uses to treat the circuit block like
// any other contributor to the unified X/F/J (spec.md §4.4, §6.3).
type Bridge interface {
	FillValue(x, L *linalg.Vec)
	Residual(lx *linalg.Vec, r *linalg.Vec, mode region.InsertMode) error
	Jacobian(lx *linalg.Vec, J *linalg.Mat, mode region.InsertMode) error
	SaveSolution()
	RestoreSolution()
	ResidualNorm2() float64
	ArrayOffsetX(cktNode int) (int, error)
	ArrayOffsetF(cktNode int) (int, error)
	IsVoltageNode(cktNode int) bool
	IsCurrentNode(cktNode int) bool
}

// SpiceBridge wraps a pkg/circuit.Circuit built from a parsed netlist.
// It never touches the circuit's own *matrix.CircuitMatrix once built —
// every Stamp call is redirected through a recorder so the resulting
// entries land at the unified rows the index map hands out, instead of
// the circuit's private, standalone linear system.
type SpiceBridge struct {
	ckt   *circuit.Circuit
	index *indexmap.Map
	size  int // ckt.GetNumNodes() + len(branchMap), local 1-based system size

	state []float64 // local circuit-numbered solution mirror
	saved []float64

	lastResidual []float64
	status       *device.CircuitStatus
}

var _ Bridge = (*SpiceBridge)(nil)

// New builds a SpiceBridge from an already-parsed netlist's elements: it
// assigns the circuit's own node/branch numbering, reserves one unified
// row per circuit unknown through idx.AddCircuitNode, and stamps once to
// let nonlinear devices establish their initial operating point, exactly
// the sequence pkg/circuit.Circuit.SetupDevices already performs for the
// teacher's own standalone circuit analyses.
func New(name string, elements []netlist.Element, models map[string]device.ModelParam, idx *indexmap.Map) (*SpiceBridge, error) {
	ckt := circuit.New(name)
	ckt.SetModels(models)
	if err := ckt.AssignNodeBranchMaps(elements); err != nil {
		return nil, simerror.Wrap(simerror.CircuitFailure, "circuitbridge.New: assign maps", err)
	}
	ckt.CreateMatrix()
	if err := ckt.SetupDevices(elements); err != nil {
		return nil, simerror.Wrap(simerror.CircuitFailure, "circuitbridge.New: setup devices", err)
	}

	size := ckt.GetNumNodes() + len(ckt.GetBranchMap())
	for i := 1; i <= size; i++ {
		idx.AddCircuitNode(i)
	}

	b := &SpiceBridge{
		ckt:          ckt,
		index:        idx,
		size:         size,
		state:        make([]float64, size+1),
		saved:        make([]float64, size+1),
		lastResidual: make([]float64, size+1),
		status:       &device.CircuitStatus{Mode: device.OperatingPointAnalysis, Gmin: 1e-12, Temp: 300.15},
	}
	return b, nil
}

// SetStatus lets the Mode Controller switch the circuit's analysis mode
// (operating point, transient with a timestep, ...) between Newton
// iterations (spec.md §4.4's "the circuit subsystem must be told which
// analysis it is serving").
func (b *SpiceBridge) SetStatus(status *device.CircuitStatus) { b.status = status }

func (b *SpiceBridge) localRow(i int) (int, error) {
	return b.index.CircuitOffset(i, indexmap.Solution)
}

// syncFromGlobal copies the unified vector's circuit rows into the local
// circuit-numbered mirror and pushes them into every nonlinear device via
// UpdateVoltages, matching the update step of circuit.Circuit's own
// SolveOperatingPoint loop.
func (b *SpiceBridge) syncFromGlobal(lx *linalg.Vec) error {
	for i := 1; i <= b.size; i++ {
		row, err := b.localRow(i)
		if err != nil {
			return err
		}
		b.state[i] = lx.Get(row)
	}
	if err := b.ckt.UpdateNonlinearVoltages(b.state); err != nil {
		return simerror.Wrap(simerror.CircuitFailure, "circuitbridge: update nonlinear voltages", err)
	}
	return nil
}

func (b *SpiceBridge) stamp() (*recorder, error) {
	rec := newRecorder(b.size)
	for _, dev := range b.ckt.GetDevices() {
		if err := dev.Stamp(rec, b.status); err != nil {
			return nil, simerror.Wrap(simerror.CircuitFailure, fmt.Sprintf("circuitbridge: stamping %s", dev.GetName()), err)
		}
	}
	return rec, nil
}

// FillValue writes the bridge's current circuit-local state into the
// unified x (and a unit row-scale into L), the same call spec.md §4.4
// names for both the initial guess and post-rollback recovery writes.
func (b *SpiceBridge) FillValue(x, L *linalg.Vec) {
	for i := 1; i <= b.size; i++ {
		row, err := b.localRow(i)
		if err != nil {
			continue
		}
		x.Set(row, b.state[i])
		L.Set(row, 1.0)
	}
}

// Residual derives F_ckt(x) = G(x)*x - I(x) from one Stamp pass at the
// current iterate — the companion-model equivalence documented on
// recorder.residualAt — and adds it into the unified residual at each
// circuit row (InsertMode is honoured by the caller's Add/Set choice
// elsewhere; the circuit block always contributes additively since no
// other assembler writes these rows).
func (b *SpiceBridge) Residual(lx *linalg.Vec, r *linalg.Vec, mode region.InsertMode) error {
	if err := b.syncFromGlobal(lx); err != nil {
		return err
	}
	rec, err := b.stamp()
	if err != nil {
		return err
	}
	for i := 1; i <= b.size; i++ {
		f := rec.residualAt(i, b.state)
		b.lastResidual[i] = f
		row, err := b.index.CircuitOffset(i, indexmap.Residual)
		if err != nil {
			return err
		}
		r.Add(row, f)
	}
	return nil
}

// Jacobian stamps G(x) directly into the unified Jacobian at the rows
// and columns the index map assigns to each circuit node/branch.
func (b *SpiceBridge) Jacobian(lx *linalg.Vec, J *linalg.Mat, mode region.InsertMode) error {
	if err := b.syncFromGlobal(lx); err != nil {
		return err
	}
	rec, err := b.stamp()
	if err != nil {
		return err
	}
	for key, v := range rec.mat {
		rowI, err := b.index.CircuitOffset(key[0], indexmap.Residual)
		if err != nil {
			return err
		}
		colJ, err := b.index.CircuitOffset(key[1], indexmap.Solution)
		if err != nil {
			return err
		}
		if err := J.SetAdd(rowI, colJ, v); err != nil {
			return err
		}
	}
	return nil
}

// SaveSolution/RestoreSolution snapshot and restore the circuit-local
// mirror only; a subsequent FillValue call is what pushes a restored
// snapshot back into the unified X, mirroring the original system's
// sequence of restore_solution() followed by a fresh spice_fill_value().
func (b *SpiceBridge) SaveSolution()    { copy(b.saved, b.state) }
func (b *SpiceBridge) RestoreSolution() { copy(b.state, b.saved) }

// ResidualNorm2 is the circuit block's contribution to the Driver's
// combined convergence norm (spec.md §4.7/§4.8: "circuit residual
// norm*A <= tau_ckt").
func (b *SpiceBridge) ResidualNorm2() float64 {
	sum := 0.0
	for i := 1; i <= b.size; i++ {
		sum += b.lastResidual[i] * b.lastResidual[i]
	}
	return math.Sqrt(sum)
}

func (b *SpiceBridge) ArrayOffsetX(cktNode int) (int, error) {
	return b.index.CircuitOffset(cktNode, indexmap.Solution)
}

func (b *SpiceBridge) ArrayOffsetF(cktNode int) (int, error) {
	return b.index.CircuitOffset(cktNode, indexmap.Residual)
}

func (b *SpiceBridge) IsVoltageNode(cktNode int) bool {
	return cktNode >= 1 && cktNode <= b.ckt.GetNumNodes()
}

func (b *SpiceBridge) IsCurrentNode(cktNode int) bool {
	return cktNode > b.ckt.GetNumNodes() && cktNode <= b.size
}

// NodeIndex resolves a netlist node name to the circuit's own local
// index, for boundary conditions (pkg/boundary's spice electrode) that
// need to tie a device terminal to a named circuit node.
func (b *SpiceBridge) NodeIndex(name string) (int, bool) {
	idx, ok := b.ckt.GetNodeMap()[name]
	return idx, ok
}

// Underlying exposes the wrapped circuit for callers that still need the
// teacher's own read paths (GetSolution, Name, ...), e.g. for reporting.
func (b *SpiceBridge) Underlying() *circuit.Circuit { return b.ckt }
