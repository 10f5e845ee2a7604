// Package indexmap is the dense, per-partition mapping from
// (region, local node, variable kind) to a global row index in the
// unknown vector (spec.md §4.1). It owns the layout of the unified state
// vector shared with the circuit block.
package indexmap

import (
	"fmt"

	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/simerror"
)

// VarKind enumerates the per-node unknowns spec.md §3 names.
type VarKind int

const (
	Potential VarKind = iota
	Electron
	Hole
	LatticeTemp
	ElectronTempTimesN // w_n = n*Tn
	HoleTempTimesP     // w_p = p*Tp
)

func (k VarKind) String() string {
	switch k {
	case Potential:
		return "psi"
	case Electron:
		return "n"
	case Hole:
		return "p"
	case LatticeTemp:
		return "Tl"
	case ElectronTempTimesN:
		return "w_n"
	case HoleTempTimesP:
		return "w_p"
	default:
		return "unknown"
	}
}

// layout describes, for one region, which variable kinds are present and
// in what declared order; assembly code assumes the resulting block is
// contiguous per node.
type layout struct {
	kinds    []VarKind
	kindSlot map[VarKind]int
	baseRow  []int // per-node base row, indexed by local node id
}

// VectorKind distinguishes the circuit bridge's residual-row offset from
// its solution-row offset (spec.md §4.1: circuit_offset(ckt_node,
// residual_or_solution)).
type VectorKind int

const (
	Solution VectorKind = iota
	Residual
)

// Map is the solver-wide index map. Offsets are stable for the lifetime
// of the partition they were built for (spec.md §4.1 contract).
type Map struct {
	arena       *mesh.Arena
	regions     map[mesh.RegionID]*layout
	nextRow     int
	circuitBase int // first row past every device-region row
	circuitSol  map[int]int // circuit node id -> solution row
	circuitRes  map[int]int // circuit node id -> residual row
	total       int
}

// New builds an index map over the given arena. regionKinds declares, per
// region, the variable kinds present and their order (e.g. a
// Semiconductor region passes [Potential, Electron, Hole] or the full EBM
// tuple when advanced models are enabled; an Insulator region passes
// [Potential] or [Potential, LatticeTemp]; a Vacuum region passes nil).
func New(arena *mesh.Arena, regionKinds map[mesh.RegionID][]VarKind) *Map {
	m := &Map{
		arena:      arena,
		regions:    make(map[mesh.RegionID]*layout),
		circuitSol: make(map[int]int),
		circuitRes: make(map[int]int),
	}
	m.nextRow = 1 // 1-based, matching the linalg backend

	for region, kinds := range regionKinds {
		l := &layout{kinds: kinds, kindSlot: make(map[VarKind]int)}
		for i, k := range kinds {
			l.kindSlot[k] = i
		}
		nodes := arena.OnProcessorNodes(region)
		l.baseRow = make([]int, len(nodes))
		for _, id := range nodes {
			node := arena.Node(id)
			l.baseRow[node.LocalID] = m.nextRow
			m.nextRow += len(kinds)
		}
		m.regions[region] = l
	}

	m.circuitBase = m.nextRow
	m.total = m.nextRow - 1
	return m
}

// NVariables reports how many variable kinds are active on region.
func (m *Map) NVariables(region mesh.RegionID) int {
	l, ok := m.regions[region]
	if !ok {
		return 0
	}
	return len(l.kinds)
}

// LocalOffset returns the base row of the node's variable block relative
// to nothing in particular beyond "stable for the partition" — callers
// add the per-kind slot from Offset/kindSlot (spec.md §4.1:
// local_offset(fvm_node) -> local_row_base).
func (m *Map) LocalOffset(region mesh.RegionID, localNode int) int {
	l, ok := m.regions[region]
	if !ok || localNode >= len(l.baseRow) {
		return 0
	}
	return l.baseRow[localNode]
}

// Offset returns the global row for (region, localNode, kind), failing
// with simerror.IndexError if kind is disabled on region (spec.md §4.1).
func (m *Map) Offset(region mesh.RegionID, localNode int, kind VarKind) (int, error) {
	l, ok := m.regions[region]
	if !ok {
		return 0, simerror.New(simerror.IndexError, fmt.Sprintf("indexmap: unknown region %d", region))
	}
	slot, ok := l.kindSlot[kind]
	if !ok {
		return 0, simerror.New(simerror.IndexError, fmt.Sprintf("indexmap: kind %s disabled on region %d", kind, region))
	}
	if localNode < 0 || localNode >= len(l.baseRow) {
		return 0, simerror.New(simerror.IndexError, fmt.Sprintf("indexmap: local node %d out of range on region %d", localNode, region))
	}
	return l.baseRow[localNode] + slot, nil
}

// HasKind reports whether kind is enabled on region without allocating an
// error, for assembly code that branches on optional EBM variables.
func (m *Map) HasKind(region mesh.RegionID, kind VarKind) bool {
	l, ok := m.regions[region]
	if !ok {
		return false
	}
	_, ok = l.kindSlot[kind]
	return ok
}

// AddCircuitNode reserves one row for a circuit node on both the solution
// and residual layouts (they are the same unified vector position here;
// the two accessors exist because spec.md §4.1 names them separately for
// a backend where the circuit subsystem's own Vec is distinct from the
// unified one). Must be called after every region has been registered.
func (m *Map) AddCircuitNode(nodeID int) int {
	row := m.nextRow
	m.nextRow++
	m.total = m.nextRow - 1
	m.circuitSol[nodeID] = row
	m.circuitRes[nodeID] = row
	return row
}

// CircuitOffset returns the global row for a circuit node
// (spec.md §4.1: circuit_offset(ckt_node, residual_or_solution)).
func (m *Map) CircuitOffset(nodeID int, kind VectorKind) (int, error) {
	tbl := m.circuitSol
	if kind == Residual {
		tbl = m.circuitRes
	}
	row, ok := tbl[nodeID]
	if !ok {
		return 0, simerror.New(simerror.IndexError, fmt.Sprintf("indexmap: unknown circuit node %d", nodeID))
	}
	return row, nil
}

// Total is the size of the unified state vector, spanning every region
// plus the circuit block (spec.md §3: "state vector X").
func (m *Map) Total() int { return m.total }

// CircuitBase is the first row reserved for circuit nodes.
func (m *Map) CircuitBase() int { return m.circuitBase }
