package boundary

import (
	"github.com/gotcad/mixsolve/pkg/circuitbridge"
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/region"
)

// SpiceElectrode is the circuit-coupled flavour of the Boundary
// Assembler (spec.md §4.3, §4.4, §6.3): it ties a set of device contact
// nodes to one circuit node. Two distinct couplings happen here:
//
//   - the contact's electron/hole continuity rows, which already hold
//     this node's net current divergence, are ADDED (not moved) into the
//     circuit node's KCL row via Preprocess's src/dst pairing — a device
//     terminal contributes current to the circuit without losing its own
//     carrier-continuity equation;
//   - the contact's potential row is overridden into a Dirichlet
//     constraint pinning psi to the circuit node's voltage, exactly like
//     OhmicElectrode but against a live circuit unknown instead of a
//     fixed value.
type SpiceElectrode struct {
	name    string
	arena   *mesh.Arena
	index   *indexmap.Map
	region  mesh.RegionID
	nodes   []mesh.NodeID
	bridge  *circuitbridge.SpiceBridge
	cktNode int // circuit-local node index this electrode feeds
}

func NewSpiceElectrode(name string, arena *mesh.Arena, idx *indexmap.Map, reg mesh.RegionID, nodes []mesh.NodeID, bridge *circuitbridge.SpiceBridge, cktNode int) *SpiceElectrode {
	return &SpiceElectrode{name: name, arena: arena, index: idx, region: reg, nodes: nodes, bridge: bridge, cktNode: cktNode}
}

func (e *SpiceElectrode) Name() string { return e.name }

func (e *SpiceElectrode) IsSpiceElectrode() bool { return true }

func (e *SpiceElectrode) Preprocess(lx *linalg.Vec) (src, dst, clear []int) {
	kclRow, err := e.bridge.ArrayOffsetF(e.cktNode)
	if err != nil {
		return nil, nil, nil
	}
	for _, id := range e.nodes {
		node := e.arena.Node(id)
		if !e.index.HasKind(e.region, indexmap.Electron) {
			continue
		}
		nRow, err1 := e.index.Offset(e.region, node.LocalID, indexmap.Electron)
		pRow, err2 := e.index.Offset(e.region, node.LocalID, indexmap.Hole)
		if err1 != nil || err2 != nil {
			continue
		}
		src = append(src, nRow, pRow)
		dst = append(dst, kclRow, kclRow)

		psiRow, err3 := e.index.Offset(e.region, node.LocalID, indexmap.Potential)
		if err3 == nil {
			clear = append(clear, psiRow)
		}
	}
	return
}

func (e *SpiceElectrode) AssembleResidual(lx *linalg.Vec, r *linalg.Vec, mode region.InsertMode) error {
	vRow, err := e.bridge.ArrayOffsetX(e.cktNode)
	if err != nil {
		return err
	}
	vCkt := lx.Get(vRow)
	for _, id := range e.nodes {
		node := e.arena.Node(id)
		psiRow, err := e.index.Offset(e.region, node.LocalID, indexmap.Potential)
		if err != nil {
			return err
		}
		r.Set(psiRow, lx.Get(psiRow)-vCkt)
	}
	return nil
}

func (e *SpiceElectrode) AssembleJacobian(lx *linalg.Vec, J *linalg.Mat, mode region.InsertMode) error {
	vCol, err := e.bridge.ArrayOffsetX(e.cktNode)
	if err != nil {
		return err
	}
	for _, id := range e.nodes {
		node := e.arena.Node(id)
		psiRow, err := e.index.Offset(e.region, node.LocalID, indexmap.Potential)
		if err != nil {
			return err
		}
		if err := J.SetAdd(psiRow, psiRow, 1.0); err != nil {
			return err
		}
		if err := J.SetAdd(psiRow, vCol, -1.0); err != nil {
			return err
		}
	}
	return nil
}
