package boundary

import (
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/region"
)

// OhmicElectrode is the device-only Dirichlet BC: pins psi (and, on a
// semiconductor node, n/p to their equilibrium values) to the applied
// terminal voltage. It has no preprocess work of its own — its rows are
// exactly the rows it owns, so Preprocess returns empty lists.
type OhmicElectrode struct {
	name    string
	arena   *mesh.Arena
	index   *indexmap.Map
	region  mesh.RegionID
	nodes   []mesh.NodeID
	voltage float64
}

func NewOhmicElectrode(name string, arena *mesh.Arena, idx *indexmap.Map, reg mesh.RegionID, nodes []mesh.NodeID, voltage float64) *OhmicElectrode {
	return &OhmicElectrode{name: name, arena: arena, index: idx, region: reg, nodes: nodes, voltage: voltage}
}

func (o *OhmicElectrode) Name() string { return o.name }

func (o *OhmicElectrode) SetVoltage(v float64) { o.voltage = v }

func (o *OhmicElectrode) IsSpiceElectrode() bool { return false }

func (o *OhmicElectrode) Preprocess(lx *linalg.Vec) (src, dst, clear []int) {
	return nil, nil, nil
}

func (o *OhmicElectrode) AssembleResidual(lx *linalg.Vec, r *linalg.Vec, mode region.InsertMode) error {
	for _, id := range o.nodes {
		node := o.arena.Node(id)
		psiOff, err := o.index.Offset(o.region, node.LocalID, indexmap.Potential)
		if err != nil {
			return err
		}
		r.Set(psiOff, lx.Get(psiOff)-o.voltage)
	}
	return nil
}

func (o *OhmicElectrode) AssembleJacobian(lx *linalg.Vec, J *linalg.Mat, mode region.InsertMode) error {
	for _, id := range o.nodes {
		node := o.arena.Node(id)
		psiOff, err := o.index.Offset(o.region, node.LocalID, indexmap.Potential)
		if err != nil {
			return err
		}
		if err := J.SetAdd(psiOff, psiOff, 1.0); err != nil {
			return err
		}
	}
	return nil
}

// InterfaceContinuity is the device-only interface/heterojunction BC:
// it ties a node's potential on one side of an interface to the node on
// the other side by redirecting the second node's row into the first's
// during preprocess, then clearing the second row so only one equation
// survives per interface pair — the canonical use of the preprocess
// add/clear contract (spec.md §4.3).
type InterfaceContinuity struct {
	name   string
	arena  *mesh.Arena
	index  *indexmap.Map
	pairs  [][2]mesh.NodeID // (keep, redirect) per interface node pair
	region [2]mesh.RegionID
}

func NewInterfaceContinuity(name string, arena *mesh.Arena, idx *indexmap.Map, pairs [][2]mesh.NodeID, regions [2]mesh.RegionID) *InterfaceContinuity {
	return &InterfaceContinuity{name: name, arena: arena, index: idx, pairs: pairs, region: regions}
}

func (c *InterfaceContinuity) Name() string { return c.name }

func (c *InterfaceContinuity) IsSpiceElectrode() bool { return false }

func (c *InterfaceContinuity) Preprocess(lx *linalg.Vec) (src, dst, clear []int) {
	for _, pr := range c.pairs {
		keepNode := c.arena.Node(pr[0])
		redirNode := c.arena.Node(pr[1])
		keepOff, err1 := c.index.Offset(c.region[0], keepNode.LocalID, indexmap.Potential)
		redirOff, err2 := c.index.Offset(c.region[1], redirNode.LocalID, indexmap.Potential)
		if err1 != nil || err2 != nil {
			continue
		}
		src = append(src, redirOff)
		dst = append(dst, keepOff)
		clear = append(clear, redirOff)
	}
	return
}

func (c *InterfaceContinuity) AssembleResidual(lx *linalg.Vec, r *linalg.Vec, mode region.InsertMode) error {
	for _, pr := range c.pairs {
		keepNode := c.arena.Node(pr[0])
		redirNode := c.arena.Node(pr[1])
		keepOff, err := c.index.Offset(c.region[0], keepNode.LocalID, indexmap.Potential)
		if err != nil {
			return err
		}
		redirOff, err := c.index.Offset(c.region[1], redirNode.LocalID, indexmap.Potential)
		if err != nil {
			return err
		}
		r.Set(redirOff, lx.Get(redirOff)-lx.Get(keepOff))
	}
	return nil
}

func (c *InterfaceContinuity) AssembleJacobian(lx *linalg.Vec, J *linalg.Mat, mode region.InsertMode) error {
	for _, pr := range c.pairs {
		keepNode := c.arena.Node(pr[0])
		redirNode := c.arena.Node(pr[1])
		keepOff, err := c.index.Offset(c.region[0], keepNode.LocalID, indexmap.Potential)
		if err != nil {
			return err
		}
		redirOff, err := c.index.Offset(c.region[1], redirNode.LocalID, indexmap.Potential)
		if err != nil {
			return err
		}
		if err := J.SetAdd(redirOff, redirOff, 1.0); err != nil {
			return err
		}
		if err := J.SetAdd(redirOff, keepOff, -1.0); err != nil {
			return err
		}
	}
	return nil
}
