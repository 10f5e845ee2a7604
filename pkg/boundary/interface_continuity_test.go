package boundary_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotcad/mixsolve/pkg/boundary"
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/newton"
	"github.com/gotcad/mixsolve/pkg/physics"
	"github.com/gotcad/mixsolve/pkg/region"
	"github.com/gotcad/mixsolve/pkg/solverctx"
)

// A metal contact tied to a floating insulator slab through
// InterfaceContinuity, plus an unrelated vacuum region pinned to ground:
// spec.md §4.2's "insulator/metal use psi and optional Tl" and "vacuum
// regions contribute nothing", assembled through the same Driver as a
// semiconductor region rather than exercised in isolation. Without this,
// NewInsulator/NewMetal/NewVacuum/NewInterfaceContinuity have no caller
// outside their own package tests.
func TestMultiRegionDeviceTiesMetalToInsulatorThroughContinuity(t *testing.T) {
	arena := mesh.NewArena()
	metalReg := mesh.RegionID(0)
	oxideReg := mesh.RegionID(1)
	vacuumReg := mesh.RegionID(2)

	metalNode := arena.AddNode(metalReg, mesh.NodeData{Coord: [3]float64{0, 0, 0}})
	arena.SetVolume(metalNode, 1e-12)

	const nOx = 3
	oxNodes := make([]mesh.NodeID, nOx)
	for i := 0; i < nOx; i++ {
		id := arena.AddNode(oxideReg, mesh.NodeData{Coord: [3]float64{float64(i+1) * 1e-6, 0, 0}})
		arena.SetVolume(id, 1e-14)
		oxNodes[i] = id
	}
	for i := 0; i < nOx-1; i++ {
		arena.Connect(oxNodes[i], oxNodes[i+1], 1e-8)
	}
	// The metal/oxide interface: no arena edge needed since the two
	// nodes' rows are tied together by InterfaceContinuity, not by a
	// diffusion term.

	vacuumNode := arena.AddNode(vacuumReg, mesh.NodeData{Coord: [3]float64{1, 1, 1}})
	arena.SetVolume(vacuumNode, 1e-12)

	idx := indexmap.New(arena, map[mesh.RegionID][]indexmap.VarKind{
		metalReg:  {indexmap.Potential},
		oxideReg:  {indexmap.Potential},
		vacuumReg: {indexmap.Potential},
	})

	metal := region.NewMetal(arena, idx, metalReg, false)
	oxide := region.NewInsulator(arena, idx, oxideReg, false, physics.DefaultOxide())
	vac := region.NewVacuum(arena, idx, vacuumReg)

	metalContact := boundary.NewOhmicElectrode("metal_contact", arena, idx, metalReg, []mesh.NodeID{metalNode}, 1.0)
	vacuumGround := boundary.NewOhmicElectrode("vacuum_ground", arena, idx, vacuumReg, []mesh.NodeID{vacuumNode}, 0.0)
	continuity := boundary.NewInterfaceContinuity("metal_oxide_interface", arena, idx,
		[][2]mesh.NodeID{{metalNode, oxNodes[0]}}, [2]mesh.RegionID{metalReg, oxideReg})

	d, err := newton.New(idx.Total(), solverctx.New())
	require.NoError(t, err)
	d.Regions = []region.Assembler{metal, oxide, vac}
	d.BCs = []boundary.Condition{metalContact, vacuumGround, continuity}
	d.MaxIter = 5
	d.Tolerances = &newton.Tolerances{Psi: 1e-10, N: 1.0, P: 1.0, CircuitScale: 1.0, Circuit: 1.0}

	d.FillInitial()
	norms, err := d.Step()
	require.NoError(t, err)
	require.NotNil(t, norms)

	metalOff, err := idx.Offset(metalReg, arena.Node(metalNode).LocalID, indexmap.Potential)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d.X.Get(metalOff), 1e-9)

	// The interface pins oxide node 0 to the metal potential; with no
	// source term in the oxide and an open (Neumann) far end, the whole
	// slab settles at the same potential.
	for i, id := range oxNodes {
		off, err := idx.Offset(oxideReg, arena.Node(id).LocalID, indexmap.Potential)
		require.NoError(t, err)
		assert.InDeltaf(t, 1.0, d.X.Get(off), 1e-9, "oxide node %d", i)
	}

	vacOff, err := idx.Offset(vacuumReg, arena.Node(vacuumNode).LocalID, indexmap.Potential)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d.X.Get(vacOff), 1e-9)
}
