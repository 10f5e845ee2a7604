package boundary_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotcad/mixsolve/pkg/boundary"
	"github.com/gotcad/mixsolve/pkg/circuitbridge"
	"github.com/gotcad/mixsolve/pkg/damping"
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/netlist"
	"github.com/gotcad/mixsolve/pkg/newton"
	"github.com/gotcad/mixsolve/pkg/physics"
	"github.com/gotcad/mixsolve/pkg/region"
	"github.com/gotcad/mixsolve/pkg/solverctx"
)

// spec.md §8 scenario 4 ("mixed-mode latch"): a device contact tied
// through a SpiceElectrode to a SPICE node fed by a source through a
// series load resistor, solved end-to-end by the Nonlinear Driver. This
// is the coupling the OhmicElectrode-only wiring can't exercise: without
// a SpiceElectrode the circuit block is just an uncoupled diagonal block
// sharing the unified matrix.
func TestSpiceElectrodeCouplesDeviceContactToCircuitNode(t *testing.T) {
	arena := mesh.NewArena()
	reg := mesh.RegionID(0)
	const n = 5
	nodes := make([]mesh.NodeID, n)
	for i := 0; i < n; i++ {
		id := arena.AddNode(reg, mesh.NodeData{Doping: 1e16, Coord: [3]float64{float64(i) * 1e-4, 0, 0}})
		arena.SetVolume(id, 1e-12)
		nodes[i] = id
	}
	for i := 0; i < n-1; i++ {
		arena.Connect(nodes[i], nodes[i+1], 1e-8)
	}

	idx := indexmap.New(arena, map[mesh.RegionID][]indexmap.VarKind{reg: {indexmap.Potential, indexmap.Electron, indexmap.Hole}})
	sem := region.NewSemiconductor(arena, idx, reg, solverctx.AdvancedModel{}, physics.DefaultSilicon())
	anode := boundary.NewOhmicElectrode("anode", arena, idx, reg, []mesh.NodeID{nodes[0]}, 0.0)

	parsed, err := netlist.Parse("mixed-mode latch\nVs 1 0 DC 1.0\nR1 1 2 1000\n")
	require.NoError(t, err)
	bridge, err := circuitbridge.New(parsed.Title, parsed.Elements, parsed.Models, idx)
	require.NoError(t, err)

	cktNode, ok := bridge.NodeIndex("2")
	require.True(t, ok)
	spiceElectrode := boundary.NewSpiceElectrode("cathode", arena, idx, reg, []mesh.NodeID{nodes[n-1]}, bridge, cktNode)

	var cktNodes []int
	for i := 1; i <= bridge.Underlying().GetNumNodes()+len(bridge.Underlying().GetBranchMap()); i++ {
		cktNodes = append(cktNodes, i)
	}
	dampTable := damping.BuildTable(arena, idx, []mesh.RegionID{reg}, false, false, false, solverctx.New().TExternal, bridge, cktNodes)

	d, err := newton.New(idx.Total(), solverctx.New())
	require.NoError(t, err)
	d.Regions = []region.Assembler{sem}
	d.BCs = []boundary.Condition{anode, spiceElectrode}
	d.Bridge = bridge
	d.DampTable = dampTable
	d.Damping = &damping.PotentialDamping{Table: dampTable}
	d.MaxIter = 30
	d.Tolerances = &newton.Tolerances{Psi: 1e-8, N: 1e-6, P: 1e-6, CircuitScale: 1.0, Circuit: 1e-6}

	d.FillInitial()
	norms, err := d.Step()
	require.NoError(t, err)
	require.NotNil(t, norms)

	// The contact's potential row was overridden into a Dirichlet
	// constraint pinning it to the circuit node's voltage: they must
	// match at the converged iterate.
	cathodeNode := arena.Node(nodes[n-1])
	psiOff, err := idx.Offset(reg, cathodeNode.LocalID, indexmap.Potential)
	require.NoError(t, err)
	vRow, err := bridge.ArrayOffsetX(cktNode)
	require.NoError(t, err)
	assert.InDelta(t, d.X.Get(vRow), d.X.Get(psiOff), 1e-9)

	// A loaded circuit: current drawn through R1 drops node 2 below the
	// 1V source, proving the device terminal is actually sinking current
	// into the circuit rather than the circuit floating independently.
	assert.Less(t, d.X.Get(vRow), 1.0)
}
