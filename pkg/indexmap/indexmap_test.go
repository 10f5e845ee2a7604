package indexmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotcad/mixsolve/pkg/mesh"
)

func buildArena(n int) (*mesh.Arena, mesh.RegionID) {
	arena := mesh.NewArena()
	reg := mesh.RegionID(0)
	for i := 0; i < n; i++ {
		arena.AddNode(reg, mesh.NodeData{})
	}
	return arena, reg
}

func TestOffsetIsStableAndContiguous(t *testing.T) {
	arena, reg := buildArena(3)
	kinds := map[mesh.RegionID][]VarKind{reg: {Potential, Electron, Hole}}
	m := New(arena, kinds)

	for local := 0; local < 3; local++ {
		psi, err := m.Offset(reg, local, Potential)
		require.NoError(t, err)
		n, err := m.Offset(reg, local, Electron)
		require.NoError(t, err)
		p, err := m.Offset(reg, local, Hole)
		require.NoError(t, err)

		assert.Equal(t, psi+1, n)
		assert.Equal(t, psi+2, p)
	}

	// Calling Offset again must return the same rows (stability).
	psiAgain, err := m.Offset(reg, 0, Potential)
	require.NoError(t, err)
	psiFirst, _ := m.Offset(reg, 0, Potential)
	assert.Equal(t, psiFirst, psiAgain)
}

func TestOffsetRejectsDisabledKind(t *testing.T) {
	arena, reg := buildArena(1)
	kinds := map[mesh.RegionID][]VarKind{reg: {Potential}}
	m := New(arena, kinds)

	_, err := m.Offset(reg, 0, Electron)
	assert.Error(t, err)
}

func TestCircuitNodesAppendAfterDeviceRows(t *testing.T) {
	arena, reg := buildArena(2)
	kinds := map[mesh.RegionID][]VarKind{reg: {Potential, Electron, Hole}}
	m := New(arena, kinds)

	deviceTotal := m.Total()
	row := m.AddCircuitNode(1)
	assert.Equal(t, deviceTotal+1, row)
	assert.Equal(t, deviceTotal+1, m.Total())

	solRow, err := m.CircuitOffset(1, Solution)
	require.NoError(t, err)
	resRow, err := m.CircuitOffset(1, Residual)
	require.NoError(t, err)
	assert.Equal(t, row, solRow)
	assert.Equal(t, row, resRow)

	_, err = m.CircuitOffset(99, Solution)
	assert.Error(t, err)
}
