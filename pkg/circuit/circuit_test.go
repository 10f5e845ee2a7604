package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotcad/mixsolve/pkg/netlist"
)

// SolveOperatingPoint is the standalone path a netlist-only run takes:
// no circuitbridge, no unified Newton system, just the circuit's own
// matrix.Factor/Solve. A resistor divider has a closed-form answer,
// which pins down that Stamp/LoadGmin/Solve/Solution actually wire
// together correctly end to end.
func TestSolveOperatingPointResistorDivider(t *testing.T) {
	parsed, err := netlist.Parse("divider\nVs 1 0 DC 10\nR1 1 2 1000\nR2 2 0 1000\n")
	require.NoError(t, err)

	c := New(parsed.Title)
	c.SetModels(parsed.Models)
	require.NoError(t, c.AssignNodeBranchMaps(parsed.Elements))
	c.CreateMatrix()
	require.NoError(t, c.SetupDevices(parsed.Elements))

	require.NoError(t, c.SolveOperatingPoint(5, 1e-12))

	sol := c.GetSolution()
	assert.InDelta(t, 10.0, sol["V(1)"], 1e-6)
	assert.InDelta(t, 5.0, sol["V(2)"], 1e-6)
}
