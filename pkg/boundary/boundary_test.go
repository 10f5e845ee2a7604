package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/region"
)

// fakeCondition exercises only Preprocess; its own Assemble rows are
// irrelevant to the add-then-clear contract being tested.
type fakeCondition struct {
	src, dst, clear []int
}

func (f *fakeCondition) Name() string { return "fake" }
func (f *fakeCondition) Preprocess(lx *linalg.Vec) ([]int, []int, []int) {
	return f.src, f.dst, f.clear
}
func (f *fakeCondition) AssembleResidual(lx *linalg.Vec, r *linalg.Vec, mode region.InsertMode) error {
	return nil
}
func (f *fakeCondition) AssembleJacobian(lx *linalg.Vec, J *linalg.Mat, mode region.InsertMode) error {
	return nil
}
func (f *fakeCondition) IsSpiceElectrode() bool { return false }

var _ Condition = (*fakeCondition)(nil)

// spec.md §4.3: "The Driver then (a) adds each src row into the
// corresponding dst row... and (b) zeroes every clear row."
func TestApplyPreprocessAddsThenClears(t *testing.T) {
	lx := linalg.NewVec(3)
	r := linalg.NewVec(3)
	r.Set(1, 5.0) // src
	r.Set(2, 2.0) // dst

	J, err := linalg.NewMat(3)
	require.NoError(t, err)
	require.NoError(t, J.SetAdd(1, 1, 10.0))
	require.NoError(t, J.SetAdd(1, 2, 10.0)) // src entry that lands on dst's diagonal
	require.NoError(t, J.SetAdd(2, 2, 1.0))

	c := &fakeCondition{src: []int{1}, dst: []int{2}, clear: []int{1}}
	require.NoError(t, ApplyPreprocess(c, lx, r, J))

	assert.Equal(t, 0.0, r.Get(1))     // cleared
	assert.Equal(t, 7.0, r.Get(2))     // 2 + 5
	assert.Equal(t, 0.0, J.Diagonal(1)) // cleared
	assert.Equal(t, 11.0, J.Diagonal(2))
}

func TestOhmicElectrodePreprocessIsEmpty(t *testing.T) {
	o := NewOhmicElectrode("anode", nil, nil, 0, nil, 1.0)
	src, dst, clear := o.Preprocess(nil)
	assert.Nil(t, src)
	assert.Nil(t, dst)
	assert.Nil(t, clear)
	assert.False(t, o.IsSpiceElectrode())
}
