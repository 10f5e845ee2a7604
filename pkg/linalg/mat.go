package linalg

import (
	"fmt"

	"github.com/edp1096/sparse"
)

// Mat wraps a *sparse.Matrix (the teacher's existing MNA backend) behind
// the Mat contract spec.md §6 names: Zero, SetAdd, Assemble, AddRowToRow,
// ZeroRows, Diagonal, and an IgnoreZeroEntries option controlling whether
// a zero-valued insertion reserves nonzero structure.
type Mat struct {
	size     int
	backend  *sparse.Matrix
	ignore0  bool
	reserved bool // true once the BC nonzero pattern has been reserved
}

// NewMat allocates an n x n real matrix on the sparse backend.
func NewMat(n int) (*Mat, error) {
	cfg := &sparse.Configuration{
		Real:           true,
		Complex:        false,
		Expandable:     true,
		ModifiedNodal:  true,
		TiesMultiplier: 5,
		PrinterWidth:   140,
	}
	backend, err := sparse.Create(int64(n), cfg)
	if err != nil {
		return nil, fmt.Errorf("creating jacobian backend: %w", err)
	}
	return &Mat{size: n, backend: backend}, nil
}

func (m *Mat) Size() int { return m.size }

// Zero clears every stored entry (Mat.zero).
func (m *Mat) Zero() {
	m.backend.Clear()
}

// SetIgnoreZeroEntries controls whether SetAdd, once MarkReserved has been
// called, silently drops a zero-valued insertion instead of reserving
// fill-in for it
// (IGNORE_ZERO_ENTRIES option in spec.md §6).
func (m *Mat) SetIgnoreZeroEntries(ignore bool) { m.ignore0 = ignore }

// ReserveDone reports whether the first full assembly (which fixes the BC
// nonzero pattern) has already happened.
func (m *Mat) ReserveDone() bool { return m.reserved }

// MarkReserved is called by the Nonlinear Driver after the first Jacobian
// assembly. From then on SetAdd drops zero insertions only if
// SetIgnoreZeroEntries(true) has also been called; nothing in this module
// calls it, so zero insertions still reach the backend (spec.md §4.7 step 3:
// "on the first assembly, reserve the BC non-zero pattern first; after
// that forbid zero insertions").
func (m *Mat) MarkReserved() { m.reserved = true }

// SetAdd accumulates value into (row, col) (Mat.set-add / ADD mode).
func (m *Mat) SetAdd(row, col int, value float64) error {
	if row <= 0 || col <= 0 || row > m.size || col > m.size {
		return fmt.Errorf("matrix index out of bounds (row=%d, col=%d, size=%d)", row, col, m.size)
	}
	if value == 0 && m.ignore0 && m.reserved {
		return nil
	}
	m.backend.GetElement(int64(row), int64(col)).Real += value
	return nil
}

// Assemble is the collective flush; single-rank identity here.
func (m *Mat) Assemble() {}

// AddRowToRow implements the Boundary Assembler preprocess "add each src
// row into the corresponding dst row" contract (spec.md §4.3). It walks
// every column of src that the backend already knows about. Because the
// sparse backend only tracks entries that have been touched, this must
// run after the rows involved have been populated by earlier assembly.
func (m *Mat) AddRowToRow(src, dst int) error {
	if src <= 0 || src > m.size || dst <= 0 || dst > m.size {
		return fmt.Errorf("AddRowToRow index out of bounds (src=%d, dst=%d, size=%d)", src, dst, m.size)
	}
	for col := 1; col <= m.size; col++ {
		e := m.backend.GetElement(int64(src), int64(col))
		if e.Real == 0 {
			continue
		}
		if err := m.SetAdd(dst, col, e.Real); err != nil {
			return err
		}
	}
	return nil
}

// ZeroRows clears every entry of the named rows (Mat.zero-rows), the
// "clear_rows" half of a boundary condition's preprocess phase.
func (m *Mat) ZeroRows(rows []int) error {
	for _, row := range rows {
		if row <= 0 || row > m.size {
			return fmt.Errorf("ZeroRows index out of bounds (row=%d, size=%d)", row, m.size)
		}
		for col := 1; col <= m.size; col++ {
			e := m.backend.GetElement(int64(row), int64(col))
			e.Real = 0
		}
	}
	return nil
}

// Diagonal returns the current diagonal entry at row i, or 0 if untouched
// (Mat.diagonal).
func (m *Mat) Diagonal(i int) float64 {
	if i <= 0 || i > m.size {
		return 0
	}
	d := m.backend.Diags[i]
	if d == nil {
		return 0
	}
	return d.Real
}

// DiagonalScale multiplies every row of the matrix by scale[row]
// (used to apply row-scaling L to J: J <- diag(L)*J).
func (m *Mat) DiagonalScale(scale *Vec) {
	for row := 1; row <= m.size; row++ {
		s := scale.Get(row)
		if s == 1.0 {
			continue
		}
		for col := 1; col <= m.size; col++ {
			e := m.backend.GetElement(int64(row), int64(col))
			if e.Real != 0 {
				e.Real *= s
			}
		}
	}
}

// Factor runs LU factorization over the current nonzero pattern.
func (m *Mat) Factor() error {
	return m.backend.Factor()
}

// Solve solves Mat*x = rhs using the factored matrix, returning the
// solution vector (Mat/KSP.solve).
func (m *Mat) Solve(rhs *Vec) (*Vec, error) {
	if err := m.Factor(); err != nil {
		return nil, fmt.Errorf("linalg: factor failed: %w", err)
	}
	sol, err := m.backend.Solve(rhs.GetArray())
	if err != nil {
		return nil, fmt.Errorf("linalg: solve failed: %w", err)
	}
	out := NewVec(m.size)
	copy(out.data, sol)
	return out, nil
}

// Destroy releases backend resources.
func (m *Mat) Destroy() {
	if m.backend != nil {
		m.backend.Destroy()
	}
}
