// Package plot renders the optional diagnostic plots spec.md §8's
// testable properties are easiest to eyeball from: a DC-sweep I-V curve
// or a transient waveform. Nothing in the Nonlinear Driver or Mode
// Controller depends on this package; cmd/mixsolve calls it only when
// -plot is set.
package plot

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// IVCurve renders a swept-voltage result set against its corresponding
// current samples (nil currents falls back to plotting the sweep
// voltages against their own index, useful for a quick sanity plot when
// the caller only tracked the swept quantity).
func IVCurve(path string, voltages, currents []float64) error {
	p := plot.New()
	p.Title.Text = "DC sweep"
	p.X.Label.Text = "V"
	p.Y.Label.Text = "I"

	pts := make(plotter.XYs, len(voltages))
	for i, v := range voltages {
		pts[i].X = v
		if currents != nil && i < len(currents) {
			pts[i].Y = currents[i]
		} else {
			pts[i].Y = float64(i)
		}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("plot.IVCurve: new line: %w", err)
	}
	p.Add(line)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("plot.IVCurve: save %s: %w", path, err)
	}
	return nil
}

// Waveform renders a transient trace (time on X, a single tracked state
// row on Y), the counterpart diagnostic for mode.TransientAnalysis runs.
func Waveform(path string, times, values []float64, label string) error {
	p := plot.New()
	p.Title.Text = label
	p.X.Label.Text = "t"
	p.Y.Label.Text = label

	n := len(times)
	if len(values) < n {
		n = len(values)
	}
	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		pts[i].X = times[i]
		pts[i].Y = values[i]
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("plot.Waveform: new line: %w", err)
	}
	p.Add(line)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("plot.Waveform: save %s: %w", path, err)
	}
	return nil
}
