/*
Copyright © 2025 the SCFermi authors.
This file is part of SCFermi.

SCFermi is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SCFermi is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SCFermi.  If not, see <http://www.gnu.org/licenses/>.
*/

package scfermi

import (
	"fmt"
	"math"
)

// Senses for MinMax.
const (
	Minimize = "min"
	Maximize = "max"
)

// MinMaxOptions configures a MinMax search.
type MinMaxOptions struct {
	// Chempots overrides the solver's chemical-potential limits for the
	// search region.
	Chempots *ChemPots
	// Tolerance is the relative change in the target below which the
	// search stops. 0 defaults to 0.01.
	Tolerance float64
	// NPoints is the number of grid points per axis per iteration. 0
	// defaults to 10.
	NPoints int
	// Temperature, AnnealingTemperature, QuenchedTemperature select
	// equilibrium or pseudo-equilibrium solving, as in ScanOptions.
	Temperature          float64
	AnnealingTemperature float64
	QuenchedTemperature  float64
	Processes            int
	Solve                SolveOptions
	// Progress, if non-nil, receives the optimal target value found in
	// each grid refinement, in order.
	Progress func(value float64)
}

// MinMax searches the chemical-potential space for the point that
// minimizes or maximizes a target quantity, by repeatedly solving on a
// hull-constrained grid and contracting the grid toward the best point.
// target is either a result column (e.g. "Electrons (cm^-3)" or
// "Fermi Level") or a defect species name, in which case its
// concentration column is optimized. The returned table holds the full
// solve at the optimal chemical potentials.
//
// The search has no iteration cap: if the target oscillates between grid
// refinements it will not terminate.
func (s *FermiSolver) MinMax(target, sense string, opts MinMaxOptions) (*Table, error) {
	if sense != Minimize && sense != Maximize {
		return nil, fmt.Errorf("scfermi: sense must be %q or %q, got %q", Minimize, Maximize, sense)
	}
	tolerance := opts.Tolerance
	if tolerance == 0 {
		tolerance = 0.01
	}
	nPoints := opts.NPoints
	if nPoints <= 0 {
		nPoints = 10
	}
	chempots := opts.Chempots
	if chempots == nil {
		chempots = s.chempots
	}
	scan := ScanOptions{
		Temperature:          opts.Temperature,
		AnnealingTemperature: opts.AnnealingTemperature,
		QuenchedTemperature:  opts.QuenchedTemperature,
		Processes:            opts.Processes,
		Solve:                opts.Solve,
	}
	if _, err := scan.pseudo(); err != nil {
		return nil, err
	}

	grid, err := NewChemicalPotentialGrid(chempots)
	if err != nil {
		return nil, err
	}
	// The contraction midpoints are always taken against the vertices of
	// the starting region, keeping the search inside its bounds.
	startVertices := grid.Vertices()
	elements := grid.Elements()

	var previous float64
	havePrevious := false
	for {
		sets, err := grid.Grid(nPoints)
		if err != nil {
			return nil, err
		}
		results, err := s.ScanChempots(sets, scan)
		if err != nil {
			return nil, err
		}

		current, optimum, err := locateOptimum(results, target, sense, elements)
		if err != nil {
			return nil, err
		}
		if opts.Progress != nil {
			opts.Progress(current)
		}
		best := results.Filter(func(r Row) bool {
			for _, el := range elements {
				if r.Values[el] != optimum[el] {
					return false
				}
			}
			return true
		})

		if havePrevious && math.Abs((current-previous)/previous) < tolerance {
			return best, nil
		}
		previous, havePrevious = current, true

		contracted := make([]map[string]float64, len(startVertices))
		for i, v := range startVertices {
			mid := make(map[string]float64, len(v))
			for _, el := range elements {
				mid[el] = (v[el] + optimum[el]) / 2
			}
			contracted[i] = mid
		}
		if grid, err = newGridFromVertices(contracted); err != nil {
			return nil, err
		}
	}
}

// locateOptimum finds the extremal value of the target in a scan result
// and the chemical potentials at which it occurs. A target matching a
// result column is optimized directly; otherwise it is treated as a
// defect name and its concentration is optimized.
func locateOptimum(results *Table, target, sense string, elements []string) (value float64, chempots map[string]float64, err error) {
	var bestRow *Row
	better := func(v, best float64) bool {
		if sense == Minimize {
			return v < best
		}
		return v > best
	}
	for i := range results.Rows() {
		r := &results.Rows()[i]
		var v float64
		if results.HasColumn(target) {
			v = r.Values[target]
		} else {
			if r.Defect != target {
				continue
			}
			v = r.Values[ColConcentration]
		}
		if bestRow == nil || better(v, value) {
			bestRow, value = r, v
		}
	}
	if bestRow == nil {
		return 0, nil, fmt.Errorf("scfermi: target %q matches no result column or defect species", target)
	}
	chempots = make(map[string]float64, len(elements))
	for _, el := range elements {
		chempots[el] = bestRow.Values[el]
	}
	return value, chempots, nil
}
