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
	"sync"
)

// ScanOptions holds the parameters shared by the scan operations.
type ScanOptions struct {
	// Chempots is an explicit formal chemical-potential set. When nil,
	// Limit selects one of the stored limits; with neither given, a
	// single stored limit is used, or the alphabetically first one.
	Chempots map[string]float64
	// Limit is a limit label, or "X-rich"/"X-poor" for an element X.
	Limit string
	// Temperature [K] for equilibrium scans. 0 defaults to 300 K.
	Temperature float64
	// AnnealingTemperature and QuenchedTemperature [K] switch the scan
	// to pseudo-equilibrium solving. Both or neither must be set.
	AnnealingTemperature float64
	QuenchedTemperature  float64
	// Processes is the number of concurrent solves. Values below 2 give
	// serial execution.
	Processes int
	// Solve carries the per-solve options (dopant, frozen-defect
	// controls).
	Solve SolveOptions
}

// DefaultScanTemperature is used when an equilibrium scan does not
// specify a temperature.
const DefaultScanTemperature = 300

// pseudo reports whether the scalar temperatures of opts select
// pseudo-equilibrium solving, failing when only one of the two
// temperatures is given.
func (o *ScanOptions) pseudo() (bool, error) {
	anneal := o.AnnealingTemperature != 0
	quench := o.QuenchedTemperature != 0
	if anneal != quench {
		return false, fmt.Errorf("scfermi: you must specify both annealing and quenching temperature, or just temperature")
	}
	return anneal, nil
}

func (o *ScanOptions) temperature() float64 {
	if o.Temperature == 0 {
		return DefaultScanTemperature
	}
	return o.Temperature
}

// TemperatureRanges specifies the temperatures of a temperature scan:
// either Temperatures alone for equilibrium solving, or both Annealing
// and Quenched for pseudo-equilibrium solving.
type TemperatureRanges struct {
	Temperatures []float64
	Annealing    []float64
	Quenched     []float64
}

// ChempotEndpoints names or specifies the two chemical-potential sets to
// interpolate between: either both Start and End, or both StartLimit and
// EndLimit.
type ChempotEndpoints struct {
	Start, End           map[string]float64
	StartLimit, EndLimit string
}

// parallelMap runs f for every index in [0, n) across opts.Processes
// goroutines, each worker striding through the index space, and returns
// the results in input order.
func parallelMap(n, processes int, f func(i int) (*Table, error)) ([]*Table, error) {
	results := make([]*Table, n)
	if processes < 2 {
		for i := 0; i < n; i++ {
			t, err := f(i)
			if err != nil {
				return nil, err
			}
			results[i] = t
		}
		return results, nil
	}
	errs := make([]error, n)
	var wg sync.WaitGroup
	for proc := 0; proc < processes; proc++ {
		wg.Add(1)
		go func(proc int) {
			defer wg.Done()
			for i := proc; i < n; i += processes {
				results[i], errs[i] = f(i)
			}
		}(proc)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// concatTables merges solve results into one table, preserving input
// order.
func concatTables(tables []*Table) *Table {
	if len(tables) == 0 {
		return NewTable()
	}
	out := tables[0]
	out.Concat(tables[1:]...)
	return out
}

// appendChempotColumns records the formal chemical potentials of a solve
// as one column per element.
func appendChempotColumns(t *Table, set map[string]float64) {
	for _, el := range sortedKeys(set) {
		t.SetColumn(el, set[el])
	}
}

// solveAndAppendChempots runs one equilibrium solve and attaches the
// chemical potentials as columns.
func (s *FermiSolver) solveAndAppendChempots(set map[string]float64, temperature float64, solve SolveOptions) (*Table, error) {
	t, err := s.EquilibriumSolve(set, temperature, solve)
	if err != nil {
		return nil, err
	}
	appendChempotColumns(t, set)
	return t, nil
}

// solveAndAppendChempotsPseudo is the pseudo-equilibrium counterpart of
// solveAndAppendChempots.
func (s *FermiSolver) solveAndAppendChempotsPseudo(set map[string]float64, annealingTemperature, quenchedTemperature float64, solve SolveOptions) (*Table, error) {
	t, err := s.PseudoEquilibriumSolve(set, annealingTemperature, quenchedTemperature, solve)
	if err != nil {
		return nil, err
	}
	appendChempotColumns(t, set)
	return t, nil
}

// ScanTemperature solves for defect and carrier concentrations over a
// range of temperatures at one chemical-potential set. With both
// Annealing and Quenched ranges given, every annealing/quenching
// combination is solved under the frozen-defect approximation instead.
func (s *FermiSolver) ScanTemperature(ranges TemperatureRanges, opts ScanOptions) (*Table, error) {
	set, err := s.resolveChempots(opts.Chempots, opts.Limit)
	if err != nil {
		return nil, err
	}

	switch {
	case len(ranges.Annealing) > 0 && len(ranges.Quenched) > 0:
		type pair struct{ quench, anneal float64 }
		var jobs []pair
		for _, q := range ranges.Quenched {
			for _, a := range ranges.Annealing {
				jobs = append(jobs, pair{quench: q, anneal: a})
			}
		}
		tables, err := parallelMap(len(jobs), opts.Processes, func(i int) (*Table, error) {
			return s.solveAndAppendChempotsPseudo(set, jobs[i].anneal, jobs[i].quench, opts.Solve)
		})
		if err != nil {
			return nil, err
		}
		return concatTables(tables), nil

	case len(ranges.Annealing) == 0 && len(ranges.Quenched) == 0:
		if len(ranges.Temperatures) == 0 {
			return nil, fmt.Errorf("scfermi: temperature scan requires at least one temperature")
		}
		tables, err := parallelMap(len(ranges.Temperatures), opts.Processes, func(i int) (*Table, error) {
			return s.solveAndAppendChempots(set, ranges.Temperatures[i], opts.Solve)
		})
		if err != nil {
			return nil, err
		}
		return concatTables(tables), nil

	default:
		return nil, fmt.Errorf("scfermi: you must specify both annealing and quenching temperature, or just temperature")
	}
}

// ScanChempots solves for defect and carrier concentrations at each of a
// list of formal chemical-potential sets, at the single temperature (or
// annealing/quenching pair) of opts.
func (s *FermiSolver) ScanChempots(sets []map[string]float64, opts ScanOptions) (*Table, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("scfermi: chemical-potential scan requires at least one set")
	}
	solveAt, err := s.scanSolver(opts)
	if err != nil {
		return nil, err
	}
	tables, err := parallelMap(len(sets), opts.Processes, func(i int) (*Table, error) {
		return solveAt(sets[i], opts.Solve)
	})
	if err != nil {
		return nil, err
	}
	return concatTables(tables), nil
}

// scanSolver returns the per-point solve function implied by the scalar
// temperatures of opts.
func (s *FermiSolver) scanSolver(opts ScanOptions) (func(set map[string]float64, solve SolveOptions) (*Table, error), error) {
	pseudo, err := opts.pseudo()
	if err != nil {
		return nil, err
	}
	if pseudo {
		return func(set map[string]float64, solve SolveOptions) (*Table, error) {
			return s.solveAndAppendChempotsPseudo(set, opts.AnnealingTemperature, opts.QuenchedTemperature, solve)
		}, nil
	}
	return func(set map[string]float64, solve SolveOptions) (*Table, error) {
		return s.solveAndAppendChempots(set, opts.temperature(), solve)
	}, nil
}

// ScanDopantConcentration solves for defect and carrier concentrations
// over a range of effective dopant concentrations [cm^-3, signed] at one
// chemical-potential set.
func (s *FermiSolver) ScanDopantConcentration(dopants []float64, opts ScanOptions) (*Table, error) {
	if len(dopants) == 0 {
		return nil, fmt.Errorf("scfermi: dopant scan requires at least one concentration")
	}
	set, err := s.resolveChempots(opts.Chempots, opts.Limit)
	if err != nil {
		return nil, err
	}
	solveAt, err := s.scanSolver(opts)
	if err != nil {
		return nil, err
	}
	tables, err := parallelMap(len(dopants), opts.Processes, func(i int) (*Table, error) {
		solve := opts.Solve
		solve.EffectiveDopantConcentration = dopants[i]
		t, err := solveAt(set, solve)
		if err != nil {
			return nil, err
		}
		t.SetColumn(ColDopant, math.Abs(dopants[i]))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return concatTables(tables), nil
}

// InterpolateChempots generates nPoints chemical-potential sets linearly
// interpolated between two endpoints (inclusive) and solves at each.
func (s *FermiSolver) InterpolateChempots(nPoints int, endpoints ChempotEndpoints, opts ScanOptions) (*Table, error) {
	if nPoints < 2 {
		return nil, fmt.Errorf("scfermi: interpolation requires at least 2 points, got %d", nPoints)
	}
	start, end := endpoints.Start, endpoints.End
	if start == nil || end == nil {
		if endpoints.StartLimit == "" || endpoints.EndLimit == "" {
			return nil, fmt.Errorf("scfermi: interpolation requires two chemical-potential sets or two limit labels")
		}
		var err error
		if start, err = s.chempots.Limit(endpoints.StartLimit); err != nil {
			return nil, err
		}
		if end, err = s.chempots.Limit(endpoints.EndLimit); err != nil {
			return nil, err
		}
	}
	sets := interpolateChempots(start, end, nPoints)
	return s.ScanChempots(sets, opts)
}

// interpolateChempots returns nPoints sets on the straight line from
// start to end, endpoints included.
func interpolateChempots(start, end map[string]float64, nPoints int) []map[string]float64 {
	sets := make([]map[string]float64, nPoints)
	for i := 0; i < nPoints; i++ {
		frac := float64(i) / float64(nPoints-1)
		set := make(map[string]float64, len(start))
		for el, mu := range start {
			set[el] = mu + (end[el]-mu)*frac
		}
		sets[i] = set
	}
	return sets
}

// ScanChemicalPotentialGrid solves for defect and carrier concentrations
// at every point of a convex-hull-constrained grid spanning the stored
// chemical-potential limits, with nPoints points along each independent
// axis (0 defaults to 10).
func (s *FermiSolver) ScanChemicalPotentialGrid(nPoints int, opts ScanOptions) (*Table, error) {
	if nPoints <= 0 {
		nPoints = 10
	}
	grid, err := NewChemicalPotentialGrid(s.chempots)
	if err != nil {
		return nil, err
	}
	sets, err := grid.Grid(nPoints)
	if err != nil {
		return nil, err
	}
	return s.ScanChempots(sets, opts)
}
