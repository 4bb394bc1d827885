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

package scfermi_test

import (
	"math"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/materialsmodel/scfermi"
	"github.com/materialsmodel/scfermi/dos"
	"github.com/materialsmodel/scfermi/thermo"
)

// testDOS builds a gapped model DOS: flat valence and conduction bands of
// 10 states/eV separated by a 1 eV gap, with the VBM at 0 eV.
func testDOS(t *testing.T) *dos.FermiDos {
	t.Helper()
	n := 31
	energies := make([]float64, n)
	densities := make([]float64, n)
	for i := 0; i < n; i++ {
		energies[i] = float64(i-10) / 10
		if i <= 10 || i >= 20 {
			densities[i] = 10
		}
	}
	d, err := dos.New(energies, [][]float64{densities}, 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func testChemPots(t *testing.T) *scfermi.ChemPots {
	t.Helper()
	c, err := scfermi.ParseChemPots(map[string]map[string]float64{
		"A-rich": {"A": 0, "B": -2, "C": -1},
		"B-rich": {"A": -2, "B": 0, "C": -1},
		"C-rich": {"A": -1.5, "B": -1.5, "C": 0},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// testThermo builds a model defect system with a donor vacancy (two
// charge states) and an acceptor interstitial.
func testThermo(t *testing.T, chempots *scfermi.ChemPots) *thermo.DefectThermodynamics {
	t.Helper()
	entries := []*thermo.DefectEntry{
		{
			Name: "v_A_1", Charge: 1, Energy: 0.8,
			Composition:       map[string]float64{"A": -1},
			DegeneracyFactors: map[string]float64{"spin": 1},
			Multiplicity:      1,
		},
		{
			Name: "v_A_0", Charge: 0, Energy: 1.1,
			Composition:       map[string]float64{"A": -1},
			DegeneracyFactors: map[string]float64{"spin": 1},
			Multiplicity:      1,
		},
		{
			Name: "i_B_-1", Charge: -1, Energy: 0.8,
			Composition:       map[string]float64{"B": 1},
			DegeneracyFactors: map[string]float64{"spin": 2},
			Multiplicity:      1,
		},
	}
	th, err := thermo.New(entries, 0, 1, 100, chempots)
	if err != nil {
		t.Fatal(err)
	}
	return th
}

func testSolver(t *testing.T) *scfermi.FermiSolver {
	t.Helper()
	chempots := testChemPots(t)
	s, err := scfermi.New(testThermo(t, chempots), testDOS(t), scfermi.Options{Backend: scfermi.NativeBackend})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewRequiresChempots(t *testing.T) {
	th, err := thermo.New([]*thermo.DefectEntry{{
		Name: "v_A_0", Energy: 1, Multiplicity: 1,
		DegeneracyFactors: map[string]float64{"spin": 1},
	}}, 0, 1, 100, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := scfermi.New(th, testDOS(t), scfermi.Options{}); err == nil {
		t.Error("expected error when no chemical potentials are available")
	}
}

func TestUnavailableBackend(t *testing.T) {
	// The sc-fermi backend package is not imported by these tests, so
	// requesting it explicitly must fail and name what is available.
	chempots := testChemPots(t)
	_, err := scfermi.New(testThermo(t, chempots), testDOS(t),
		scfermi.Options{Backend: scfermi.ScFermiBackend})
	if err == nil {
		t.Fatal("expected error for unavailable backend")
	}
	if !strings.Contains(err.Error(), scfermi.NativeBackend) {
		t.Errorf("error should name the available backend: %v", err)
	}
}

func TestDefaultBackendFallsBackToNative(t *testing.T) {
	chempots := testChemPots(t)
	s, err := scfermi.New(testThermo(t, chempots), testDOS(t), scfermi.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s.BackendName() != scfermi.NativeBackend {
		t.Errorf("backend: have %q, want %q", s.BackendName(), scfermi.NativeBackend)
	}
}

func TestRequireBackend(t *testing.T) {
	s := testSolver(t)
	if err := s.RequireBackend(scfermi.NativeBackend); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := s.RequireBackend(scfermi.ScFermiBackend)
	if err == nil {
		t.Fatal("expected backend mismatch error")
	}
	if !strings.Contains(err.Error(), scfermi.ScFermiBackend) || !strings.Contains(err.Error(), scfermi.NativeBackend) {
		t.Errorf("error should name both backends: %v", err)
	}
}

func TestEquilibriumSolve(t *testing.T) {
	s := testSolver(t)
	set, err := s.Chempots().Limit("A-rich")
	if err != nil {
		t.Fatal(err)
	}
	table, err := s.EquilibriumSolve(set, 300, scfermi.SolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 2 {
		t.Fatalf("rows: have %d, want one per species (2)", table.Len())
	}
	for _, col := range []string{scfermi.ColFermiLevel, scfermi.ColElectrons,
		scfermi.ColHoles, scfermi.ColTemperature, scfermi.ColConcentration} {
		if !table.HasColumn(col) {
			t.Errorf("missing column %q", col)
		}
	}
	ef, err := table.Value("v_A", scfermi.ColFermiLevel)
	if err != nil {
		t.Fatal(err)
	}
	if ef <= -1 || ef >= 2 {
		t.Errorf("Fermi level %g outside the DOS range", ef)
	}
	for _, r := range table.Rows() {
		if c := r.Values[scfermi.ColConcentration]; c <= 0 {
			t.Errorf("%s: non-positive concentration %g", r.Defect, c)
		}
	}
}

func TestEquilibriumSolveDopant(t *testing.T) {
	const dopant = 1e18
	s := testSolver(t)
	set, err := s.Chempots().Limit("A-rich")
	if err != nil {
		t.Fatal(err)
	}
	table, err := s.EquilibriumSolve(set, 300,
		scfermi.SolveOptions{EffectiveDopantConcentration: dopant})
	if err != nil {
		t.Fatal(err)
	}
	c, err := table.Value("Dopant", scfermi.ColConcentration)
	if err != nil {
		t.Fatal(err)
	}
	if c != dopant {
		t.Errorf("dopant row concentration: have %g, want %g", c, dopant)
	}
	if !table.HasColumn(scfermi.ColDopant) {
		t.Error("missing dopant column")
	}
}

// An acceptor dopant enters charge neutrality with a negative sign, but
// the reported dopant concentrations are magnitudes on every backend.
func TestAcceptorDopantColumnIsMagnitude(t *testing.T) {
	const dopant = -1e18
	s := testSolver(t)
	set, err := s.Chempots().Limit("A-rich")
	if err != nil {
		t.Fatal(err)
	}
	eq, err := s.EquilibriumSolve(set, 300,
		scfermi.SolveOptions{EffectiveDopantConcentration: dopant})
	if err != nil {
		t.Fatal(err)
	}
	pseudo, err := s.PseudoEquilibriumSolve(set, 900, 300,
		scfermi.SolveOptions{EffectiveDopantConcentration: dopant})
	if err != nil {
		t.Fatal(err)
	}
	for _, table := range []*scfermi.Table{eq, pseudo} {
		col, ok := table.Column(scfermi.ColDopant)
		if !ok {
			t.Fatal("missing dopant column")
		}
		for i, v := range col {
			if v != -dopant {
				t.Errorf("row %d dopant column: have %g, want %g", i, v, -dopant)
			}
		}
	}
	c, err := eq.Value("Dopant", scfermi.ColConcentration)
	if err != nil {
		t.Fatal(err)
	}
	if c != -dopant {
		t.Errorf("dopant row concentration: have %g, want %g", c, -dopant)
	}
}

func TestPseudoEquilibriumConservation(t *testing.T) {
	const relTol = 1e-9
	chempots := testChemPots(t)
	th := testThermo(t, chempots)
	s, err := scfermi.New(th, testDOS(t), scfermi.Options{Backend: scfermi.NativeBackend})
	if err != nil {
		t.Fatal(err)
	}
	set, err := chempots.Limit("A-rich")
	if err != nil {
		t.Fatal(err)
	}

	table, err := s.PseudoEquilibriumSolve(set, 900, 300, scfermi.SolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, col := range []string{scfermi.ColCharge, scfermi.ColChargeStatePopulation,
		scfermi.ColFormationEnergy, scfermi.ColTotalConcentration} {
		if table.HasColumn(col) {
			t.Errorf("column %q should be stripped from pseudo-equilibrium output", col)
		}
	}

	// Frozen species totals must equal the annealing-temperature
	// equilibrium totals.
	efA, _, _, err := th.EquilibriumFermiLevel(testDOS(t), set, 900, 0)
	if err != nil {
		t.Fatal(err)
	}
	annealed, err := th.EquilibriumConcentrations(set, efA, 900)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range annealed.Rows() {
		want := r.Values[scfermi.ColConcentration]
		have, err := table.Value(r.Defect, scfermi.ColConcentration)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(have-want) > relTol*want {
			t.Errorf("%s: quenched total %g != annealing total %g", r.Defect, have, want)
		}
	}
}

func TestScanTemperature(t *testing.T) {
	s := testSolver(t)
	table, err := s.ScanTemperature(scfermi.TemperatureRanges{
		Temperatures: []float64{300, 600},
	}, scfermi.ScanOptions{Limit: "A-rich"})
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 4 {
		t.Fatalf("rows: have %d, want 4 (2 species × 2 temperatures)", table.Len())
	}
	temps, _ := table.Column(scfermi.ColTemperature)
	want := []float64{300, 300, 600, 600}
	for i, v := range temps {
		if v != want[i] {
			t.Errorf("row %d temperature: have %g, want %g", i, v, want[i])
		}
	}
}

// A scan given neither a limit nor an explicit chemical-potential set
// falls back to the alphabetically first limit, but the choice is
// surfaced when more than one limit is stored.
func TestScanDefaultLimitWarns(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	s := testSolver(t)
	if _, err := s.ScanTemperature(scfermi.TemperatureRanges{
		Temperatures: []float64{300},
	}, scfermi.ScanOptions{}); err != nil {
		t.Fatal(err)
	}
	var warned bool
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, "defaulting to the alphabetically first") {
			warned = true
			if have := e.Data["limit"]; have != "A-rich" {
				t.Errorf("defaulted limit: have %v, want A-rich", have)
			}
		}
	}
	if !warned {
		t.Error("expected a warning about the defaulted chemical-potential limit")
	}
}

func TestScanTemperatureBothOrNeither(t *testing.T) {
	s := testSolver(t)
	_, err := s.ScanTemperature(scfermi.TemperatureRanges{
		Annealing: []float64{900},
	}, scfermi.ScanOptions{Limit: "A-rich"})
	if err == nil {
		t.Error("expected error when only the annealing range is given")
	}
}

func TestScanTemperaturePseudo(t *testing.T) {
	s := testSolver(t)
	table, err := s.ScanTemperature(scfermi.TemperatureRanges{
		Annealing: []float64{800, 900},
		Quenched:  []float64{300},
	}, scfermi.ScanOptions{Limit: "A-rich"})
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 4 {
		t.Fatalf("rows: have %d, want 4 (2 species × 2 combinations)", table.Len())
	}
	if !table.HasColumn(scfermi.ColAnnealingTemperature) || !table.HasColumn(scfermi.ColQuenchedTemperature) {
		t.Error("missing annealing/quenched temperature columns")
	}
}

func TestInterpolateChempots(t *testing.T) {
	s := testSolver(t)
	table, err := s.InterpolateChempots(3, scfermi.ChempotEndpoints{
		StartLimit: "A-rich",
		EndLimit:   "B-rich",
	}, scfermi.ScanOptions{Temperature: 300})
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 6 {
		t.Fatalf("rows: have %d, want 6 (2 species × 3 points)", table.Len())
	}
	muA, _ := table.Column("A")
	muB, _ := table.Column("B")
	// Endpoints and exact midpoint.
	if muA[0] != 0 || muB[0] != -2 {
		t.Errorf("start point: A=%g B=%g, want A=0 B=-2", muA[0], muB[0])
	}
	if muA[2] != -1 || muB[2] != -1 {
		t.Errorf("midpoint: A=%g B=%g, want A=-1 B=-1", muA[2], muB[2])
	}
	if muA[4] != -2 || muB[4] != 0 {
		t.Errorf("end point: A=%g B=%g, want A=-2 B=0", muA[4], muB[4])
	}
}

func TestScanDopantConcentration(t *testing.T) {
	s := testSolver(t)
	table, err := s.ScanDopantConcentration([]float64{-1e18, 1e18},
		scfermi.ScanOptions{Limit: "A-rich", Temperature: 300})
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 6 {
		t.Fatalf("rows: have %d, want 6 (2 species + dopant row, × 2)", table.Len())
	}
	dopants, _ := table.Column(scfermi.ColDopant)
	for i, v := range dopants {
		if v != 1e18 {
			t.Errorf("row %d dopant column: have %g, want 1e18 (magnitude)", i, v)
		}
	}
	// Acceptor doping must lower the Fermi level relative to donor doping.
	efAcceptor := table.Rows()[0].Values[scfermi.ColFermiLevel]
	efDonor := table.Rows()[3].Values[scfermi.ColFermiLevel]
	if efAcceptor >= efDonor {
		t.Errorf("acceptor Fermi level %g should be below donor Fermi level %g", efAcceptor, efDonor)
	}
}

func TestScanChemicalPotentialGrid(t *testing.T) {
	s := testSolver(t)
	table, err := s.ScanChemicalPotentialGrid(4, scfermi.ScanOptions{Temperature: 300})
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() == 0 {
		t.Fatal("grid scan produced no rows")
	}
	for _, el := range []string{"A", "B", "C"} {
		if !table.HasColumn(el) {
			t.Errorf("missing chemical-potential column %q", el)
		}
	}
	muA, _ := table.Column("A")
	for i, v := range muA {
		if v < -2 || v > 0 {
			t.Errorf("row %d: A = %g outside the limit range [-2, 0]", i, v)
		}
	}
}

func TestScanProcesses(t *testing.T) {
	s := testSolver(t)
	serial, err := s.ScanTemperature(scfermi.TemperatureRanges{
		Temperatures: []float64{300, 400, 500, 600},
	}, scfermi.ScanOptions{Limit: "A-rich"})
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := s.ScanTemperature(scfermi.TemperatureRanges{
		Temperatures: []float64{300, 400, 500, 600},
	}, scfermi.ScanOptions{Limit: "A-rich", Processes: 4})
	if err != nil {
		t.Fatal(err)
	}
	if serial.Len() != parallel.Len() {
		t.Fatalf("row counts differ: %d != %d", serial.Len(), parallel.Len())
	}
	for i, r := range serial.Rows() {
		p := parallel.Rows()[i]
		if r.Defect != p.Defect || r.Values[scfermi.ColTemperature] != p.Values[scfermi.ColTemperature] {
			t.Errorf("row %d differs between serial and parallel scans", i)
		}
	}
}

func TestMinMax(t *testing.T) {
	s := testSolver(t)
	best, err := s.MinMax(scfermi.ColElectrons, scfermi.Maximize, scfermi.MinMaxOptions{
		Temperature: 300,
		NPoints:     5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if best.Len() == 0 {
		t.Fatal("minmax returned no rows")
	}
	for _, el := range []string{"A", "B", "C"} {
		if !best.HasColumn(el) {
			t.Errorf("missing chemical-potential column %q", el)
		}
	}

	// The optimum must not be worse than the best limit vertex.
	vertexBest := 0.
	for _, limit := range []string{"A-rich", "B-rich", "C-rich"} {
		set, err := s.Chempots().Limit(limit)
		if err != nil {
			t.Fatal(err)
		}
		table, err := s.EquilibriumSolve(set, 300, scfermi.SolveOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if v := table.Rows()[0].Values[scfermi.ColElectrons]; v > vertexBest {
			vertexBest = v
		}
	}
	have := best.Rows()[0].Values[scfermi.ColElectrons]
	if have < 0.5*vertexBest {
		t.Errorf("optimized electron concentration %g well below best vertex %g", have, vertexBest)
	}
}

// Each grid refinement must not worsen the optimum it reports. Electron
// concentration increases strictly as both mu_A and mu_B decrease (the
// donor forms more readily, the acceptor less), so over a square region
// the optimum sits at its (-2, -2) corner, a vertex that every
// contraction retains.
func TestMinMaxMonotonicImprovement(t *testing.T) {
	s := testSolver(t)
	region, err := scfermi.ParseChemPots(map[string]map[string]float64{
		"corner-00": {"A": 0, "B": 0, "C": 0},
		"corner-A":  {"A": -2, "B": 0, "C": 0},
		"corner-B":  {"A": 0, "B": -2, "C": 0},
		"corner-AB": {"A": -2, "B": -2, "C": 0},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	var optima []float64
	_, err = s.MinMax(scfermi.ColElectrons, scfermi.Maximize, scfermi.MinMaxOptions{
		Chempots:    region,
		Temperature: 300,
		NPoints:     5,
		Progress:    func(v float64) { optima = append(optima, v) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(optima) < 2 {
		t.Fatalf("search terminated after %d refinements, want at least 2", len(optima))
	}
	for i := 1; i < len(optima); i++ {
		if optima[i] < optima[i-1] {
			t.Errorf("refinement %d worsened the optimum: %g after %g", i, optima[i], optima[i-1])
		}
	}
}

func TestMinMaxBadSense(t *testing.T) {
	s := testSolver(t)
	if _, err := s.MinMax(scfermi.ColElectrons, "avg", scfermi.MinMaxOptions{Temperature: 300}); err == nil {
		t.Error("expected error for unrecognised sense")
	}
}
