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

// Package thermo implements the defect-thermodynamics oracle consumed by
// the solver: dilute-limit defect concentrations from formation energies
// and degeneracies, and equilibrium or quenched charge-neutrality solving
// against a bulk density of states.
package thermo

import (
	"fmt"
	"math"
	"sort"

	"github.com/materialsmodel/scfermi"
	"github.com/materialsmodel/scfermi/dos"
)

// DefectEntry is one defect charge state with its energetics.
type DefectEntry struct {
	// Name is "<label>_<charge>".
	Name string
	// Charge in units of the elementary charge.
	Charge int
	// Energy is the formation energy [eV] at a Fermi level at the VBM
	// and all absolute chemical potentials zero.
	Energy float64
	// Composition maps element → atoms added (positive) or removed
	// (negative) from the host when the defect forms.
	Composition map[string]float64
	// DegeneracyFactors are independent degeneracy contributions; their
	// product multiplies the concentration.
	DegeneracyFactors map[string]float64
	// Multiplicity is the number of equivalent defect sites in the
	// supercell.
	Multiplicity float64
}

// label returns the species label (name without the charge suffix).
func (e *DefectEntry) label() string {
	l, _ := scfermi.SplitDefectName(e.Name)
	return l
}

func (e *DefectEntry) degeneracy() float64 {
	g := 1.0
	for _, f := range e.DegeneracyFactors {
		g *= f
	}
	return g
}

// DefectThermodynamics holds the defect entries and band-structure data of
// one host material. It satisfies scfermi.DefectThermodynamics.
type DefectThermodynamics struct {
	entries  []*DefectEntry
	vbm      float64
	bandGap  float64
	volume   float64 // supercell volume [Å³]
	chempots *scfermi.ChemPots
}

// New validates the entries and returns a DefectThermodynamics.
// chempots may be nil if every solver call supplies its own.
func New(entries []*DefectEntry, vbm, bandGap, supercellVolume float64, chempots *scfermi.ChemPots) (*DefectThermodynamics, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("thermo: no defect entries supplied")
	}
	if bandGap < 0 {
		return nil, fmt.Errorf("thermo: band gap must be non-negative, got %g", bandGap)
	}
	if supercellVolume <= 0 {
		return nil, fmt.Errorf("thermo: supercell volume must be positive, got %g", supercellVolume)
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("thermo: defect entry with empty name")
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("thermo: duplicate defect entry %q", e.Name)
		}
		seen[e.Name] = true
		if e.Multiplicity <= 0 {
			return nil, fmt.Errorf("thermo: defect %q has non-positive multiplicity %g", e.Name, e.Multiplicity)
		}
		if g := e.degeneracy(); g <= 0 {
			return nil, fmt.Errorf("thermo: defect %q has non-positive degeneracy %g", e.Name, g)
		}
	}
	sorted := append([]*DefectEntry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &DefectThermodynamics{
		entries:  sorted,
		vbm:      vbm,
		bandGap:  bandGap,
		volume:   supercellVolume,
		chempots: chempots,
	}, nil
}

// Chempots returns the attached chemical-potential limits, or nil.
func (t *DefectThermodynamics) Chempots() *scfermi.ChemPots { return t.chempots }

// VBM returns the valence-band maximum [eV].
func (t *DefectThermodynamics) VBM() float64 { return t.vbm }

// BandGap returns the band gap [eV].
func (t *DefectThermodynamics) BandGap() float64 { return t.bandGap }

// SupercellVolume returns the defect supercell volume [Å³].
func (t *DefectThermodynamics) SupercellVolume() float64 { return t.volume }

// DefectEntries lists the entries in name order.
func (t *DefectThermodynamics) DefectEntries() []scfermi.DefectEntry {
	out := make([]scfermi.DefectEntry, len(t.entries))
	for i, e := range t.entries {
		out[i] = scfermi.DefectEntry{
			Name:              e.Name,
			Charge:            e.Charge,
			Multiplicity:      e.Multiplicity,
			DegeneracyFactors: e.DegeneracyFactors,
		}
	}
	return out
}

func (t *DefectThermodynamics) entry(name string) (*DefectEntry, error) {
	for _, e := range t.entries {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("thermo: unknown defect entry %q", name)
}

// FormationEnergy evaluates E_f = E0 + q·E_F − Σ n_el·μ_el for the named
// entry, with absolute chemical potentials and the Fermi level relative to
// the VBM.
func (t *DefectThermodynamics) FormationEnergy(name string, chempots map[string]float64, fermiLevel float64) (float64, error) {
	e, err := t.entry(name)
	if err != nil {
		return 0, err
	}
	return t.formationEnergy(e, chempots, fermiLevel), nil
}

func (t *DefectThermodynamics) formationEnergy(e *DefectEntry, chempots map[string]float64, fermiLevel float64) float64 {
	ef := e.Energy + float64(e.Charge)*fermiLevel
	for el, n := range e.Composition {
		ef -= n * chempots[el]
	}
	return ef
}

// concentration returns the dilute-limit concentration [cm^-3] of one
// entry: N_site · g · exp(−E_f/kT).
func (t *DefectThermodynamics) concentration(e *DefectEntry, chempots map[string]float64, fermiLevel, temperature float64) float64 {
	nSite := e.Multiplicity / t.volume * 1e24
	ef := t.formationEnergy(e, chempots, fermiLevel)
	return nSite * e.degeneracy() * math.Exp(-ef/(dos.KB*temperature))
}

// netDefectCharge is the charge density [cm^-3] from all defect entries at
// a trial Fermi level.
func (t *DefectThermodynamics) netDefectCharge(chempots map[string]float64, fermiLevel, temperature float64) float64 {
	var q float64
	for _, e := range t.entries {
		q += float64(e.Charge) * t.concentration(e, chempots, fermiLevel, temperature)
	}
	return q
}

// EquilibriumFermiLevel solves charge neutrality
// p − n + Σ q·c_defect + c_dopant = 0 by bisection over the DOS energy
// range, returning the Fermi level [eV relative to the VBM] and carrier
// concentrations [cm^-3]. dopant is a signed concentration [cm^-3]
// (positive donor, negative acceptor; 0 = none).
func (t *DefectThermodynamics) EquilibriumFermiLevel(d *dos.FermiDos, chempots map[string]float64, temperature, dopant float64) (fermiLevel, electrons, holes float64, err error) {
	if d == nil {
		return 0, 0, 0, fmt.Errorf("thermo: equilibrium Fermi level requires a bulk DOS")
	}
	if temperature <= 0 {
		return 0, 0, 0, fmt.Errorf("thermo: temperature must be positive, got %g K", temperature)
	}
	residual := func(ef float64) float64 {
		n, p := d.CarrierConcentrations(t.vbm+ef, temperature)
		return p - n + t.netDefectCharge(chempots, ef, temperature) + dopant
	}
	lo := d.Energies[0] - t.vbm
	hi := d.Energies[len(d.Energies)-1] - t.vbm
	if residual(lo) < 0 || residual(hi) > 0 {
		return 0, 0, 0, fmt.Errorf("thermo: charge neutrality is not bracketed on [%g, %g] eV", lo, hi)
	}
	for i := 0; i < 200; i++ {
		mid := 0.5 * (lo + hi)
		if mid == lo || mid == hi {
			break
		}
		if residual(mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	fermiLevel = 0.5 * (lo + hi)
	electrons, holes = d.CarrierConcentrations(t.vbm+fermiLevel, temperature)
	return fermiLevel, electrons, holes, nil
}

// EquilibriumConcentrations evaluates the total concentration [cm^-3] of
// each defect species (summed over charge states) at a fixed Fermi level,
// one row per label.
func (t *DefectThermodynamics) EquilibriumConcentrations(chempots map[string]float64, fermiLevel, temperature float64) (*scfermi.Table, error) {
	if temperature <= 0 {
		return nil, fmt.Errorf("thermo: temperature must be positive, got %g K", temperature)
	}
	totals := make(map[string]float64)
	var labels []string
	for _, e := range t.entries {
		l := e.label()
		if _, ok := totals[l]; !ok {
			labels = append(labels, l)
		}
		totals[l] += t.concentration(e, chempots, fermiLevel, temperature)
	}
	table := scfermi.NewTable(scfermi.ColConcentration)
	for _, l := range labels {
		table.Append(scfermi.Row{Defect: l, Values: map[string]float64{scfermi.ColConcentration: totals[l]}})
	}
	return table, nil
}

// QuenchedFermiLevelAndConcentrations applies the frozen-defect
// approximation: equilibrium totals are computed at the annealing
// temperature, each species' total is then held fixed while the charge
// states and Fermi level re-equilibrate at the quenched temperature.
// The returned table has one row per charge state, with the conserved
// species total in the Total Concentration column.
func (t *DefectThermodynamics) QuenchedFermiLevelAndConcentrations(d *dos.FermiDos, chempots map[string]float64, annealingTemperature, quenchedTemperature, dopant float64) (fermiLevel, electrons, holes float64, concentrations *scfermi.Table, err error) {
	efA, _, _, err := t.EquilibriumFermiLevel(d, chempots, annealingTemperature, dopant)
	if err != nil {
		return 0, 0, 0, nil, err
	}

	// Annealing-temperature totals per species label.
	totals := make(map[string]float64)
	var labels []string
	byLabel := make(map[string][]*DefectEntry)
	for _, e := range t.entries {
		l := e.label()
		if _, ok := totals[l]; !ok {
			labels = append(labels, l)
		}
		totals[l] += t.concentration(e, chempots, efA, annealingTemperature)
		byLabel[l] = append(byLabel[l], e)
	}

	// Charge-state populations at the quenched temperature, rescaled so
	// each species keeps its annealing total.
	frozen := func(ef float64) map[string]float64 {
		out := make(map[string]float64, len(t.entries))
		for _, l := range labels {
			var sum float64
			weights := make([]float64, len(byLabel[l]))
			for i, e := range byLabel[l] {
				weights[i] = t.concentration(e, chempots, ef, quenchedTemperature)
				sum += weights[i]
			}
			for i, e := range byLabel[l] {
				if sum > 0 {
					out[e.Name] = totals[l] * weights[i] / sum
				}
			}
		}
		return out
	}
	residual := func(ef float64) float64 {
		n, p := d.CarrierConcentrations(t.vbm+ef, quenchedTemperature)
		q := p - n + dopant
		concs := frozen(ef)
		for _, e := range t.entries {
			q += float64(e.Charge) * concs[e.Name]
		}
		return q
	}
	lo := d.Energies[0] - t.vbm
	hi := d.Energies[len(d.Energies)-1] - t.vbm
	if residual(lo) < 0 || residual(hi) > 0 {
		return 0, 0, 0, nil, fmt.Errorf("thermo: constrained charge neutrality is not bracketed on [%g, %g] eV", lo, hi)
	}
	for i := 0; i < 200; i++ {
		mid := 0.5 * (lo + hi)
		if mid == lo || mid == hi {
			break
		}
		if residual(mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	fermiLevel = 0.5 * (lo + hi)
	electrons, holes = d.CarrierConcentrations(t.vbm+fermiLevel, quenchedTemperature)

	concs := frozen(fermiLevel)
	table := scfermi.NewTable(scfermi.ColCharge, scfermi.ColFormationEnergy,
		scfermi.ColConcentration, scfermi.ColChargeStatePopulation, scfermi.ColTotalConcentration)
	for _, l := range labels {
		for _, e := range byLabel[l] {
			pop := 0.
			if totals[l] > 0 {
				pop = concs[e.Name] / totals[l]
			}
			table.Append(scfermi.Row{Defect: l, Values: map[string]float64{
				scfermi.ColCharge:                float64(e.Charge),
				scfermi.ColFormationEnergy:       t.formationEnergy(e, chempots, fermiLevel),
				scfermi.ColConcentration:         concs[e.Name],
				scfermi.ColChargeStatePopulation: pop,
				scfermi.ColTotalConcentration:    totals[l],
			}})
		}
	}
	return fermiLevel, electrons, holes, table, nil
}
