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
	"strconv"
	"strings"

	"github.com/materialsmodel/scfermi/dos"
)

// DefectEntry describes one defect charge state as exposed by a
// DefectThermodynamics collaborator: enough to build an external defect
// system, but nothing about how its energetics were computed.
type DefectEntry struct {
	// Name is the full defect name, "<label>_<charge>".
	Name string
	// Charge in units of the elementary charge.
	Charge int
	// Multiplicity is the defect site count, before any supercell
	// volume scaling.
	Multiplicity float64
	// DegeneracyFactors are the independent degeneracy contributions
	// (e.g. "spin degeneracy", "orientational degeneracy") whose product
	// is the total degeneracy.
	DegeneracyFactors map[string]float64
}

// Degeneracy returns the product of the entry's degeneracy factors.
func (e DefectEntry) Degeneracy() float64 {
	g := 1.0
	for _, f := range e.DegeneracyFactors {
		g *= f
	}
	return g
}

// DefectThermodynamics is the thermodynamics oracle the solver consumes:
// it evaluates defect formation energetics and, given a DOS, solves
// equilibrium and quenched charge neutrality itself. Chemical potentials
// passed to its methods are absolute (elemental references already added).
// Errors it returns propagate to the caller unchanged.
type DefectThermodynamics interface {
	// Chempots returns the chemical-potential limits parsed from the
	// underlying data, or nil if none are attached.
	Chempots() *ChemPots
	// VBM returns the valence-band maximum [eV] on the same scale as
	// the bulk DOS energies.
	VBM() float64
	// BandGap returns the band gap [eV].
	BandGap() float64
	// SupercellVolume returns the defect supercell volume [Å³].
	SupercellVolume() float64
	// DefectEntries lists every defect charge state.
	DefectEntries() []DefectEntry
	// FormationEnergy evaluates the formation energy [eV] of the named
	// entry at the given absolute chemical potentials and Fermi level
	// [eV relative to the VBM].
	FormationEnergy(name string, chempots map[string]float64, fermiLevel float64) (float64, error)
	// EquilibriumFermiLevel solves charge neutrality over all defects,
	// free carriers and the optional extrinsic dopant (cm^-3, signed:
	// positive donor, negative acceptor; 0 = none), returning the Fermi
	// level [eV relative to the VBM] and the carrier concentrations
	// [cm^-3].
	EquilibriumFermiLevel(d *dos.FermiDos, chempots map[string]float64, temperature, dopant float64) (fermiLevel, electrons, holes float64, err error)
	// EquilibriumConcentrations evaluates the per-species (summed over
	// charge states) defect concentrations [cm^-3] at a fixed Fermi
	// level, one row per defect label.
	EquilibriumConcentrations(chempots map[string]float64, fermiLevel, temperature float64) (*Table, error)
	// QuenchedFermiLevelAndConcentrations computes annealing-temperature
	// totals, freezes them, and re-solves charge neutrality at the
	// quenched temperature. The returned table has one row per charge
	// state, including a Total Concentration column per species.
	QuenchedFermiLevelAndConcentrations(d *dos.FermiDos, chempots map[string]float64, annealingTemperature, quenchedTemperature, dopant float64) (fermiLevel, electrons, holes float64, concentrations *Table, err error)
}

// SplitDefectName splits a defect name into its species label and charge by
// stripping the trailing "_<charge>" suffix. A name without an integer
// suffix is a label with charge zero.
func SplitDefectName(name string) (label string, charge int) {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return name, 0
	}
	q, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return name, 0
	}
	return name[:i], q
}
