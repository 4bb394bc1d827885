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

package scfermiutil

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/materialsmodel/scfermi"
	"github.com/materialsmodel/scfermi/dos"
	"github.com/materialsmodel/scfermi/thermo"
)

// InputData is the TOML description of one defect system: the bulk
// density of states, the defect entries and the chemical-potential
// limits.
type InputData struct {
	// VBM is the valence-band maximum [eV].
	VBM float64 `toml:"vbm"`
	// BandGap [eV].
	BandGap float64 `toml:"band_gap"`
	// SupercellVolume is the defect supercell volume [Å³].
	SupercellVolume float64 `toml:"supercell_volume"`

	DOS      DOSData       `toml:"dos"`
	Defects  []DefectData  `toml:"defect"`
	Chempots *ChempotsData `toml:"chempots"`
}

// DOSData holds the bulk density of states on an energy grid.
type DOSData struct {
	// NElect is the number of electrons in the DOS cell.
	NElect float64 `toml:"nelect"`
	// Volume is the DOS cell volume [Å³].
	Volume float64 `toml:"volume"`
	// Energies [eV] and Densities [states/eV/cell]; one density series
	// per spin channel.
	Energies  []float64   `toml:"energies"`
	Densities [][]float64 `toml:"densities"`
}

// DefectData is one defect charge state.
type DefectData struct {
	// Name is "<label>_<charge>", e.g. "v_O_2".
	Name string `toml:"name"`
	// Energy is the formation energy [eV] at a Fermi level at the VBM
	// and all absolute chemical potentials zero.
	Energy float64 `toml:"energy"`
	// Multiplicity is the number of equivalent sites in the supercell.
	Multiplicity float64 `toml:"multiplicity"`
	// Composition maps element to atoms added (+) or removed (-).
	Composition map[string]float64 `toml:"composition"`
	// Degeneracy lists named degeneracy contributions, e.g.
	// spin = 2.0; their product scales the concentration.
	Degeneracy map[string]float64 `toml:"degeneracy"`
}

// ChempotsData holds formal chemical-potential limits and the elemental
// reference energies that make them absolute.
type ChempotsData struct {
	Limits        map[string]map[string]float64 `toml:"limits"`
	ElementalRefs map[string]float64            `toml:"elemental_refs"`
}

// ReadInput parses a TOML input file.
func ReadInput(path string) (*InputData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scfermiutil: problem opening input file: %v", err)
	}
	defer f.Close()
	var d InputData
	if _, err := toml.NewDecoder(f).Decode(&d); err != nil {
		return nil, fmt.Errorf("scfermiutil: problem parsing input file %s: %v", path, err)
	}
	if len(d.Defects) == 0 {
		return nil, fmt.Errorf("scfermiutil: input file %s defines no defects", path)
	}
	return &d, nil
}

// FermiDos builds the bulk DOS from the input data.
func (d *InputData) FermiDos() (*dos.FermiDos, error) {
	return dos.New(d.DOS.Energies, d.DOS.Densities, d.DOS.NElect, d.DOS.Volume)
}

// ChemPots builds the chemical-potential limits from the input data, or
// returns nil when the input has none.
func (d *InputData) ChemPots() (*scfermi.ChemPots, error) {
	if d.Chempots == nil {
		return nil, nil
	}
	return scfermi.ParseChemPots(d.Chempots.Limits, d.Chempots.ElementalRefs)
}

// Thermodynamics builds the defect-thermodynamics oracle from the input
// data.
func (d *InputData) Thermodynamics() (*thermo.DefectThermodynamics, error) {
	chempots, err := d.ChemPots()
	if err != nil {
		return nil, err
	}
	entries := make([]*thermo.DefectEntry, len(d.Defects))
	for i, dd := range d.Defects {
		_, charge := scfermi.SplitDefectName(dd.Name)
		entries[i] = &thermo.DefectEntry{
			Name:              dd.Name,
			Charge:            charge,
			Energy:            dd.Energy,
			Composition:       dd.Composition,
			DegeneracyFactors: dd.Degeneracy,
			Multiplicity:      dd.Multiplicity,
		}
	}
	return thermo.New(entries, d.VBM, d.BandGap, d.SupercellVolume, chempots)
}

// Solver builds a FermiSolver from the input data and the named backend.
func (d *InputData) Solver(backend string) (*scfermi.FermiSolver, error) {
	t, err := d.Thermodynamics()
	if err != nil {
		return nil, err
	}
	fd, err := d.FermiDos()
	if err != nil {
		return nil, err
	}
	return scfermi.New(t, fd, scfermi.Options{Backend: backend})
}
