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

// Package scfermi registers the "sc-fermi" solving backend, which builds
// a full sfermi.DefectSystem for every solve instead of delegating
// root-finding to the DefectThermodynamics collaborator. Import it for
// its side effect:
//
//	import _ "github.com/materialsmodel/scfermi/backend/scfermi"
package scfermi

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/materialsmodel/scfermi"
	"github.com/materialsmodel/scfermi/dos"
	"github.com/materialsmodel/scfermi/sfermi"
)

// scalingTol is the largest acceptable deviation of the supercell-to-DOS
// cell volume ratio from an integer before a warning is emitted.
const scalingTol = 3e-2

func init() {
	scfermi.RegisterBackend(scfermi.ScFermiBackend, newBackend)
}

type backend struct {
	oracle scfermi.DefectThermodynamics
	dos    *sfermi.DOS
	// volume is the DOS cell volume [Å³].
	volume float64
	// scaling divides defect-supercell multiplicities down to the DOS
	// cell.
	scaling float64
}

func newBackend(oracle scfermi.DefectThermodynamics, d *dos.FermiDos) (scfermi.Backend, error) {
	sdos, err := sfermi.DOSFromFermiDos(d, oracle.VBM(), oracle.BandGap())
	if err != nil {
		return nil, err
	}
	scaling := oracle.SupercellVolume() / d.Volume
	if dev := math.Abs(scaling - math.Round(scaling)); dev > scalingTol {
		log.Warnf("non-integer defect supercell to DOS cell volume ratio %.4f; "+
			"concentrations may be quantitatively wrong", scaling)
	}
	scaling = math.Round(scaling)
	if scaling < 1 {
		return nil, fmt.Errorf("scfermi backend: defect supercell (%g Å³) is smaller than the DOS cell (%g Å³)",
			oracle.SupercellVolume(), d.Volume)
	}
	return &backend{oracle: oracle, dos: sdos, volume: d.Volume, scaling: scaling}, nil
}

func (b *backend) Name() string { return scfermi.ScFermiBackend }

// perCell converts a concentration from cm^-3 to cell^-1.
func (b *backend) perCell(c float64) float64 { return c / 1e24 * b.volume }

// defectSystem builds a fully specified charge-neutrality problem from
// the defect entries, with charge-state energies evaluated at a Fermi
// level at the VBM under the given absolute chemical potentials.
func (b *backend) defectSystem(chempots map[string]float64, temperature, dopant float64) (*sfermi.DefectSystem, error) {
	var species []*sfermi.DefectSpecies
	byLabel := make(map[string]*sfermi.DefectSpecies)
	for _, entry := range b.oracle.DefectEntries() {
		label, charge := scfermi.SplitDefectName(entry.Name)
		energy, err := b.oracle.FormationEnergy(entry.Name, chempots, 0)
		if err != nil {
			return nil, err
		}
		ds, ok := byLabel[label]
		if !ok {
			ds = &sfermi.DefectSpecies{
				Name:         label,
				NSites:       entry.Multiplicity / b.scaling,
				ChargeStates: make(map[int]*sfermi.DefectChargeState),
			}
			byLabel[label] = ds
			species = append(species, ds)
		}
		ds.ChargeStates[charge] = &sfermi.DefectChargeState{
			Charge:     charge,
			Energy:     energy,
			Degeneracy: entry.Degeneracy(),
		}
	}
	system, err := sfermi.NewDefectSystem(species, b.dos, b.volume, temperature)
	if err != nil {
		return nil, err
	}
	if dopant != 0 {
		system = system.WithDopant(b.perCell(dopant))
	}
	return system, nil
}

func (b *backend) EquilibriumSolve(chempots map[string]float64, temperature float64, opts scfermi.SolveOptions) (*scfermi.Table, error) {
	system, err := b.defectSystem(chempots, temperature, opts.EffectiveDopantConcentration)
	if err != nil {
		return nil, err
	}
	conc, err := system.ConcentrationDict()
	if err != nil {
		return nil, err
	}
	table := scfermi.NewTable()
	for _, ds := range system.Species {
		if ds.Name == sfermi.DopantName {
			continue
		}
		values := map[string]float64{
			scfermi.ColTemperature:   temperature,
			scfermi.ColFermiLevel:    conc[sfermi.KeyFermiEnergy],
			scfermi.ColHoles:         conc[sfermi.KeyHoles],
			scfermi.ColElectrons:     conc[sfermi.KeyElectrons],
			scfermi.ColConcentration: conc[ds.Name],
		}
		if dopant, ok := conc[sfermi.DopantName]; ok {
			values[scfermi.ColDopant] = dopant
		}
		table.Append(scfermi.Row{Defect: ds.Name, Values: values})
	}
	return table, nil
}

func (b *backend) PseudoEquilibriumSolve(chempots map[string]float64, annealingTemperature, quenchedTemperature float64, opts scfermi.SolveOptions) (*scfermi.Table, error) {
	annealed, err := b.annealedDefectSystem(chempots, annealingTemperature, quenchedTemperature, opts)
	if err != nil {
		return nil, err
	}
	conc, err := annealed.ConcentrationDict()
	if err != nil {
		return nil, err
	}
	table := scfermi.NewTable()
	for _, ds := range annealed.Species {
		values := map[string]float64{
			scfermi.ColAnnealingTemperature: annealingTemperature,
			scfermi.ColQuenchedTemperature:  quenchedTemperature,
			scfermi.ColFermiLevel:           conc[sfermi.KeyFermiEnergy],
			scfermi.ColHoles:                conc[sfermi.KeyHoles],
			scfermi.ColElectrons:            conc[sfermi.KeyElectrons],
			scfermi.ColConcentration:        conc[ds.Name],
		}
		if dopant, ok := conc[sfermi.DopantName]; ok {
			values[scfermi.ColDopant] = dopant
		}
		table.Append(scfermi.Row{Defect: ds.Name, Values: values})
	}
	return table, nil
}

// annealedDefectSystem equilibrates the system at the annealing
// temperature, pins the resulting concentrations of every species not
// listed as free (per species by default, per charge state with
// FixChargeStates), and returns the pinned system at the quenched
// temperature.
func (b *backend) annealedDefectSystem(chempots map[string]float64, annealingTemperature, quenchedTemperature float64, opts scfermi.SolveOptions) (*sfermi.DefectSystem, error) {
	system, err := b.defectSystem(chempots, annealingTemperature, opts.EffectiveDopantConcentration)
	if err != nil {
		return nil, err
	}

	free := make(map[string]bool, len(opts.FreeDefects))
	for _, name := range opts.FreeDefects {
		if system.SpeciesByName(name) == nil {
			log.Warnf("free defect %q matches no defect species; ignoring", name)
			continue
		}
		free[name] = true
	}

	if opts.FixChargeStates {
		decomposed, err := system.DecomposedConcentrationDict()
		if err != nil {
			return nil, err
		}
		fixed := make(map[string]map[int]float64)
		for name, byCharge := range decomposed {
			if free[name] {
				continue
			}
			perCell := make(map[int]float64, len(byCharge))
			for q, c := range byCharge {
				perCell[q] = b.perCell(c)
			}
			fixed[name] = perCell
		}
		return system.WithFixedChargeStateConcentrations(fixed).WithTemperature(quenchedTemperature), nil
	}

	conc, err := system.ConcentrationDict()
	if err != nil {
		return nil, err
	}
	fixed := make(map[string]float64)
	for name, c := range conc {
		if name == sfermi.KeyFermiEnergy || name == sfermi.KeyElectrons || name == sfermi.KeyHoles || free[name] {
			continue
		}
		fixed[name] = b.perCell(c)
	}
	return system.WithFixedSpeciesConcentrations(fixed).WithTemperature(quenchedTemperature), nil
}
