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

package sfermi

import (
	"fmt"
	"math"
)

// DefaultConvergenceTolerance is the default bound on the residual net
// charge [cell^-1] of the neutrality search. It is deliberately far below
// any physically meaningful charge so the search only stops when the
// bracketing interval is exhausted, avoiding premature termination.
const DefaultConvergenceTolerance = 1e-20

// maxBisections bounds the interval-halving steps of one neutrality solve.
// Double precision exhausts an eV-scale bracket in well under this count.
const maxBisections = 500

// Names of the pseudo-entries in concentration dictionaries, alongside the
// defect species names.
const (
	KeyFermiEnergy = "Fermi Energy"
	KeyElectrons   = "n0"
	KeyHoles       = "p0"
	// DopantName is the species name reserved for an extrinsic dopant.
	DopantName = "Dopant"
)

// DefectSystem is one fully specified charge-neutrality problem: a set of
// defect species, a DOS, a cell volume, and a temperature. Values are
// immutable; derive constrained or re-heated systems with the With...
// methods.
type DefectSystem struct {
	Species []*DefectSpecies
	DOS     *DOS
	// Volume is the cell volume [Å³], used to convert between cell^-1
	// and cm^-3.
	Volume float64
	// Temperature [K].
	Temperature float64
	// ConvergenceTolerance is the residual net-charge bound [cell^-1];
	// zero selects DefaultConvergenceTolerance.
	ConvergenceTolerance float64
}

// NewDefectSystem validates and returns a defect system.
func NewDefectSystem(species []*DefectSpecies, d *DOS, volume, temperature float64) (*DefectSystem, error) {
	if d == nil {
		return nil, fmt.Errorf("sfermi: defect system requires a DOS")
	}
	if volume <= 0 {
		return nil, fmt.Errorf("sfermi: cell volume must be positive, got %g", volume)
	}
	if temperature <= 0 {
		return nil, fmt.Errorf("sfermi: temperature must be positive, got %g K", temperature)
	}
	return &DefectSystem{Species: species, DOS: d, Volume: volume, Temperature: temperature}, nil
}

// SpeciesByName returns the named species, or nil.
func (s *DefectSystem) SpeciesByName(name string) *DefectSpecies {
	for _, ds := range s.Species {
		if ds.Name == name {
			return ds
		}
	}
	return nil
}

func (s *DefectSystem) clone() *DefectSystem {
	c := *s
	c.Species = make([]*DefectSpecies, len(s.Species))
	for i, ds := range s.Species {
		c.Species[i] = ds.clone()
	}
	return &c
}

// WithTemperature returns a copy of the system at a different temperature.
// The receiver is unchanged, so an annealing-temperature system survives
// the derivation of its quenched counterpart.
func (s *DefectSystem) WithTemperature(temperature float64) *DefectSystem {
	c := s.clone()
	c.Temperature = temperature
	return c
}

// WithDopant returns a copy of the system with an extrinsic dopant
// pseudo-species appended: charge +1 for a positive (donor) concentration,
// -1 for a negative (acceptor) one, with the magnitude pinned [cell^-1].
func (s *DefectSystem) WithDopant(concentration float64) *DefectSystem {
	c := s.clone()
	charge := 1
	if concentration < 0 {
		charge = -1
	}
	fixed := math.Abs(concentration)
	c.Species = append(c.Species, &DefectSpecies{
		Name:   DopantName,
		NSites: 1,
		ChargeStates: map[int]*DefectChargeState{
			charge: {Charge: charge, Degeneracy: 1, FixedConcentration: &fixed},
		},
	})
	return c
}

// WithFixedSpeciesConcentrations returns a copy of the system in which each
// named species' total concentration [cell^-1] is pinned. Names that match
// no species are ignored.
func (s *DefectSystem) WithFixedSpeciesConcentrations(fixed map[string]float64) *DefectSystem {
	c := s.clone()
	for _, ds := range c.Species {
		if v, ok := fixed[ds.Name]; ok {
			v := v
			ds.FixedConcentration = &v
		}
	}
	return c
}

// WithFixedChargeStateConcentrations returns a copy of the system in which
// individual charge-state concentrations [cell^-1] are pinned, keyed by
// species name and charge. Unknown keys are ignored.
func (s *DefectSystem) WithFixedChargeStateConcentrations(fixed map[string]map[int]float64) *DefectSystem {
	c := s.clone()
	for _, ds := range c.Species {
		byCharge, ok := fixed[ds.Name]
		if !ok {
			continue
		}
		for q, cs := range ds.ChargeStates {
			if v, ok := byCharge[q]; ok {
				v := v
				cs.FixedConcentration = &v
			}
		}
	}
	return c
}

// netCharge is the total charge density [cell^-1] at a trial Fermi level:
// holes minus electrons plus the charge-weighted defect populations.
func (s *DefectSystem) netCharge(fermiLevel float64) float64 {
	n0, p0 := s.DOS.CarrierConcentrations(fermiLevel, s.Temperature)
	q := p0 - n0
	for _, ds := range s.Species {
		q += ds.NetCharge(fermiLevel, s.Temperature)
	}
	return q
}

// SolveFermiEnergy finds the Fermi level [eV relative to the VBM] at which
// the system is charge neutral, by bisection over the DOS energy range.
// The net charge decreases monotonically with the Fermi level, so the
// bracket is halved until the residual is below the convergence tolerance
// or the interval is exhausted.
func (s *DefectSystem) SolveFermiEnergy() (float64, error) {
	tol := s.ConvergenceTolerance
	if tol == 0 {
		tol = DefaultConvergenceTolerance
	}
	lo, hi := s.DOS.EnergyRange()
	qLo, qHi := s.netCharge(lo), s.netCharge(hi)
	if qLo < 0 || qHi > 0 {
		return 0, fmt.Errorf("sfermi: charge neutrality is not bracketed on [%g, %g] eV (net charge %g at %g, %g at %g)",
			lo, hi, qLo, lo, qHi, hi)
	}
	var mid float64
	for i := 0; i < maxBisections; i++ {
		mid = 0.5 * (lo + hi)
		q := s.netCharge(mid)
		if math.Abs(q) < tol || hi-lo < math.SmallestNonzeroFloat64 {
			return mid, nil
		}
		if q > 0 {
			lo = mid
		} else {
			hi = mid
		}
		if mid == 0.5*(lo+hi) { // interval no longer representable
			return mid, nil
		}
	}
	return mid, nil
}

// ConcentrationDict solves the system and returns the Fermi energy [eV],
// the carrier concentrations and the total concentration of each species
// [cm^-3], keyed by KeyFermiEnergy, KeyElectrons, KeyHoles and the species
// names.
func (s *DefectSystem) ConcentrationDict() (map[string]float64, error) {
	ef, err := s.SolveFermiEnergy()
	if err != nil {
		return nil, err
	}
	n0, p0 := s.DOS.CarrierConcentrations(ef, s.Temperature)
	perCm3 := 1e24 / s.Volume
	out := map[string]float64{
		KeyFermiEnergy: ef,
		KeyElectrons:   n0 * perCm3,
		KeyHoles:       p0 * perCm3,
	}
	for _, ds := range s.Species {
		out[ds.Name] = ds.Concentration(ef, s.Temperature) * perCm3
	}
	return out, nil
}

// DecomposedConcentrationDict solves the system and returns the
// concentration [cm^-3] of every individual charge state, keyed by species
// name and charge.
func (s *DefectSystem) DecomposedConcentrationDict() (map[string]map[int]float64, error) {
	ef, err := s.SolveFermiEnergy()
	if err != nil {
		return nil, err
	}
	perCm3 := 1e24 / s.Volume
	out := make(map[string]map[int]float64, len(s.Species))
	for _, ds := range s.Species {
		byCharge := make(map[int]float64, len(ds.ChargeStates))
		for q, c := range ds.ChargeStateConcentrations(ef, s.Temperature) {
			byCharge[q] = c * perCm3
		}
		out[ds.Name] = byCharge
	}
	return out, nil
}
