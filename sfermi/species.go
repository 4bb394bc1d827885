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
	"math"
	"sort"

	fdos "github.com/materialsmodel/scfermi/dos"
)

// DefectChargeState is one charge state of a defect species.
type DefectChargeState struct {
	// Charge in units of the elementary charge.
	Charge int
	// Energy is the formation energy [eV] at a Fermi level of zero (at
	// the VBM), with chemical-potential terms already folded in.
	Energy float64
	// Degeneracy is the total configurational degeneracy (site ×
	// orientational × spin), a positive multiplier.
	Degeneracy float64
	// FixedConcentration, when non-nil, pins this charge state to a
	// concentration [cell^-1] independent of the Fermi level.
	FixedConcentration *float64
}

// Concentration returns the per-site concentration of the charge state in
// the dilute limit at the given Fermi level [eV relative to the VBM] and
// temperature [K]. A fixed charge state returns its pinned value.
func (cs *DefectChargeState) Concentration(fermiLevel, temperature float64) float64 {
	if cs.FixedConcentration != nil {
		return *cs.FixedConcentration
	}
	ef := cs.Energy + float64(cs.Charge)*fermiLevel
	return cs.Degeneracy * math.Exp(-ef/(fdos.KB*temperature))
}

func (cs *DefectChargeState) clone() *DefectChargeState {
	c := *cs
	if cs.FixedConcentration != nil {
		v := *cs.FixedConcentration
		c.FixedConcentration = &v
	}
	return &c
}

// DefectSpecies is a defect with a common lattice site and a set of charge
// states.
type DefectSpecies struct {
	// Name is the species label, without a charge suffix.
	Name string
	// NSites is the number of sites per unit cell the defect can occupy,
	// already normalized by any supercell-to-cell multiplicity scaling.
	NSites float64
	// ChargeStates maps charge → charge state.
	ChargeStates map[int]*DefectChargeState
	// FixedConcentration, when non-nil, pins the species' total
	// concentration [cell^-1]; charge states then share the total in
	// proportion to their unconstrained weights.
	FixedConcentration *float64
}

// Charges returns the charge states in ascending order.
func (ds *DefectSpecies) Charges() []int {
	qs := make([]int, 0, len(ds.ChargeStates))
	for q := range ds.ChargeStates {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	return qs
}

// Concentration returns the total concentration [cell^-1] of the species at
// the given Fermi level and temperature.
func (ds *DefectSpecies) Concentration(fermiLevel, temperature float64) float64 {
	if ds.FixedConcentration != nil {
		return *ds.FixedConcentration
	}
	var c float64
	for _, cs := range ds.ChargeStates {
		if cs.FixedConcentration != nil {
			c += *cs.FixedConcentration
		} else {
			c += ds.NSites * cs.Concentration(fermiLevel, temperature)
		}
	}
	return c
}

// ChargeStateConcentrations returns the concentration [cell^-1] of each
// charge state. For a species with a fixed total, the unconstrained
// populations are rescaled so they sum to the fixed value, which is how
// charge states repopulate under a frozen total.
func (ds *DefectSpecies) ChargeStateConcentrations(fermiLevel, temperature float64) map[int]float64 {
	out := make(map[int]float64, len(ds.ChargeStates))
	var unconstrained float64
	for q, cs := range ds.ChargeStates {
		if cs.FixedConcentration != nil {
			out[q] = *cs.FixedConcentration
		} else {
			c := ds.NSites * cs.Concentration(fermiLevel, temperature)
			out[q] = c
			unconstrained += c
		}
	}
	if ds.FixedConcentration != nil {
		var fixedPart float64
		var free int
		for _, cs := range ds.ChargeStates {
			if cs.FixedConcentration != nil {
				fixedPart += *cs.FixedConcentration
			} else {
				free++
			}
		}
		remainder := *ds.FixedConcentration - fixedPart
		switch {
		case unconstrained > 0:
			scale := remainder / unconstrained
			for q, cs := range ds.ChargeStates {
				if cs.FixedConcentration == nil {
					out[q] *= scale
				}
			}
		case free > 0:
			// Every unconstrained Boltzmann weight underflowed to zero.
			// Split the remaining total evenly so the pinned
			// concentration still enters charge neutrality.
			for q, cs := range ds.ChargeStates {
				if cs.FixedConcentration == nil {
					out[q] = remainder / float64(free)
				}
			}
		}
	}
	return out
}

// NetCharge returns the total charge [cell^-1] contributed by the species.
func (ds *DefectSpecies) NetCharge(fermiLevel, temperature float64) float64 {
	var sum float64
	for q, c := range ds.ChargeStateConcentrations(fermiLevel, temperature) {
		sum += float64(q) * c
	}
	return sum
}

func (ds *DefectSpecies) clone() *DefectSpecies {
	c := &DefectSpecies{Name: ds.Name, NSites: ds.NSites,
		ChargeStates: make(map[int]*DefectChargeState, len(ds.ChargeStates))}
	for q, cs := range ds.ChargeStates {
		c.ChargeStates[q] = cs.clone()
	}
	if ds.FixedConcentration != nil {
		v := *ds.FixedConcentration
		c.FixedConcentration = &v
	}
	return c
}
