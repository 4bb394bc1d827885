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

// Package dos holds the electronic density of states of the host material
// and the free-carrier statistics computed from it.
package dos

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
)

// KB is the Boltzmann constant [eV/K].
const KB = 8.617333262e-5

// EdgeTol is the default density threshold [states/eV] below which a state
// is considered part of the band gap. It matches the lowest resolution the
// upstream DOS calculations round to.
const EdgeTol = 1e-4

// FermiDos is the electronic density of states of the bulk material,
// resolved by spin channel, together with the electron count and cell
// volume needed to turn state counts into carrier concentrations.
type FermiDos struct {
	// Energies [eV] on an ascending grid, shared by all spin channels.
	Energies []float64
	// Densities [states/eV/cell] per spin channel. One channel for a
	// non-spin-polarized calculation (both spins included), two for a
	// spin-polarized one.
	Densities [][]float64
	// NElect is the number of electrons in the cell.
	NElect float64
	// Volume is the cell volume [Å³].
	Volume float64
}

// New validates and returns a FermiDos.
func New(energies []float64, densities [][]float64, nelect, volume float64) (*FermiDos, error) {
	if len(energies) < 2 {
		return nil, fmt.Errorf("dos: need at least two energy points, got %d", len(energies))
	}
	if n := len(densities); n != 1 && n != 2 {
		return nil, fmt.Errorf("dos: need one or two spin channels, got %d", n)
	}
	for i, ch := range densities {
		if len(ch) != len(energies) {
			return nil, fmt.Errorf("dos: spin channel %d has %d points but the energy grid has %d",
				i, len(ch), len(energies))
		}
	}
	for i := 1; i < len(energies); i++ {
		if energies[i] <= energies[i-1] {
			return nil, fmt.Errorf("dos: energy grid must be strictly ascending")
		}
	}
	if volume <= 0 {
		return nil, fmt.Errorf("dos: cell volume must be positive, got %g", volume)
	}
	if nelect <= 0 {
		return nil, fmt.Errorf("dos: electron count must be positive, got %g", nelect)
	}
	return &FermiDos{Energies: energies, Densities: densities, NElect: nelect, Volume: volume}, nil
}

// SpinPolarized reports whether the DOS has separate up and down channels.
func (d *FermiDos) SpinPolarized() bool { return len(d.Densities) == 2 }

// TDOS returns the total density of states [states/eV/cell], summed over
// spin channels.
func (d *FermiDos) TDOS() []float64 {
	t := make([]float64, len(d.Energies))
	for _, ch := range d.Densities {
		for i, g := range ch {
			t[i] += g
		}
	}
	return t
}

// BandEdges locates the valence-band maximum and conduction-band minimum by
// filling NElect electrons into the total DOS at zero temperature: the VBM
// is the highest occupied energy with density above tol, the CBM the next
// energy above it with density above tol. For a gapless DOS both edges
// coincide at the filling level.
func (d *FermiDos) BandEdges(tol float64) (vbm, cbm float64) {
	tdos := d.TDOS()
	// Cumulative electron count on the energy grid.
	fill := len(d.Energies) - 1
	cum := 0.
	for i := 1; i < len(d.Energies); i++ {
		cum += 0.5 * (tdos[i] + tdos[i-1]) * (d.Energies[i] - d.Energies[i-1])
		if cum >= d.NElect-1e-9 {
			fill = i
			break
		}
	}
	iVBM := fill
	for iVBM > 0 && tdos[iVBM] <= tol {
		iVBM--
	}
	iCBM := iVBM + 1
	for iCBM < len(d.Energies) && tdos[iCBM] <= tol {
		iCBM++
	}
	if iCBM >= len(d.Energies) { // no states above the gap
		iCBM = iVBM
	}
	return d.Energies[iVBM], d.Energies[iCBM]
}

// Gap returns the band gap [eV] at the default edge tolerance.
func (d *FermiDos) Gap() float64 {
	vbm, cbm := d.BandEdges(EdgeTol)
	return cbm - vbm
}

// VBM returns the valence-band maximum [eV] on the energy grid's scale, at
// the default edge tolerance.
func (d *FermiDos) VBM() float64 {
	vbm, _ := d.BandEdges(EdgeTol)
	return vbm
}

// CarrierConcentrations integrates the Fermi-Dirac-occupied conduction
// states and unoccupied valence states at the given Fermi level [eV,
// absolute on the energy grid's scale] and temperature [K], returning the
// electron and hole concentrations [cm^-3].
func (d *FermiDos) CarrierConcentrations(fermiLevel, temperature float64) (electrons, holes float64) {
	vbm, cbm := d.BandEdges(EdgeTol)
	tdos := d.TDOS()
	n := make([]float64, len(d.Energies))
	p := make([]float64, len(d.Energies))
	for i, e := range d.Energies {
		f := FermiDirac(e-fermiLevel, temperature)
		if e >= cbm {
			n[i] = tdos[i] * f
		}
		if e <= vbm {
			p[i] = tdos[i] * (1 - f)
		}
	}
	perCell := 1e24 / d.Volume // cell^-1 → cm^-3
	electrons = integrate.Trapezoidal(d.Energies, n) * perCell
	holes = integrate.Trapezoidal(d.Energies, p) * perCell
	return electrons, holes
}

// FermiDirac is the Fermi-Dirac occupation of a state de [eV] above the
// Fermi level at temperature [K].
func FermiDirac(de, temperature float64) float64 {
	x := de / (KB * temperature)
	// Guard against overflow far from the Fermi level.
	switch {
	case x > 700:
		return 0
	case x < -700:
		return 1
	}
	return 1 / (1 + math.Exp(x))
}
