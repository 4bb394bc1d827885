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

	"gonum.org/v1/gonum/integrate"

	fdos "github.com/materialsmodel/scfermi/dos"
)

// DOS is the density-of-states representation this solver works in:
// energies relative to the valence-band maximum, a density array per spin
// channel, the cell electron count, and the band gap.
type DOS struct {
	// Edos [eV] relative to the VBM (VBM at 0), ascending.
	Edos []float64
	// Dos [states/eV/cell] per spin channel: one channel if not
	// spin-polarized, two if it is.
	Dos [][]float64
	// NElect is the number of electrons per cell.
	NElect float64
	// Bandgap [eV].
	Bandgap float64
	// SpinPolarised reports whether Dos holds separate spin channels.
	SpinPolarised bool

	norm float64 // density scaling so the valence band holds NElect electrons
}

// NewDOS validates the arrays and normalizes the density so that the
// integrated valence-band states equal NElect.
func NewDOS(edos []float64, dosArr [][]float64, nelect, bandgap float64, spinPolarised bool) (*DOS, error) {
	if len(edos) < 2 {
		return nil, fmt.Errorf("sfermi: need at least two energy points, got %d", len(edos))
	}
	want := 1
	if spinPolarised {
		want = 2
	}
	if len(dosArr) != want {
		return nil, fmt.Errorf("sfermi: expected %d spin channel(s), got %d", want, len(dosArr))
	}
	for i, ch := range dosArr {
		if len(ch) != len(edos) {
			return nil, fmt.Errorf("sfermi: spin channel %d has %d points but the energy grid has %d",
				i, len(ch), len(edos))
		}
	}
	if bandgap < 0 {
		return nil, fmt.Errorf("sfermi: band gap must be non-negative, got %g", bandgap)
	}
	d := &DOS{Edos: edos, Dos: dosArr, NElect: nelect, Bandgap: bandgap, SpinPolarised: spinPolarised, norm: 1}
	valence := make([]float64, len(edos))
	total := d.total()
	for i, e := range edos {
		if e <= 0 {
			valence[i] = total[i]
		}
	}
	states := integrate.Trapezoidal(edos, valence)
	if states > 0 && nelect > 0 {
		d.norm = nelect / states
	}
	return d, nil
}

// DOSFromFermiDos converts a generic FermiDos into the representation this
// solver requires, shifting energies so the given VBM sits at zero.
func DOSFromFermiDos(fd *fdos.FermiDos, vbm, bandgap float64) (*DOS, error) {
	edos := make([]float64, len(fd.Energies))
	for i, e := range fd.Energies {
		edos[i] = e - vbm
	}
	return NewDOS(edos, fd.Densities, fd.NElect, bandgap, fd.SpinPolarized())
}

func (d *DOS) total() []float64 {
	t := make([]float64, len(d.Edos))
	for _, ch := range d.Dos {
		for i, g := range ch {
			t[i] += g
		}
	}
	return t
}

// CarrierConcentrations returns the free electron and hole concentrations
// [cell^-1] at a Fermi level [eV relative to the VBM] and temperature [K].
// Electrons occupy states above the gap, holes empty states below the VBM.
func (d *DOS) CarrierConcentrations(fermiLevel, temperature float64) (n0, p0 float64) {
	total := d.total()
	n := make([]float64, len(d.Edos))
	p := make([]float64, len(d.Edos))
	for i, e := range d.Edos {
		f := fdos.FermiDirac(e-fermiLevel, temperature)
		if e >= d.Bandgap {
			n[i] = total[i] * f * d.norm
		}
		if e <= 0 {
			p[i] = total[i] * (1 - f) * d.norm
		}
	}
	n0 = integrate.Trapezoidal(d.Edos, n)
	p0 = integrate.Trapezoidal(d.Edos, p)
	return n0, p0
}

// EnergyRange returns the extremes of the energy grid, used to bracket the
// charge-neutrality search.
func (d *DOS) EnergyRange() (lo, hi float64) {
	return d.Edos[0], d.Edos[len(d.Edos)-1]
}
