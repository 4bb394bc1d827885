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

	log "github.com/sirupsen/logrus"

	"github.com/materialsmodel/scfermi/dos"
)

// ScFermiBackend is the name of the external defect-system solving
// strategy. It is available once the backend/scfermi package has been
// imported.
const ScFermiBackend = "sc-fermi"

// vbmMismatchTol is the largest acceptable difference [eV] between the
// VBM of the bulk DOS and the VBM of the defect thermodynamics before a
// warning is emitted.
const vbmMismatchTol = 0.05

// Options configures a FermiSolver.
type Options struct {
	// Backend names the solving strategy. Empty selects the sc-fermi
	// backend when its package is imported, otherwise the native one.
	Backend string
	// Chempots overrides the chemical-potential limits attached to the
	// DefectThermodynamics.
	Chempots *ChemPots
	// SkipDOSCheck disables the band-edge consistency check between the
	// bulk DOS and the defect thermodynamics.
	SkipDOSCheck bool
}

// FermiSolver computes self-consistent Fermi levels and defect and
// carrier concentrations under equilibrium or pseudo-equilibrium
// (frozen-defect) conditions, and orchestrates scans over temperatures,
// chemical potentials and dopant concentrations.
type FermiSolver struct {
	oracle   DefectThermodynamics
	dos      *dos.FermiDos
	chempots *ChemPots
	backend  Backend
}

// New creates a FermiSolver for the given defect thermodynamics and bulk
// DOS. Chemical potentials must be supplied either through opts or on the
// thermodynamics object itself.
func New(oracle DefectThermodynamics, d *dos.FermiDos, opts Options) (*FermiSolver, error) {
	if oracle == nil {
		return nil, fmt.Errorf("scfermi: defect thermodynamics must not be nil")
	}
	if d == nil {
		return nil, fmt.Errorf("scfermi: bulk DOS must not be nil")
	}

	chempots := opts.Chempots
	if chempots == nil {
		chempots = oracle.Chempots()
	}
	if chempots == nil {
		return nil, fmt.Errorf("scfermi: you must supply a chemical potentials dictionary " +
			"or have one present on the DefectThermodynamics object")
	}

	if !opts.SkipDOSCheck {
		dosVBM, _ := d.BandEdges(dos.EdgeTol)
		if diff := math.Abs(dosVBM - oracle.VBM()); diff > vbmMismatchTol {
			log.WithFields(log.Fields{
				"dos_vbm":    dosVBM,
				"defect_vbm": oracle.VBM(),
			}).Warnf("band edges of the bulk DOS differ from the defect thermodynamics by %.3f eV; "+
				"Fermi levels may be inconsistent between the two", diff)
		}
	}

	name := opts.Backend
	if name == "" {
		name = NativeBackend
		if _, err := lookupBackend(ScFermiBackend); err == nil {
			name = ScFermiBackend
		}
	}
	factory, err := lookupBackend(name)
	if err != nil {
		return nil, err
	}
	backend, err := factory(oracle, d)
	if err != nil {
		return nil, err
	}

	return &FermiSolver{
		oracle:   oracle,
		dos:      d,
		chempots: chempots,
		backend:  backend,
	}, nil
}

// BackendName reports the configured solving strategy.
func (s *FermiSolver) BackendName() string { return s.backend.Name() }

// Chempots returns the chemical-potential limits in use.
func (s *FermiSolver) Chempots() *ChemPots { return s.chempots }

// DOS returns the bulk density of states in use.
func (s *FermiSolver) DOS() *dos.FermiDos { return s.dos }

// Thermodynamics returns the defect-thermodynamics collaborator.
func (s *FermiSolver) Thermodynamics() DefectThermodynamics { return s.oracle }

// RequireBackend returns a BackendMismatchError unless the named backend
// is the configured one.
func (s *FermiSolver) RequireBackend(required string) error {
	if required != s.backend.Name() {
		return &BackendMismatchError{Required: required, Configured: s.backend.Name()}
	}
	return nil
}

// resolveChempots turns an explicit formal chemical-potential set or a
// limit label into a formal set. With neither given, a single-limit
// ChemPots resolves to that limit, otherwise the alphabetically first
// limit is used.
func (s *FermiSolver) resolveChempots(set map[string]float64, limit string) (map[string]float64, error) {
	if set != nil {
		return set, nil
	}
	if limit != "" {
		return s.chempots.Limit(limit)
	}
	if first := s.chempots.FirstLimit(); first != nil {
		if labels := s.chempots.LimitLabels(); len(labels) > 1 {
			log.WithFields(log.Fields{
				"limit":     labels[0],
				"available": labels,
			}).Warn("no chemical-potential limit specified; defaulting to the alphabetically first one")
		}
		return first, nil
	}
	return nil, fmt.Errorf("scfermi: you must specify a limit or chempots dictionary")
}

// EquilibriumSolve calculates the Fermi level and defect and carrier
// concentrations at thermodynamic equilibrium for one formal
// chemical-potential set and temperature.
func (s *FermiSolver) EquilibriumSolve(chempots map[string]float64, temperature float64, opts SolveOptions) (*Table, error) {
	return s.backend.EquilibriumSolve(s.chempots.Absolute(chempots), temperature, opts)
}

// PseudoEquilibriumSolve calculates the Fermi level and concentrations
// under the frozen-defect approximation: species totals equilibrate at
// annealingTemperature and are conserved while charge states and carriers
// re-equilibrate at quenchedTemperature.
func (s *FermiSolver) PseudoEquilibriumSolve(chempots map[string]float64, annealingTemperature, quenchedTemperature float64, opts SolveOptions) (*Table, error) {
	return s.backend.PseudoEquilibriumSolve(s.chempots.Absolute(chempots), annealingTemperature, quenchedTemperature, opts)
}
