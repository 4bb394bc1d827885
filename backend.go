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
	"sort"
	"strings"
	"sync"

	"github.com/materialsmodel/scfermi/dos"
)

// NativeBackend is the name of the built-in solving strategy that
// delegates root-finding to the DefectThermodynamics collaborator.
const NativeBackend = "native"

// SolveOptions holds the optional parameters of a single equilibrium or
// pseudo-equilibrium solve.
type SolveOptions struct {
	// EffectiveDopantConcentration is a fixed concentration [cm^-3] of an
	// arbitrary extrinsic dopant included in the charge-neutrality
	// condition. Positive for donors, negative for acceptors, 0 for none.
	EffectiveDopantConcentration float64
	// FixChargeStates freezes individual charge-state concentrations on
	// quenching rather than per-species totals.
	FixChargeStates bool
	// FreeDefects lists species exempt from the frozen-defect constraint.
	// Names that match no known species are ignored.
	FreeDefects []string
}

// Backend is one strategy for solving charge neutrality. Both strategies
// produce the same tabular shape: one row per defect species, with the
// Fermi level, carrier concentrations and temperatures as columns.
type Backend interface {
	Name() string
	// EquilibriumSolve solves for thermodynamic equilibrium at one
	// temperature. Chemical potentials are absolute.
	EquilibriumSolve(chempots map[string]float64, temperature float64, opts SolveOptions) (*Table, error)
	// PseudoEquilibriumSolve solves under the frozen-defect
	// approximation: anneal at annealingTemperature, quench to
	// quenchedTemperature.
	PseudoEquilibriumSolve(chempots map[string]float64, annealingTemperature, quenchedTemperature float64, opts SolveOptions) (*Table, error)
}

// BackendFactory constructs a backend for one solver instance.
type BackendFactory func(oracle DefectThermodynamics, d *dos.FermiDos) (Backend, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
)

// RegisterBackend makes a solving strategy available under the given
// name. It is intended to be called from the init function of backend
// packages, following the database/sql driver convention.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if factory == nil {
		panic("scfermi: RegisterBackend factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("scfermi: RegisterBackend called twice for backend " + name)
	}
	backends[name] = factory
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func lookupBackend(name string) (BackendFactory, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	f, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("scfermi: unrecognised backend %q (available backends: %s)",
			name, strings.Join(Backends(), ", "))
	}
	return f, nil
}

// BackendMismatchError reports an operation invoked under a backend other
// than the one it requires.
type BackendMismatchError struct {
	Required, Configured string
}

func (e *BackendMismatchError) Error() string {
	return fmt.Sprintf("scfermi: this operation is only supported for the %s backend, but the %s backend is configured",
		e.Required, e.Configured)
}

func init() {
	RegisterBackend(NativeBackend, func(oracle DefectThermodynamics, d *dos.FermiDos) (Backend, error) {
		return &nativeBackend{oracle: oracle, dos: d}, nil
	})
}

// nativeBackend delegates charge-neutrality root-finding to the
// DefectThermodynamics collaborator.
type nativeBackend struct {
	oracle DefectThermodynamics
	dos    *dos.FermiDos
}

func (b *nativeBackend) Name() string { return NativeBackend }

func (b *nativeBackend) EquilibriumSolve(chempots map[string]float64, temperature float64, opts SolveOptions) (*Table, error) {
	dopant := opts.EffectiveDopantConcentration
	fermiLevel, electrons, holes, err := b.oracle.EquilibriumFermiLevel(b.dos, chempots, temperature, dopant)
	if err != nil {
		return nil, err
	}
	concentrations, err := b.oracle.EquilibriumConcentrations(chempots, fermiLevel, temperature)
	if err != nil {
		return nil, err
	}
	addDopantRow(concentrations, dopant)
	concentrations.SetColumn(ColFermiLevel, fermiLevel)
	concentrations.SetColumn(ColElectrons, electrons)
	concentrations.SetColumn(ColHoles, holes)
	concentrations.SetColumn(ColTemperature, temperature)
	if dopant != 0 {
		concentrations.SetColumn(ColDopant, math.Abs(dopant))
	}
	return concentrations, nil
}

func (b *nativeBackend) PseudoEquilibriumSolve(chempots map[string]float64, annealingTemperature, quenchedTemperature float64, opts SolveOptions) (*Table, error) {
	dopant := opts.EffectiveDopantConcentration
	fermiLevel, electrons, holes, concentrations, err := b.oracle.QuenchedFermiLevelAndConcentrations(
		b.dos, chempots, annealingTemperature, quenchedTemperature, dopant)
	if err != nil {
		return nil, err
	}
	// Collapse the per-charge-state detail to one row per species: the
	// conserved species total becomes the concentration column.
	concentrations.DropColumns(ColCharge, ColChargeStatePopulation, ColConcentration, ColFormationEnergy)
	concentrations.SetColumn(ColFermiLevel, fermiLevel)
	concentrations.SetColumn(ColElectrons, electrons)
	concentrations.SetColumn(ColHoles, holes)
	concentrations.SetColumn(ColAnnealingTemperature, annealingTemperature)
	concentrations.SetColumn(ColQuenchedTemperature, quenchedTemperature)
	concentrations.DropDuplicates()
	concentrations.RenameColumn(ColTotalConcentration, ColConcentration)
	if dopant != 0 {
		concentrations.SetColumn(ColDopant, math.Abs(dopant))
	}
	return concentrations, nil
}

// addDopantRow appends the effective dopant as an extra species row with
// the magnitude of its fixed concentration.
func addDopantRow(t *Table, dopant float64) {
	if dopant == 0 {
		return
	}
	t.Append(Row{Defect: "Dopant", Values: map[string]float64{
		ColConcentration: math.Abs(dopant),
	}})
}
