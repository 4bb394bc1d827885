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

// Package sfermi solves the charge-neutrality condition for a full defect
// system: a set of defect species with charge states, formation energies and
// degeneracies, an electronic density of states, and optional
// fixed-concentration constraints.
//
// Concentrations inside this package are per unit cell; callers convert to
// cm^-3 with the cell volume (ConcentrationDict does so for its output).
// DefectSystem values are never mutated: constrained or re-heated systems are
// derived with WithTemperature, WithFixedSpeciesConcentrations and
// WithFixedChargeStateConcentrations.
package sfermi
