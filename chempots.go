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
)

// ChemPots holds a set of named chemical-potential limits together with the
// elemental reference energies they are expressed against. Limit values are
// formal chemical potentials, i.e. relative to the elemental references;
// adding the references recovers the absolute values used in formation
// energies.
//
// ChemPots is constructed once (at solver initialization or by ParseChemPots)
// and treated as immutable afterwards; callers supply a fresh value to
// override it per call.
type ChemPots struct {
	// Limits maps a limit label (e.g. "Cd-rich") to element symbol →
	// formal chemical potential [eV].
	Limits map[string]map[string]float64
	// ElementalRefs maps element symbol → reference energy [eV].
	ElementalRefs map[string]float64
}

// ParseChemPots validates a set of chemical-potential limits and reference
// energies. Missing references default to zero. Every limit must share the
// same element set, and no value may be NaN.
func ParseChemPots(limits map[string]map[string]float64, elRefs map[string]float64) (*ChemPots, error) {
	if len(limits) == 0 {
		return nil, fmt.Errorf("scfermi: no chemical-potential limits supplied")
	}
	var elements []string
	for _, label := range sortedLimitLabels(limits) {
		set := limits[label]
		if elements == nil {
			for el := range set {
				elements = append(elements, el)
			}
			sort.Strings(elements)
		} else if !sameElements(elements, set) {
			return nil, fmt.Errorf("scfermi: limit %q does not cover the same elements as the other limits", label)
		}
		for el, mu := range set {
			if math.IsNaN(mu) {
				return nil, fmt.Errorf("scfermi: chemical potential of %s in limit %q is NaN", el, label)
			}
		}
	}
	c := &ChemPots{
		Limits:        make(map[string]map[string]float64, len(limits)),
		ElementalRefs: make(map[string]float64, len(elements)),
	}
	for label, set := range limits {
		c.Limits[label] = copyChemPotSet(set)
	}
	for _, el := range elements {
		c.ElementalRefs[el] = elRefs[el]
	}
	return c, nil
}

// SingleLimit wraps one chemical-potential set as a ChemPots with a single
// limit. elRefs may be nil when the values are already absolute.
func SingleLimit(set map[string]float64, elRefs map[string]float64) (*ChemPots, error) {
	return ParseChemPots(map[string]map[string]float64{"User Chemical Potentials": set}, elRefs)
}

// Limit resolves a limit label to its chemical-potential set. Besides exact
// labels, "X-rich" and "X-poor" select the limit with the highest or lowest
// chemical potential of element X.
func (c *ChemPots) Limit(label string) (map[string]float64, error) {
	if set, ok := c.Limits[label]; ok {
		return copyChemPotSet(set), nil
	}
	if el, rich, ok := richPoorLabel(label); ok {
		best := ""
		for _, cand := range sortedLimitLabels(c.Limits) {
			mu, ok := c.Limits[cand][el]
			if !ok {
				continue
			}
			if best == "" {
				best = cand
				continue
			}
			if rich && mu > c.Limits[best][el] || !rich && mu < c.Limits[best][el] {
				best = cand
			}
		}
		if best != "" {
			return copyChemPotSet(c.Limits[best]), nil
		}
	}
	return nil, fmt.Errorf("scfermi: unrecognised chemical-potential limit %q; available limits are %v",
		label, sortedLimitLabels(c.Limits))
}

// LimitLabels returns the limit labels in sorted order.
func (c *ChemPots) LimitLabels() []string {
	return sortedLimitLabels(c.Limits)
}

// FirstLimit returns the chemical-potential set of the alphabetically first
// limit, used when a caller supplies neither a set nor a label.
func (c *ChemPots) FirstLimit() map[string]float64 {
	labels := sortedLimitLabels(c.Limits)
	return copyChemPotSet(c.Limits[labels[0]])
}

// Absolute adds the elemental reference energies to a formal
// chemical-potential set. Elements without a reference are passed through
// unchanged.
func (c *ChemPots) Absolute(set map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(set))
	for el, mu := range set {
		out[el] = mu + c.ElementalRefs[el]
	}
	return out
}

func richPoorLabel(label string) (element string, rich bool, ok bool) {
	switch {
	case strings.HasSuffix(label, "-rich"):
		return strings.TrimSuffix(label, "-rich"), true, true
	case strings.HasSuffix(label, "-poor"):
		return strings.TrimSuffix(label, "-poor"), false, true
	}
	return "", false, false
}

func sortedLimitLabels(limits map[string]map[string]float64) []string {
	labels := make([]string, 0, len(limits))
	for l := range limits {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func sameElements(elements []string, set map[string]float64) bool {
	if len(elements) != len(set) {
		return false
	}
	for _, el := range elements {
		if _, ok := set[el]; !ok {
			return false
		}
	}
	return true
}

func copyChemPotSet(set map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(set))
	for el, mu := range set {
		out[el] = mu
	}
	return out
}
