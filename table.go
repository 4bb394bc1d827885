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
)

// Names of the columns shared by all solver output tables. Downstream
// reporting tools key on these exact strings, so they are part of the
// external contract.
const (
	ColFermiLevel            = "Fermi Level"
	ColElectrons             = "Electrons (cm^-3)"
	ColHoles                 = "Holes (cm^-3)"
	ColConcentration         = "Concentration (cm^-3)"
	ColTotalConcentration    = "Total Concentration (cm^-3)"
	ColTemperature           = "Temperature"
	ColAnnealingTemperature  = "Annealing Temperature"
	ColQuenchedTemperature   = "Quenched Temperature"
	ColDopant                = "Dopant (cm^-3)"
	ColCharge                = "Charge"
	ColChargeStatePopulation = "Charge State Population"
	ColFormationEnergy       = "Formation Energy (eV)"
)

// A Row is one record of a result Table: a defect label plus float-valued
// columns. All columns except the label are float64; charge states are
// stored as floats holding integral values.
type Row struct {
	Defect string
	Values map[string]float64
}

// clone returns a deep copy of the row.
func (r Row) clone() Row {
	v := make(map[string]float64, len(r.Values))
	for k, val := range r.Values {
		v[k] = val
	}
	return Row{Defect: r.Defect, Values: v}
}

// A Table is a row-indexed tabular result, with one row per defect label
// (or per defect charge state, for decomposed intermediate results) and a
// defined column order. It is the common output shape of every solver entry
// point, regardless of backend.
type Table struct {
	cols []string
	rows []Row
}

// NewTable returns an empty table with the given column order.
func NewTable(columns ...string) *Table {
	return &Table{cols: append([]string{}, columns...)}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string { return append([]string{}, t.cols...) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the rows in order.
func (t *Table) Rows() []Row { return t.rows }

// Append adds a row, registering any columns the table has not seen yet.
func (t *Table) Append(r Row) {
	for _, c := range sortedKeys(r.Values) {
		if !t.HasColumn(c) {
			t.cols = append(t.cols, c)
		}
	}
	t.rows = append(t.rows, r)
}

// HasColumn reports whether the table contains the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.cols {
		if c == name {
			return true
		}
	}
	return false
}

// SetColumn assigns the same value to the named column in every row,
// creating the column if necessary.
func (t *Table) SetColumn(name string, value float64) {
	if !t.HasColumn(name) {
		t.cols = append(t.cols, name)
	}
	for i := range t.rows {
		t.rows[i].Values[name] = value
	}
}

// Column returns the values of the named column in row order, and whether
// the column exists.
func (t *Table) Column(name string) ([]float64, bool) {
	if !t.HasColumn(name) {
		return nil, false
	}
	v := make([]float64, len(t.rows))
	for i, r := range t.rows {
		v[i] = r.Values[name]
	}
	return v, true
}

// Value returns the value in the named column of the first row with the
// given defect label.
func (t *Table) Value(defect, column string) (float64, error) {
	for _, r := range t.rows {
		if r.Defect == defect {
			v, ok := r.Values[column]
			if !ok {
				return 0, fmt.Errorf("scfermi: table has no column %q", column)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("scfermi: table has no row for defect %q", defect)
}

// Filter returns a new table holding the rows for which keep returns true.
// Rows are shared, not copied.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{cols: append([]string{}, t.cols...)}
	for _, r := range t.rows {
		if keep(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// DropColumns removes the named columns from the table and from every row.
func (t *Table) DropColumns(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := t.cols[:0]
	for _, c := range t.cols {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	t.cols = kept
	for i := range t.rows {
		for n := range drop {
			delete(t.rows[i].Values, n)
		}
	}
}

// RenameColumn renames a column, preserving its position in the column
// order. Renaming a missing column is a no-op.
func (t *Table) RenameColumn(old, new string) {
	for i, c := range t.cols {
		if c == old {
			t.cols[i] = new
		}
	}
	for i := range t.rows {
		if v, ok := t.rows[i].Values[old]; ok {
			delete(t.rows[i].Values, old)
			t.rows[i].Values[new] = v
		}
	}
}

// DropDuplicates removes rows that are exactly equal (same label, same
// column values) to an earlier row. Only exact equality collapses rows;
// there is no tolerance.
func (t *Table) DropDuplicates() {
	kept := t.rows[:0]
	for _, r := range t.rows {
		dup := false
		for _, k := range kept {
			if rowsEqual(r, k) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, r)
		}
	}
	t.rows = kept
}

func rowsEqual(a, b Row) bool {
	if a.Defect != b.Defect || len(a.Values) != len(b.Values) {
		return false
	}
	for k, va := range a.Values {
		vb, ok := b.Values[k]
		if !ok || va != vb {
			return false
		}
	}
	return true
}

// Concat appends the rows of each table to t in argument order, merging
// column sets. Row order within each input is preserved, so concatenated
// scan output is deterministic in input iteration order.
func (t *Table) Concat(tables ...*Table) {
	for _, other := range tables {
		if other == nil {
			continue
		}
		for _, c := range other.cols {
			if !t.HasColumn(c) {
				t.cols = append(t.cols, c)
			}
		}
		t.rows = append(t.rows, other.rows...)
	}
}

// MinMaxColumn returns the minimum or maximum value of the named column.
// sense must be "min" or "max".
func (t *Table) MinMaxColumn(name, sense string) (float64, error) {
	vals, ok := t.Column(name)
	if !ok {
		return 0, fmt.Errorf("scfermi: table has no column %q", name)
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("scfermi: table is empty")
	}
	best := vals[0]
	for _, v := range vals[1:] {
		switch sense {
		case "min":
			best = math.Min(best, v)
		case "max":
			best = math.Max(best, v)
		default:
			return 0, fmt.Errorf("scfermi: sense must be \"min\" or \"max\", got %q", sense)
		}
	}
	return best, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
