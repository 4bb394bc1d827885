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
	"reflect"
	"testing"
)

func TestTableAppendRegistersColumns(t *testing.T) {
	tab := NewTable(ColConcentration)
	tab.Append(Row{Defect: "v_A", Values: map[string]float64{
		ColConcentration: 1e15,
		ColFermiLevel:    0.4,
	}})
	want := []string{ColConcentration, ColFermiLevel}
	if have := tab.Columns(); !reflect.DeepEqual(have, want) {
		t.Errorf("columns: have %v, want %v", have, want)
	}
	if tab.Len() != 1 {
		t.Errorf("rows: have %d, want 1", tab.Len())
	}
}

func TestTableSetColumn(t *testing.T) {
	tab := NewTable()
	tab.Append(Row{Defect: "v_A", Values: map[string]float64{ColConcentration: 1}})
	tab.Append(Row{Defect: "i_B", Values: map[string]float64{ColConcentration: 2}})
	tab.SetColumn(ColTemperature, 300)
	vals, ok := tab.Column(ColTemperature)
	if !ok {
		t.Fatal("temperature column missing")
	}
	for i, v := range vals {
		if v != 300 {
			t.Errorf("row %d: have %g, want 300", i, v)
		}
	}
}

func TestTableRenameColumnPreservesPosition(t *testing.T) {
	tab := NewTable("a", "b", "c")
	tab.Append(Row{Defect: "x", Values: map[string]float64{"a": 1, "b": 2, "c": 3}})
	tab.RenameColumn("b", "d")
	want := []string{"a", "d", "c"}
	if have := tab.Columns(); !reflect.DeepEqual(have, want) {
		t.Errorf("columns: have %v, want %v", have, want)
	}
	if v, err := tab.Value("x", "d"); err != nil || v != 2 {
		t.Errorf("renamed value: have %g (err %v), want 2", v, err)
	}
}

func TestTableDropDuplicates(t *testing.T) {
	tab := NewTable()
	row := map[string]float64{ColConcentration: 5, ColFermiLevel: 0.1}
	tab.Append(Row{Defect: "v_A", Values: row})
	tab.Append(Row{Defect: "v_A", Values: map[string]float64{ColConcentration: 5, ColFermiLevel: 0.1}})
	tab.Append(Row{Defect: "v_A", Values: map[string]float64{ColConcentration: 6, ColFermiLevel: 0.1}})
	tab.DropDuplicates()
	if tab.Len() != 2 {
		t.Errorf("rows after dedup: have %d, want 2", tab.Len())
	}
}

func TestTableDropColumns(t *testing.T) {
	tab := NewTable()
	tab.Append(Row{Defect: "v_A", Values: map[string]float64{
		ColCharge:        1,
		ColConcentration: 5,
	}})
	tab.DropColumns(ColCharge)
	if tab.HasColumn(ColCharge) {
		t.Error("charge column should be gone")
	}
	if _, err := tab.Value("v_A", ColCharge); err == nil {
		t.Error("expected error reading dropped column")
	}
}

func TestTableConcatOrder(t *testing.T) {
	a := NewTable()
	a.Append(Row{Defect: "first", Values: map[string]float64{ColConcentration: 1}})
	b := NewTable()
	b.Append(Row{Defect: "second", Values: map[string]float64{ColConcentration: 2, ColDopant: 3}})
	a.Concat(b)
	if a.Len() != 2 {
		t.Fatalf("rows: have %d, want 2", a.Len())
	}
	if a.Rows()[0].Defect != "first" || a.Rows()[1].Defect != "second" {
		t.Errorf("row order: have %q, %q", a.Rows()[0].Defect, a.Rows()[1].Defect)
	}
	if !a.HasColumn(ColDopant) {
		t.Error("concat should merge columns")
	}
}

func TestTableMinMaxColumn(t *testing.T) {
	tab := NewTable()
	for _, v := range []float64{3, 1, 2} {
		tab.Append(Row{Defect: "x", Values: map[string]float64{ColElectrons: v}})
	}
	if v, err := tab.MinMaxColumn(ColElectrons, "min"); err != nil || v != 1 {
		t.Errorf("min: have %g (err %v), want 1", v, err)
	}
	if v, err := tab.MinMaxColumn(ColElectrons, "max"); err != nil || v != 3 {
		t.Errorf("max: have %g (err %v), want 3", v, err)
	}
	if _, err := tab.MinMaxColumn(ColElectrons, "middle"); err == nil {
		t.Error("expected error for bad sense")
	}
}
