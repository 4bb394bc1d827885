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
	"math"
	"testing"

	"github.com/ctessum/geom"
)

// triangleGrid spans the unit right triangle in the (A, B) plane with
// dependent potential C = 1 + A + 2B at the vertices.
func triangleGrid(t *testing.T) *ChemicalPotentialGrid {
	t.Helper()
	g, err := newGridFromVertices([]map[string]float64{
		{"A": 0, "B": 0, "C": 1},
		{"A": 1, "B": 0, "C": 2},
		{"A": 0, "B": 1, "C": 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGridPointsInsideHull(t *testing.T) {
	g := triangleGrid(t)
	pts, err := g.Grid(5)
	if err != nil {
		t.Fatal(err)
	}
	hull := []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	poly := geom.Polygon{hull}
	for _, p := range pts {
		if (geom.Point{X: p["A"], Y: p["B"]}).Within(poly) == geom.Outside {
			t.Errorf("grid point (%g, %g) lies outside the hull", p["A"], p["B"])
		}
	}
}

func TestGridInterpolatesDependentPotential(t *testing.T) {
	const tol = 1e-12
	g := triangleGrid(t)
	pts, err := g.Grid(3)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range pts {
		want := 1 + p["A"] + 2*p["B"]
		if math.Abs(p["C"]-want) > tol {
			t.Errorf("C at (%g, %g): have %g, want %g", p["A"], p["B"], p["C"], want)
		}
	}
}

func TestGridAppendsVertices(t *testing.T) {
	g := triangleGrid(t)
	pts, err := g.Grid(2)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range g.Vertices() {
		found := false
		for _, p := range pts {
			if p["A"] == v["A"] && p["B"] == v["B"] && p["C"] == v["C"] {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("vertex %v missing from grid", v)
		}
	}
}

func TestGridCollinearVertices(t *testing.T) {
	g, err := newGridFromVertices([]map[string]float64{
		{"A": 0, "B": 0, "C": 0},
		{"A": 1, "B": 1, "C": 0},
		{"A": 2, "B": 2, "C": 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Grid(5); err == nil {
		t.Error("expected error for collinear vertices")
	}
}

func TestGridRequiresTernary(t *testing.T) {
	if _, err := newGridFromVertices([]map[string]float64{
		{"A": 0, "B": 0},
		{"A": 1, "B": 1},
	}); err == nil {
		t.Error("expected error for binary system")
	}
}

func TestConvexHullSquare(t *testing.T) {
	pts := []geom.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		{X: 0.5, Y: 0.5}, // interior
	}
	hull := convexHull(pts)
	if len(hull) != 4 {
		t.Errorf("hull size: have %d, want 4", len(hull))
	}
	for _, h := range hull {
		if h.X == 0.5 && h.Y == 0.5 {
			t.Error("interior point should not be a hull vertex")
		}
	}
}

func TestInterpolateChempotsEndpoints(t *testing.T) {
	start := map[string]float64{"A": 0, "B": -2}
	end := map[string]float64{"A": -2, "B": 0}
	sets := interpolateChempots(start, end, 3)
	if len(sets) != 3 {
		t.Fatalf("points: have %d, want 3", len(sets))
	}
	if sets[0]["A"] != 0 || sets[0]["B"] != -2 {
		t.Errorf("start point: have %v", sets[0])
	}
	if sets[1]["A"] != -1 || sets[1]["B"] != -1 {
		t.Errorf("midpoint: have %v, want A=-1 B=-1", sets[1])
	}
	if sets[2]["A"] != -2 || sets[2]["B"] != 0 {
		t.Errorf("end point: have %v", sets[2])
	}
}

func TestParallelMapPreservesOrder(t *testing.T) {
	n := 17
	tables, err := parallelMap(n, 4, func(i int) (*Table, error) {
		tab := NewTable()
		tab.Append(Row{Defect: "x", Values: map[string]float64{ColTemperature: float64(i)}})
		return tab, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, tab := range tables {
		if v := tab.Rows()[0].Values[ColTemperature]; v != float64(i) {
			t.Errorf("slot %d: have %g, want %d", i, v, i)
		}
	}
}
