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
	"sort"

	"github.com/ctessum/geom"
)

// ChemicalPotentialGrid generates sampling points spanning the stability
// region bounded by a set of chemical-potential limits. The elements are
// kept in sorted order; the first two act as independent axes and the
// last as the dependent variable, linearly interpolated over the region.
// Only ternary systems (two independent axes) are supported.
type ChemicalPotentialGrid struct {
	elements []string
	vertices []map[string]float64
}

// NewChemicalPotentialGrid builds a grid generator from the
// formal chemical-potential limits of c.
func NewChemicalPotentialGrid(c *ChemPots) (*ChemicalPotentialGrid, error) {
	if c == nil || len(c.Limits) == 0 {
		return nil, fmt.Errorf("scfermi: chemical-potential grid requires at least one limit")
	}
	vertices := make([]map[string]float64, 0, len(c.Limits))
	for _, label := range sortedLimitLabels(c.Limits) {
		vertices = append(vertices, copyChemPotSet(c.Limits[label]))
	}
	return newGridFromVertices(vertices)
}

func newGridFromVertices(vertices []map[string]float64) (*ChemicalPotentialGrid, error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("scfermi: chemical-potential grid requires at least one vertex")
	}
	elements := sortedKeys(vertices[0])
	if len(elements) != 3 {
		return nil, fmt.Errorf("scfermi: chemical-potential grids are only supported for ternary systems, got %d elements", len(elements))
	}
	for _, v := range vertices {
		if !sameElements(elements, v) {
			return nil, fmt.Errorf("scfermi: inconsistent elements across chemical-potential vertices")
		}
	}
	return &ChemicalPotentialGrid{elements: elements, vertices: vertices}, nil
}

// Elements returns the element symbols in sorted order; the last one is
// the dependent variable.
func (g *ChemicalPotentialGrid) Elements() []string {
	return append([]string{}, g.elements...)
}

// Vertices returns copies of the bounding chemical-potential sets.
func (g *ChemicalPotentialGrid) Vertices() []map[string]float64 {
	out := make([]map[string]float64, len(g.vertices))
	for i, v := range g.vertices {
		out[i] = copyChemPotSet(v)
	}
	return out
}

// Grid generates nPoints points along each independent axis (values below
// 2 default to 100), keeps those inside the convex hull of the vertices
// (edge points count as inside), interpolates the dependent chemical
// potential at each kept point, and appends the vertices themselves. The
// final point count is therefore usually less than nPoints squared.
func (g *ChemicalPotentialGrid) Grid(nPoints int) ([]map[string]float64, error) {
	if nPoints < 2 {
		nPoints = 100
	}
	xEl, yEl, depEl := g.elements[0], g.elements[1], g.elements[2]

	points := make([]geom.Point, len(g.vertices))
	for i, v := range g.vertices {
		points[i] = geom.Point{X: v[xEl], Y: v[yEl]}
	}
	hull := convexHull(points)
	if len(hull) < 3 {
		return nil, fmt.Errorf("scfermi: chemical-potential vertices are collinear; cannot construct a 2D grid")
	}
	poly := geom.Polygon{hull}

	xMin, xMax := points[0].X, points[0].X
	yMin, yMax := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		if p.X < xMin {
			xMin = p.X
		}
		if p.X > xMax {
			xMax = p.X
		}
		if p.Y < yMin {
			yMin = p.Y
		}
		if p.Y > yMax {
			yMax = p.Y
		}
	}

	var grid []map[string]float64
	for i := 0; i < nPoints; i++ {
		x := xMin + (xMax-xMin)*float64(i)/float64(nPoints-1)
		for j := 0; j < nPoints; j++ {
			y := yMin + (yMax-yMin)*float64(j)/float64(nPoints-1)
			pt := geom.Point{X: x, Y: y}
			if pt.Within(poly) == geom.Outside {
				continue
			}
			dep, ok := g.interpolate(pt, hull)
			if !ok {
				continue
			}
			grid = append(grid, map[string]float64{xEl: x, yEl: y, depEl: dep})
		}
	}
	for _, v := range g.vertices {
		grid = append(grid, copyChemPotSet(v))
	}
	return grid, nil
}

// interpolate evaluates the dependent chemical potential at pt by
// barycentric interpolation over a triangle fan of the hull.
func (g *ChemicalPotentialGrid) interpolate(pt geom.Point, hull []geom.Point) (float64, bool) {
	depEl := g.elements[2]
	value := func(p geom.Point) float64 {
		xEl, yEl := g.elements[0], g.elements[1]
		for _, v := range g.vertices {
			if v[xEl] == p.X && v[yEl] == p.Y {
				return v[depEl]
			}
		}
		return 0
	}
	for i := 1; i < len(hull)-1; i++ {
		a, b, c := hull[0], hull[i], hull[i+1]
		w0, w1, w2, ok := barycentric(pt, a, b, c)
		if ok {
			return w0*value(a) + w1*value(b) + w2*value(c), true
		}
	}
	return 0, false
}

// barycentric returns the barycentric coordinates of pt within the
// triangle abc, and whether pt lies inside it (with a small tolerance for
// points on the triangle boundary).
func barycentric(pt, a, b, c geom.Point) (w0, w1, w2 float64, inside bool) {
	det := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if det == 0 {
		return 0, 0, 0, false
	}
	w0 = ((b.Y-c.Y)*(pt.X-c.X) + (c.X-b.X)*(pt.Y-c.Y)) / det
	w1 = ((c.Y-a.Y)*(pt.X-c.X) + (a.X-c.X)*(pt.Y-c.Y)) / det
	w2 = 1 - w0 - w1
	const tol = 1e-12
	inside = w0 >= -tol && w1 >= -tol && w2 >= -tol
	return w0, w1, w2, inside
}

// convexHull returns the convex hull of the points in counter-clockwise
// order using Andrew's monotone chain.
func convexHull(points []geom.Point) []geom.Point {
	pts := append([]geom.Point{}, points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	// Drop exact duplicates so they cannot stall the chain.
	uniq := pts[:0]
	for i, p := range pts {
		if i == 0 || p != pts[i-1] {
			uniq = append(uniq, p)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		return pts
	}

	cross := func(o, a, b geom.Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}
	var lower, upper []geom.Point
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}
