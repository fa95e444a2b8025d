// Package rtree implements a spatial R-tree index over float vectors (2D
// or 3D points), arena-addressed like the engine's B+ tree, with quadratic
// split on overflow, MINDIST-pruned range queries and a best-first KNN.
package rtree

import "math"

// MBR is a minimum bounding rectangle in an arbitrary number of dimensions.
type MBR struct {
	Lower []float64
	Upper []float64
}

func mbrFromPoint(p []float64) MBR {
	lo := append([]float64{}, p...)
	up := append([]float64{}, p...)
	return MBR{Lower: lo, Upper: up}
}

func (m MBR) area() float64 {
	a := 1.0
	for i := range m.Lower {
		a *= m.Upper[i] - m.Lower[i]
	}
	return a
}

func (m MBR) union(o MBR) MBR {
	lo := make([]float64, len(m.Lower))
	up := make([]float64, len(m.Lower))
	for i := range m.Lower {
		lo[i] = math.Min(m.Lower[i], o.Lower[i])
		up[i] = math.Max(m.Upper[i], o.Upper[i])
	}
	return MBR{Lower: lo, Upper: up}
}

func (m MBR) enlargement(o MBR) float64 {
	return m.union(o).area() - m.area()
}

func mindist(point []float64, m MBR) float64 {
	sumSq := 0.0
	for i, qi := range point {
		li, ui := m.Lower[i], m.Upper[i]
		var ri float64
		switch {
		case qi < li:
			ri = li
		case qi > ui:
			ri = ui
		default:
			ri = qi
		}
		d := qi - ri
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}

func euclidean(a, b []float64) float64 {
	sumSq := 0.0
	for i := range a {
		d := a[i] - b[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}

func mbrOfGroup(mbrs []MBR) MBR {
	dims := len(mbrs[0].Lower)
	lo := make([]float64, dims)
	up := make([]float64, dims)
	for i := 0; i < dims; i++ {
		lo[i] = mbrs[0].Lower[i]
		up[i] = mbrs[0].Upper[i]
	}
	for _, m := range mbrs[1:] {
		for i := 0; i < dims; i++ {
			if m.Lower[i] < lo[i] {
				lo[i] = m.Lower[i]
			}
			if m.Upper[i] > up[i] {
				up[i] = m.Upper[i]
			}
		}
	}
	return MBR{Lower: lo, Upper: up}
}
