package vector

import (
	"math"
	"sort"
)

// SquaredL2 returns the squared Euclidean distance between a and b.
// Callers must ensure len(a) == len(b).
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// DistanceLess orders distances ascending with NaN after every number. Two NaNs
// are equivalent, so callers can fall through to their own tie-breaks.
func DistanceLess(a, b float64) bool {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	if aNaN || bNaN {
		return !aNaN
	}
	return a < b
}

// sortNeighbors orders neighbors by distance, then row.
func sortNeighbors(ns []Neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if DistanceLess(ns[i].Distance, ns[j].Distance) {
			return true
		}
		if DistanceLess(ns[j].Distance, ns[i].Distance) {
			return false
		}
		return ns[i].Row < ns[j].Row
	})
}
