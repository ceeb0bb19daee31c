// README: Hexagonal grid index mapping H3 cells to positions in the slot pool.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/uber/h3-go/v4"

	"parkmatch/internal/types"
)

const (
	MinResolution = 0
	MaxResolution = 15

	// DefaultResolution gives hexagons with an edge of roughly 174m.
	DefaultResolution = 9
	// DefaultMaxRings bounds the worst-case grid disk for a single query.
	DefaultMaxRings = 10
)

var ErrResolution = errors.New("h3 resolution must be between 0 and 15")

// edgeMeters is the average hexagon edge length per resolution.
var edgeMeters = [...]float64{
	1107712.591, 418676.0055, 158244.6558, 59810.85794, 22606.3794,
	8544.408276, 3229.482772, 1220.629759, 461.3546837, 174.3756680,
	65.90780749, 24.91056065, 9.415526211, 3.559893033, 1.348574562,
	0.509713273,
}

// EdgeMeters returns the average hexagon edge length at the given resolution.
func EdgeMeters(resolution int) float64 {
	if resolution < MinResolution || resolution > MaxResolution {
		return 0
	}
	return edgeMeters[resolution]
}

// Index is not safe for concurrent use; the owning pool serialises access.
type Index struct {
	resolution int
	maxRings   int
	cells      map[h3.Cell][]int
	size       int
}

func NewIndex(resolution, maxRings int) (*Index, error) {
	if resolution < MinResolution || resolution > MaxResolution {
		return nil, fmt.Errorf("%w: got %d", ErrResolution, resolution)
	}
	if maxRings < 1 {
		maxRings = DefaultMaxRings
	}
	return &Index{
		resolution: resolution,
		maxRings:   maxRings,
		cells:      make(map[h3.Cell][]int),
	}, nil
}

func (ix *Index) Resolution() int { return ix.resolution }

// Len is the number of indexed entries.
func (ix *Index) Len() int { return ix.size }

// Cells is the number of distinct occupied cells.
func (ix *Index) Cells() int { return len(ix.cells) }

// Add assigns entry pos to the cell containing p and returns that cell.
func (ix *Index) Add(pos int, p types.Point) h3.Cell {
	cell := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), ix.resolution)
	ix.cells[cell] = append(ix.cells[cell], pos)
	ix.size++
	return cell
}

// Rings returns the grid disk radius needed to cover radiusKm, clamped to
// [1, maxRings].
func (ix *Index) Rings(radiusKm float64) int {
	k := int(math.Ceil(radiusKm * 1000 / EdgeMeters(ix.resolution)))
	if k < 1 {
		k = 1
	}
	if k > ix.maxRings {
		k = ix.maxRings
	}
	return k
}

// Candidates returns the positions of every entry in the grid disk around p,
// ascending and without duplicates. The result is a superset: callers must
// still check the true distance. Radii beyond the ring cap are truncated.
func (ix *Index) Candidates(p types.Point, radiusKm float64) []int {
	if ix.size == 0 {
		return nil
	}
	center := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), ix.resolution)
	disk := h3.GridDisk(center, ix.Rings(radiusKm))

	seen := make(map[int]struct{})
	out := make([]int, 0)
	for _, cell := range disk {
		for _, pos := range ix.cells[cell] {
			if _, dup := seen[pos]; dup {
				continue
			}
			seen[pos] = struct{}{}
			out = append(out, pos)
		}
	}
	sort.Ints(out)
	return out
}
