// README: H3 cell description helpers backing the location endpoints.
package spatial

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/uber/h3-go/v4"

	"parkmatch/internal/types"
)

var ErrInvalidCell = errors.New("invalid h3 index")

type CellInfo struct {
	Index      string
	IndexInt   uint64
	Resolution int
	Center     types.Point
	Boundary   []types.Point
}

// Describe returns the cell containing p at the given resolution.
func Describe(p types.Point, resolution int) (CellInfo, error) {
	if resolution < MinResolution || resolution > MaxResolution {
		return CellInfo{}, fmt.Errorf("%w: got %d", ErrResolution, resolution)
	}
	cell := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), resolution)
	return describeCell(cell), nil
}

// DescribeIndex parses a cell given as a hex string or a decimal integer.
func DescribeIndex(raw string) (CellInfo, error) {
	cell, err := ParseCell(raw)
	if err != nil {
		return CellInfo{}, err
	}
	return describeCell(cell), nil
}

// Disk lists the cells within k rings of the cell containing p, center first.
func Disk(p types.Point, resolution, k int) (string, []string, error) {
	if resolution < MinResolution || resolution > MaxResolution {
		return "", nil, fmt.Errorf("%w: got %d", ErrResolution, resolution)
	}
	if k < 0 {
		return "", nil, errors.New("radius must not be negative")
	}
	center := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), resolution)
	disk := h3.GridDisk(center, k)
	out := make([]string, len(disk))
	for i, c := range disk {
		out[i] = c.String()
	}
	return center.String(), out, nil
}

func ParseCell(raw string) (h3.Cell, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		v, err = strconv.ParseUint(raw, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidCell, raw)
		}
	}
	cell := h3.Cell(v)
	if !cell.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCell, raw)
	}
	return cell, nil
}

func describeCell(cell h3.Cell) CellInfo {
	center := h3.CellToLatLng(cell)
	boundary := h3.CellToBoundary(cell)
	pts := make([]types.Point, len(boundary))
	for i, ll := range boundary {
		pts[i] = types.Point{Lat: ll.Lat, Lng: ll.Lng}
	}
	return CellInfo{
		Index:      cell.String(),
		IndexInt:   uint64(cell),
		Resolution: cell.Resolution(),
		Center:     types.Point{Lat: center.Lat, Lng: center.Lng},
		Boundary:   pts,
	}
}
