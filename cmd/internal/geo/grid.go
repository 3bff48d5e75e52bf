package geo

import (
	"math"
	"sync"
)

const defaultCellSizeMeters = 2000

// Grid is a spatial hash index over points keyed by id. Space is cut into square
// cells (in degrees); a radius query only visits the cells overlapping the query's
// bounding box, then filters candidates by exact great-circle distance.
//
// Insert/remove are O(1); a query visits the smaller of the cells overlapping
// the bounding box and the occupied cells. Near the poles or for very large radii the bounding box degenerates and the
// query falls back to a full scan.
type Grid struct {
	mu      sync.RWMutex
	cellDeg float64
	cells   map[cellKey]map[string]Point
	entries map[string]gridEntry
}

type cellKey struct {
	X, Y int
}

type gridEntry struct {
	point Point
	key   cellKey
}

// Hit is a query result: an indexed id, its point and distance from the query center.
type Hit struct {
	ID             string
	Point          Point
	DistanceMeters float64
}

// NewGrid creates a grid whose cells are roughly cellSizeMeters wide at the equator.
func NewGrid(cellSizeMeters float64) *Grid {
	if cellSizeMeters <= 0 {
		cellSizeMeters = defaultCellSizeMeters
	}
	return &Grid{
		cellDeg: cellSizeMeters / metersPerDegree,
		cells:   make(map[cellKey]map[string]Point),
		entries: make(map[string]gridEntry),
	}
}

func (g *Grid) keyFor(p Point) cellKey {
	return cellKey{
		X: int(math.Floor(p.Lon / g.cellDeg)),
		Y: int(math.Floor(p.Lat / g.cellDeg)),
	}
}

// Set inserts or moves the entry for id.
func (g *Grid) Set(id string, p Point) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.entries[id]; ok {
		g.removeFromCellLocked(id, old.key)
	}

	key := g.keyFor(p)
	cell := g.cells[key]
	if cell == nil {
		cell = make(map[string]Point, 4)
		g.cells[key] = cell
	}
	cell[id] = p
	g.entries[id] = gridEntry{point: p, key: key}
}

// Remove deletes the entry for id and reports whether it existed.
func (g *Grid) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[id]
	if !ok {
		return false
	}
	g.removeFromCellLocked(id, e.key)
	delete(g.entries, id)
	return true
}

// caller must hold g.mu
func (g *Grid) removeFromCellLocked(id string, key cellKey) {
	cell := g.cells[key]
	if cell == nil {
		return
	}
	delete(cell, id)
	if len(cell) == 0 {
		delete(g.cells, key)
	}
}

// Get returns the point stored for id.
func (g *Grid) Get(id string) (Point, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.entries[id]
	return e.point, ok
}

// Len returns the number of indexed entries.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Within returns every entry whose distance from center is <= radiusMeters.
// Results are unordered.
func (g *Grid) Within(center Point, radiusMeters float64) []Hit {
	if radiusMeters < 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Hit
	consider := func(id string, p Point) {
		d := DistanceMeters(center, p)
		if d <= radiusMeters {
			out = append(out, Hit{ID: id, Point: p, DistanceMeters: d})
		}
	}

	latSpan := radiusMeters / metersPerDegree
	maxAbsLat := math.Abs(center.Lat) + latSpan
	if maxAbsLat >= 89 {
		for id, e := range g.entries {
			consider(id, e.point)
		}
		return out
	}
	lonSpan := latSpan / math.Cos(maxAbsLat*math.Pi/180)
	if lonSpan >= 180 {
		for id, e := range g.entries {
			consider(id, e.point)
		}
		return out
	}

	minY := int(math.Floor((center.Lat - latSpan) / g.cellDeg))
	maxY := int(math.Floor((center.Lat + latSpan) / g.cellDeg))

	var boxes []cellBox
	visits := 0
	for _, band := range lonBands(center.Lon-lonSpan, center.Lon+lonSpan) {
		b := cellBox{
			minX: int(math.Floor(band[0] / g.cellDeg)),
			maxX: int(math.Floor(band[1] / g.cellDeg)),
			minY: minY,
			maxY: maxY,
		}
		boxes = append(boxes, b)
		visits += b.size()
	}

	// A sparse grid is cheaper to walk cell by cell than box by box.
	if visits > len(g.cells) {
		for key, cell := range g.cells {
			for _, b := range boxes {
				if b.contains(key) {
					for id, p := range cell {
						consider(id, p)
					}
					break
				}
			}
		}
		return out
	}

	for _, b := range boxes {
		for x := b.minX; x <= b.maxX; x++ {
			for y := b.minY; y <= b.maxY; y++ {
				for id, p := range g.cells[cellKey{X: x, Y: y}] {
					consider(id, p)
				}
			}
		}
	}
	return out
}

// cellBox is an inclusive rectangle of cell keys.
type cellBox struct {
	minX, maxX, minY, maxY int
}

func (b cellBox) size() int { return (b.maxX - b.minX + 1) * (b.maxY - b.minY + 1) }

func (b cellBox) contains(k cellKey) bool {
	return k.X >= b.minX && k.X <= b.maxX && k.Y >= b.minY && k.Y <= b.maxY
}

// lonBands splits [lo, hi] into at most two intervals inside [-180, 180],
// wrapping across the antimeridian.
func lonBands(lo, hi float64) [][2]float64 {
	switch {
	case lo < -180:
		return [][2]float64{{-180, hi}, {lo + 360, 180}}
	case hi > 180:
		return [][2]float64{{lo, 180}, {-180, hi - 360}}
	default:
		return [][2]float64{{lo, hi}}
	}
}
