// Package spatial provides cache-efficient spatial and concurrent data
// structures used by the simulation: a uniform grid for broad-phase proximity
// queries, a sweep-and-prune broad phase, a flow-field pathfinder, and
// lock-free SPSC/MPSC ring buffers for input ingestion.
//
// All structures use preallocated slices with integer indices (not pointers)
// to minimize GC pressure and maximize cache locality.
package spatial

import "math"

// Grid provides O(1) average spatial queries via fixed-size cells over a
// bounded plane centered on the origin (half-extent on each axis). Entity
// coordinates may be negative; Grid shifts them internally.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col]).
type Grid struct {
	halfExtent  float64
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32
}

// NewGrid creates a grid covering [-halfExtent, +halfExtent] on both axes.
// cellSize should equal the largest query radius for optimal performance.
// maxEntities is used to preallocate cell capacity.
func NewGrid(halfExtent, cellSize float64, maxEntities int) *Grid {
	span := halfExtent * 2
	cols := int(math.Ceil(span / cellSize))
	rows := int(math.Ceil(span / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &Grid{
		halfExtent:  halfExtent,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear resets all cells without deallocating underlying memory.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *Grid) clampedCell(x, y float64) (col, row int) {
	col = int((x + g.halfExtent) * g.invCellSize)
	row = int((y + g.halfExtent) * g.invCellSize)
	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}

// Insert adds an entity at position (x, y). entityID should be a stable index
// into the caller's entity slice. O(1).
func (g *Grid) Insert(entityID uint32, x, y float64) {
	col, row := g.clampedCell(x, y)
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], entityID)
}

// QueryRadius returns all entity IDs potentially within radius of (cx, cy).
// The returned slice is reused on subsequent calls (narrow-phase distance
// checks are the caller's responsibility).
func (g *Grid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol, minRow := g.clampedCell(cx-radius, cy-radius)
	maxCol, maxRow := g.clampedCell(cx+radius, cy+radius)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			idx := row*g.cols + col
			g.scratch = append(g.scratch, g.cells[idx]...)
		}
	}

	return g.scratch
}

// QueryCell returns all entity IDs in the cell containing (x, y).
func (g *Grid) QueryCell(x, y float64) []uint32 {
	col, row := g.clampedCell(x, y)
	return g.cells[row*g.cols+col]
}

// Stats returns grid occupancy statistics for debugging/profiling.
func (g *Grid) Stats() GridStats {
	var totalEntities, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		count := len(cell)
		totalEntities += count
		if count > maxInCell {
			maxInCell = count
		}
		if count > 0 {
			nonEmpty++
		}
	}

	avgPerCell := 0.0
	if nonEmpty > 0 {
		avgPerCell = float64(totalEntities) / float64(nonEmpty)
	}

	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		TotalEntities:  totalEntities,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avgPerCell,
	}
}

// GridStats contains grid statistics for debugging.
type GridStats struct {
	TotalCells     int
	NonEmptyCells  int
	TotalEntities  int
	MaxInCell      int
	AvgPerNonEmpty float64
}

// Dimensions returns the grid dimensions.
func (g *Grid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
