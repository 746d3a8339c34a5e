package spatial

import "math"

// FlowField provides O(1) per-agent navigation via a precomputed vector
// field. Instead of running pathfinding per pursuing mob, one field is
// computed per goal and shared by every mob chasing it.
//
// For N mobs converging on one player: 1x field generation instead of N
// individual searches.
type FlowField struct {
	cols, rows  int
	cellSize    float64
	invCellSize float64
	integration []float32 // cost to reach goal from each cell
	flowX       []float32
	flowY       []float32
	blocked     []bool
	queue       []int // reusable BFS queue
}

// NewFlowField creates a flow field covering [0, worldWidth] x [0,
// worldHeight] in room-local coordinates. cellSize trades resolution for
// memory/compute.
func NewFlowField(worldWidth, worldHeight, cellSize float64) *FlowField {
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	size := cols * rows
	return &FlowField{
		cols:        cols,
		rows:        rows,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		integration: make([]float32, size),
		flowX:       make([]float32, size),
		flowY:       make([]float32, size),
		blocked:     make([]bool, size),
		queue:       make([]int, 0, size),
	}
}

// SetBlocked replaces the full impassability mask.
func (f *FlowField) SetBlocked(blocked []bool) {
	if len(blocked) != len(f.blocked) {
		return
	}
	copy(f.blocked, blocked)
}

// SetCellBlocked marks a single cell as blocked/unblocked by local position.
func (f *FlowField) SetCellBlocked(localX, localY float64, isBlocked bool) {
	col := int(localX * f.invCellSize)
	row := int(localY * f.invCellSize)
	if col < 0 || col >= f.cols || row < 0 || row >= f.rows {
		return
	}
	f.blocked[row*f.cols+col] = isBlocked
}

// Generate computes the field toward (goalX, goalY): a BFS integration pass
// from the goal followed by a gradient-descent flow-vector pass. O(cols x
// rows). Call when the goal moves or obstacles change.
func (f *FlowField) Generate(goalX, goalY float64) {
	maxCost := float32(math.MaxFloat32)

	for i := range f.integration {
		f.integration[i] = maxCost
	}

	goalCol := int(goalX * f.invCellSize)
	goalRow := int(goalY * f.invCellSize)
	if goalCol < 0 {
		goalCol = 0
	}
	if goalCol >= f.cols {
		goalCol = f.cols - 1
	}
	if goalRow < 0 {
		goalRow = 0
	}
	if goalRow >= f.rows {
		goalRow = f.rows - 1
	}

	goalIdx := goalRow*f.cols + goalCol
	if f.blocked[goalIdx] {
		return
	}
	f.integration[goalIdx] = 0

	f.queue = f.queue[:0]
	f.queue = append(f.queue, goalIdx)

	dx := []int{-1, 0, 1, -1, 1, -1, 0, 1}
	dy := []int{-1, -1, -1, 0, 0, 1, 1, 1}
	cost := []float32{1.41421356, 1.0, 1.41421356, 1.0, 1.0, 1.41421356, 1.0, 1.41421356}

	head := 0
	for head < len(f.queue) {
		current := f.queue[head]
		head++

		row := current / f.cols
		col := current % f.cols
		currentCost := f.integration[current]

		for i := 0; i < 8; i++ {
			nc := col + dx[i]
			nr := row + dy[i]
			if nc < 0 || nc >= f.cols || nr < 0 || nr >= f.rows {
				continue
			}
			nidx := nr*f.cols + nc
			if f.blocked[nidx] {
				continue
			}
			newCost := currentCost + cost[i]
			if newCost < f.integration[nidx] {
				f.integration[nidx] = newCost
				f.queue = append(f.queue, nidx)
			}
		}
	}

	for idx := 0; idx < len(f.integration); idx++ {
		if f.integration[idx] == maxCost {
			f.flowX[idx], f.flowY[idx] = 0, 0
			continue
		}

		row := idx / f.cols
		col := idx % f.cols
		bestDX, bestDY := float32(0), float32(0)
		bestCost := f.integration[idx]

		for i := 0; i < 8; i++ {
			nc := col + dx[i]
			nr := row + dy[i]
			if nc < 0 || nc >= f.cols || nr < 0 || nr >= f.rows {
				continue
			}
			nidx := nr*f.cols + nc
			if f.integration[nidx] < bestCost {
				bestCost = f.integration[nidx]
				bestDX = float32(dx[i])
				bestDY = float32(dy[i])
			}
		}

		length := float32(math.Sqrt(float64(bestDX*bestDX + bestDY*bestDY)))
		if length > 0 {
			f.flowX[idx] = bestDX / length
			f.flowY[idx] = bestDY / length
		} else {
			f.flowX[idx] = 0
			f.flowY[idx] = 0
		}
	}
}

// Lookup returns the flow direction at local position (x, y), or (0, 0) if
// out of bounds or unreachable. O(1).
func (f *FlowField) Lookup(x, y float64) (vx, vy float32) {
	col := int(x * f.invCellSize)
	row := int(y * f.invCellSize)
	if col < 0 || col >= f.cols || row < 0 || row >= f.rows {
		return 0, 0
	}
	idx := row*f.cols + col
	return f.flowX[idx], f.flowY[idx]
}

// LookupWithCost returns the flow direction and integration cost (lower is
// closer to goal) at (x, y).
func (f *FlowField) LookupWithCost(x, y float64) (vx, vy float32, cost float32) {
	col := int(x * f.invCellSize)
	row := int(y * f.invCellSize)
	if col < 0 || col >= f.cols || row < 0 || row >= f.rows {
		return 0, 0, float32(math.MaxFloat32)
	}
	idx := row*f.cols + col
	return f.flowX[idx], f.flowY[idx], f.integration[idx]
}

// GetCost returns the integration cost at (x, y), or MaxFloat32 if
// unreachable.
func (f *FlowField) GetCost(x, y float64) float32 {
	col := int(x * f.invCellSize)
	row := int(y * f.invCellSize)
	if col < 0 || col >= f.cols || row < 0 || row >= f.rows {
		return float32(math.MaxFloat32)
	}
	return f.integration[row*f.cols+col]
}

// Dimensions returns the field's grid dimensions.
func (f *FlowField) Dimensions() (cols, rows int, cellSize float64) {
	return f.cols, f.rows, f.cellSize
}

// FlowFieldManager owns one FlowField per pursuit goal (e.g. a room's
// current aggro target), keyed by an opaque goal key.
type FlowFieldManager struct {
	worldWidth  float64
	worldHeight float64
	cellSize    float64
	fields      map[string]*FlowField
}

// NewFlowFieldManager creates a manager whose fields share the given extent
// and resolution.
func NewFlowFieldManager(worldWidth, worldHeight, cellSize float64) *FlowFieldManager {
	return &FlowFieldManager{
		worldWidth:  worldWidth,
		worldHeight: worldHeight,
		cellSize:    cellSize,
		fields:      make(map[string]*FlowField),
	}
}

// GetOrCreate returns the field for goalKey, generating it toward (goalX,
// goalY) if it doesn't exist yet.
func (m *FlowFieldManager) GetOrCreate(goalKey string, goalX, goalY float64) *FlowField {
	if field, ok := m.fields[goalKey]; ok {
		return field
	}
	field := NewFlowField(m.worldWidth, m.worldHeight, m.cellSize)
	field.Generate(goalX, goalY)
	m.fields[goalKey] = field
	return field
}

// Regenerate recomputes the field for goalKey. Call when the goal moves or
// room obstacles change.
func (m *FlowFieldManager) Regenerate(goalKey string, goalX, goalY float64) *FlowField {
	field := NewFlowField(m.worldWidth, m.worldHeight, m.cellSize)
	field.Generate(goalX, goalY)
	m.fields[goalKey] = field
	return field
}

// Remove discards the field for goalKey.
func (m *FlowFieldManager) Remove(goalKey string) {
	delete(m.fields, goalKey)
}

// Clear discards all fields.
func (m *FlowFieldManager) Clear() {
	m.fields = make(map[string]*FlowField)
}
