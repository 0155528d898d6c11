package physics

// Grid is a uniform grid for broad-phase collision queries. Entries are body ids.
type Grid struct {
	cellSize float64
	cols     int
	rows     int
	cells    [][]uint64
}

// NewGrid creates a grid covering width x height with square cells
func NewGrid(width, height, cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 64
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	return &Grid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([][]uint64, cols*rows),
	}
}

// Clear resets all cells (keeps allocated capacity)
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// span returns the clamped cell range overlapping the circle's bounding box
func (g *Grid) span(x, y, radius float64) (minCX, minCY, maxCX, maxCY int) {
	minCX = g.clampCol(int((x - radius) / g.cellSize))
	maxCX = g.clampCol(int((x + radius) / g.cellSize))
	minCY = g.clampRow(int((y - radius) / g.cellSize))
	maxCY = g.clampRow(int((y + radius) / g.cellSize))
	return
}

func (g *Grid) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *Grid) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

// Insert adds an id to all cells overlapping the circle's bounding box
func (g *Grid) Insert(x, y, radius float64, id uint64) {
	minCX, minCY, maxCX, maxCY := g.span(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cy*g.cols + cx
			g.cells[idx] = append(g.cells[idx], id)
		}
	}
}

// QueryBuf appends ids in cells overlapping the bounding box to buf. An id
// spanning several cells appears once per cell.
func (g *Grid) QueryBuf(x, y, radius float64, buf []uint64) []uint64 {
	minCX, minCY, maxCX, maxCY := g.span(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			buf = append(buf, g.cells[cy*g.cols+cx]...)
		}
	}
	return buf
}
