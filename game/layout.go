package game

import (
	"errors"
	"fmt"
	"strconv"
)

// NoMove marks a result without a chosen square (leaf, terminal or pass).
const NoMove = -1

var ErrBadLabel = errors.New("bad square label")

// Layout describes a bordered board: the playable interior is surrounded by a
// ring of Outer cells so directional scans only need a single validity test.
type Layout struct {
	Rows int
	Cols int
}

func NewLayout(rows, cols int) (Layout, error) {
	if rows <= 0 || cols <= 0 {
		return Layout{}, fmt.Errorf("board size %dx%d must be positive", rows, cols)
	}
	if cols > 26 {
		return Layout{}, fmt.Errorf("board has %d columns, labels only cover a-z", cols)
	}
	return Layout{Rows: rows, Cols: cols}, nil
}

func (l Layout) Width() int   { return l.Cols + 2 }
func (l Layout) Height() int  { return l.Rows + 2 }
func (l Layout) Squares() int { return l.Width() * l.Height() }

// Valid reports whether index addresses a cell of the bordered array.
func (l Layout) Valid(index int) bool {
	return 0 <= index && index < l.Squares()
}

// Interior reports whether index addresses a playable cell.
func (l Layout) Interior(index int) bool {
	if !l.Valid(index) {
		return false
	}
	row, col := index/l.Width(), index%l.Width()
	return 1 <= row && row <= l.Rows && 1 <= col && col <= l.Cols
}

// Directions returns the 8 neighbour offsets: up, down, left, right, then the
// diagonals clockwise from up-right.
func (l Layout) Directions() [8]int {
	w := l.Width()
	return [8]int{-w, w, -1, 1, -(w - 1), w + 1, w - 1, -(w + 1)}
}

// Label converts an index into "<column letter><row>", e.g. "d5".
// Indexes outside the bordered array yield "na".
func (l Layout) Label(index int) string {
	if !l.Valid(index) {
		return "na"
	}
	row := index / l.Width()
	col := 'a' + rune(index%l.Width()) - 1
	return string(col) + strconv.Itoa(row)
}

// Index converts a label produced by Label back to its index. Only interior
// squares are accepted.
func (l Layout) Index(label string) (int, error) {
	if len(label) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadLabel, label)
	}
	letter := label[0]
	if letter < 'a' || letter > 'z' {
		return 0, fmt.Errorf("%w: %q has no column letter", ErrBadLabel, label)
	}
	row, err := strconv.Atoi(label[1:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q has no row number", ErrBadLabel, label)
	}
	col := int(letter-'a') + 1
	if row < 1 || row > l.Rows || col > l.Cols {
		return 0, fmt.Errorf("%w: %q is outside the %dx%d board", ErrBadLabel, label, l.Rows, l.Cols)
	}
	return row*l.Width() + col, nil
}
