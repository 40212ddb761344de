package game

import (
	"fmt"
	"strings"
)

// Cell is the state of one square. Black and White double as player ids.
type Cell byte

const (
	Empty Cell = '.'
	Black Cell = '@'
	White Cell = 'o'
	Outer Cell = '?'
)

func (c Cell) Opponent() Cell {
	if c == White {
		return Black
	}
	return White
}

func (c Cell) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	case Empty:
		return "empty"
	case Outer:
		return "outer"
	}
	return fmt.Sprintf("cell(%q)", byte(c))
}

// ParsePlayer accepts "black" or "white" in any case.
func ParsePlayer(s string) (Cell, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black":
		return Black, nil
	case "white":
		return White, nil
	}
	return 0, fmt.Errorf("unknown player %q", s)
}

// Board is a flat, bordered grid indexed by row*width+col. Search code treats
// it as a value: branches Copy before mutating.
type Board struct {
	layout Layout
	cells  []Cell
}

// NewBoard builds an empty board for layout and places the initial pieces.
func NewBoard(layout Layout, whites, blacks []string) (*Board, error) {
	b := emptyBoard(layout)
	place := func(labels []string, c Cell) error {
		for _, label := range labels {
			i, err := layout.Index(label)
			if err != nil {
				return fmt.Errorf("placing %s: %w", c, err)
			}
			if b.cells[i] != Empty {
				return fmt.Errorf("placing %s: square %s is already taken", c, label)
			}
			b.cells[i] = c
		}
		return nil
	}
	if err := place(whites, White); err != nil {
		return nil, err
	}
	if err := place(blacks, Black); err != nil {
		return nil, err
	}
	return b, nil
}

func emptyBoard(layout Layout) *Board {
	cells := make([]Cell, layout.Squares())
	for i := range cells {
		if layout.Interior(i) {
			cells[i] = Empty
		} else {
			cells[i] = Outer
		}
	}
	return &Board{layout: layout, cells: cells}
}

// DecodeBoard rebuilds a board from the output of Encode.
func DecodeBoard(layout Layout, encoded string) (*Board, error) {
	if len(encoded) != layout.Squares() {
		return nil, fmt.Errorf("encoded board has %d cells, layout %dx%d needs %d",
			len(encoded), layout.Rows, layout.Cols, layout.Squares())
	}
	b := &Board{layout: layout, cells: make([]Cell, len(encoded))}
	for i := 0; i < len(encoded); i++ {
		c := Cell(encoded[i])
		interior := layout.Interior(i)
		switch {
		case interior && (c == Empty || c == Black || c == White):
		case !interior && c == Outer:
		default:
			return nil, fmt.Errorf("cell %d holds %q, not allowed there", i, encoded[i])
		}
		b.cells[i] = c
	}
	return b, nil
}

func (b *Board) Layout() Layout { return b.layout }

func (b *Board) At(index int) Cell { return b.cells[index] }

func (b *Board) Copy() *Board {
	cells := make([]Cell, len(b.cells))
	copy(cells, b.cells)
	return &Board{layout: b.layout, cells: cells}
}

// Encode returns the cells as a string, one byte per cell.
func (b *Board) Encode() string {
	var sb strings.Builder
	sb.Grow(len(b.cells))
	for _, c := range b.cells {
		sb.WriteByte(byte(c))
	}
	return sb.String()
}

func (b *Board) Equal(other *Board) bool {
	return b.layout == other.layout && b.Encode() == other.Encode()
}

// Count returns the number of interior cells holding c.
func (b *Board) Count(c Cell) int {
	n := 0
	for _, cell := range b.cells {
		if cell == c {
			n++
		}
	}
	return n
}

// String renders the board with column letters and row numbers on every side.
func (b *Board) String() string {
	var sb strings.Builder
	header := "    "
	for c := 0; c < b.layout.Cols; c++ {
		header += string(rune('a'+c)) + " "
	}
	sb.WriteString(header + "\n")
	w := b.layout.Width()
	for row := 1; row <= b.layout.Rows; row++ {
		fmt.Fprintf(&sb, "%2d  ", row)
		for col := 1; col <= b.layout.Cols; col++ {
			sb.WriteByte(byte(b.cells[row*w+col]))
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, " %d\n", row)
	}
	sb.WriteString(header + "\n")
	return sb.String()
}
