package game

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func standardBoard(t *testing.T) *Board {
	t.Helper()
	layout, err := NewLayout(8, 8)
	require.NoError(t, err)
	b, err := NewBoard(layout, []string{"d4", "e5"}, []string{"d5", "e4"})
	require.NoError(t, err)
	return b
}

// randomBoards plays seeded random games and collects every position reached.
func randomBoards(t *testing.T, rows, cols, games int) []*Board {
	t.Helper()
	layout, err := NewLayout(rows, cols)
	require.NoError(t, err)
	mr, mc := rows/2, cols/2
	whites := []string{layout.Label(mr*layout.Width() + mc), layout.Label((mr+1)*layout.Width() + mc + 1)}
	blacks := []string{layout.Label(mr*layout.Width() + mc + 1), layout.Label((mr+1)*layout.Width() + mc)}
	rng := rand.New(rand.NewSource(7))

	var boards []*Board
	for g := 0; g < games; g++ {
		b, err := NewBoard(layout, whites, blacks)
		require.NoError(t, err)
		player := Black
		for !b.GameOver() {
			boards = append(boards, b)
			moves := b.GenerateMoves(player)
			if len(moves) > 0 {
				b = b.Copy().MakeMove(moves[rng.Intn(len(moves))], player)
			}
			player = player.Opponent()
		}
		boards = append(boards, b)
	}
	return boards
}

func TestLabels(t *testing.T) {
	layout, err := NewLayout(8, 8)
	require.NoError(t, err)

	t.Run("label and index round-trip over the interior", func(t *testing.T) {
		for i := 0; i < layout.Squares(); i++ {
			if !layout.Interior(i) {
				continue
			}
			got, err := layout.Index(layout.Label(i))
			require.NoError(t, err)
			require.Equal(t, i, got, "Index should invert Label for square %d", i)
		}
		for col := 'a'; col <= 'h'; col++ {
			for row := 1; row <= 8; row++ {
				label := string(col) + string(rune('0'+row))
				i, err := layout.Index(label)
				require.NoError(t, err)
				require.Equal(t, label, layout.Label(i))
			}
		}
	})

	t.Run("known labels map to bordered indexes", func(t *testing.T) {
		i, err := layout.Index("a1")
		require.NoError(t, err)
		require.Equal(t, 11, i)
		i, err = layout.Index("h8")
		require.NoError(t, err)
		require.Equal(t, 88, i)
		require.Equal(t, "na", layout.Label(-1))
	})

	t.Run("out of range labels are rejected", func(t *testing.T) {
		for _, label := range []string{"", "a", "i1", "a0", "a9", "A1", "1a", "z3"} {
			_, err := layout.Index(label)
			require.ErrorIs(t, err, ErrBadLabel, "label %q", label)
		}
	})

	t.Run("two-digit rows on tall boards", func(t *testing.T) {
		tall, err := NewLayout(12, 4)
		require.NoError(t, err)
		i, err := tall.Index("c12")
		require.NoError(t, err)
		require.Equal(t, "c12", tall.Label(i))
	})
}

func TestNewBoard(t *testing.T) {
	t.Run("border cells are outer and the interior holds the placements", func(t *testing.T) {
		b := standardBoard(t)
		layout := b.Layout()
		for i := 0; i < layout.Squares(); i++ {
			if !layout.Interior(i) {
				require.Equal(t, Outer, b.At(i), "square %d should be border", i)
			} else {
				require.Contains(t, []Cell{Empty, Black, White}, b.At(i))
			}
		}
		require.Equal(t, 2, b.Count(Black))
		require.Equal(t, 2, b.Count(White))
		require.Equal(t, 60, b.Count(Empty))
	})

	t.Run("placement outside the board fails", func(t *testing.T) {
		layout, err := NewLayout(4, 4)
		require.NoError(t, err)
		_, err = NewBoard(layout, []string{"e1"}, nil)
		require.ErrorIs(t, err, ErrBadLabel)
	})

	t.Run("overlapping placements fail", func(t *testing.T) {
		layout, err := NewLayout(4, 4)
		require.NoError(t, err)
		_, err = NewBoard(layout, []string{"b2"}, []string{"b2"})
		require.Error(t, err)
	})

	t.Run("too many columns for letter labels", func(t *testing.T) {
		_, err := NewLayout(8, 27)
		require.Error(t, err)
	})
}

func TestBoardEncoding(t *testing.T) {
	t.Run("decode inverts encode", func(t *testing.T) {
		for _, b := range randomBoards(t, 6, 6, 3) {
			decoded, err := DecodeBoard(b.Layout(), b.Encode())
			require.NoError(t, err)
			require.True(t, b.Equal(decoded))
		}
	})

	t.Run("pieces on the border are rejected", func(t *testing.T) {
		b := standardBoard(t)
		encoded := []byte(b.Encode())
		encoded[0] = byte(Black)
		_, err := DecodeBoard(b.Layout(), string(encoded))
		require.Error(t, err)
	})

	t.Run("wrong length is rejected", func(t *testing.T) {
		b := standardBoard(t)
		_, err := DecodeBoard(b.Layout(), b.Encode()[1:])
		require.Error(t, err)
	})
}
