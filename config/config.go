// Package config loads the starting position and search limits.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"othello/game"
)

var ErrMalformed = errors.New("malformed configuration")

const (
	DefaultTimeout   = 60 * time.Second
	DefaultMaxDepth  = 5
	DefaultMaxBoards = 100000
)

// Config is read once at startup and never changed.
type Config struct {
	Rows      int
	Cols      int
	White     []string
	Black     []string
	Player    game.Cell
	Timeout   time.Duration
	MaxDepth  int
	MaxBoards int64
}

// Default is the standard 8x8 opening with black to move.
func Default() Config {
	return Config{
		Rows:      8,
		Cols:      8,
		White:     []string{"d4", "e5"},
		Black:     []string{"d5", "e4"},
		Player:    game.Black,
		Timeout:   DefaultTimeout,
		MaxDepth:  DefaultMaxDepth,
		MaxBoards: DefaultMaxBoards,
	}
}

// Load reads the board file and then the parameter file on top of Default.
// An empty path leaves the defaults for that file in place.
func Load(boardPath, paramsPath string) (Config, error) {
	cfg := Default()
	if boardPath != "" {
		if err := readFile(boardPath, func(r io.Reader) error { return cfg.ParseBoard(r) }); err != nil {
			return Config{}, err
		}
	}
	if paramsPath != "" {
		if err := readFile(paramsPath, func(r io.Reader) error { return cfg.ParseParams(r) }); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, parse func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := parse(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ParseBoard reads "Size:", "White:", "Black:", "Color:" and "Timeout:" lines.
// Other lines are ignored.
func (c *Config) ParseBoard(r io.Reader) error {
	return parseLines(r, func(key, value string) error {
		switch key {
		case "Size:":
			rows, cols, ok := strings.Cut(value, ",")
			if !ok {
				return fmt.Errorf("%w: size %q", ErrMalformed, value)
			}
			var err error
			if c.Rows, err = atoi("rows", rows); err != nil {
				return err
			}
			if c.Cols, err = atoi("cols", cols); err != nil {
				return err
			}
		case "White:":
			c.White = parsePositions(value)
		case "Black:":
			c.Black = parsePositions(value)
		case "Color:":
			player, err := game.ParsePlayer(value)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			c.Player = player
		case "Timeout:":
			secs, err := atoi("timeout", value)
			if err != nil {
				return err
			}
			c.Timeout = time.Duration(secs) * time.Second
		}
		return nil
	})
}

// ParseParams reads "MaxDepth:" and "MaxBoards:" lines.
func (c *Config) ParseParams(r io.Reader) error {
	return parseLines(r, func(key, value string) error {
		switch key {
		case "MaxDepth:":
			depth, err := atoi("max depth", value)
			if err != nil {
				return err
			}
			c.MaxDepth = depth
		case "MaxBoards:":
			boards, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: max boards %q", ErrMalformed, value)
			}
			c.MaxBoards = boards
		}
		return nil
	})
}

func parseLines(r io.Reader, apply func(key, value string) error) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		key, value, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if err := apply(key, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

// parsePositions reads "{ d5,e4 }".
func parsePositions(value string) []string {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(value, "{"), "}"))
	var labels []string
	for _, label := range strings.Split(value, ",") {
		if label = strings.TrimSpace(label); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

func atoi(what, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformed, what, value)
	}
	return n, nil
}

// Validate checks the limits and that the position can be built.
func (c Config) Validate() error {
	if c.Player != game.Black && c.Player != game.White {
		return fmt.Errorf("%w: no player to move", ErrMalformed)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("%w: max depth %d must be positive", ErrMalformed, c.MaxDepth)
	}
	if c.MaxBoards < 0 {
		return fmt.Errorf("%w: max boards %d is negative", ErrMalformed, c.MaxBoards)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout %s is negative", ErrMalformed, c.Timeout)
	}
	if _, err := c.Board(); err != nil {
		return err
	}
	return nil
}

func (c Config) Layout() (game.Layout, error) {
	layout, err := game.NewLayout(c.Rows, c.Cols)
	if err != nil {
		return game.Layout{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return layout, nil
}

// Board builds the starting position.
func (c Config) Board() (*game.Board, error) {
	layout, err := c.Layout()
	if err != nil {
		return nil, err
	}
	b, err := game.NewBoard(layout, c.White, c.Black)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return b, nil
}
