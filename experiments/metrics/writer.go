package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SpeedupRecord is one root search of the speedup experiment.
type SpeedupRecord struct {
	Procs    int
	Trial    int
	Move     string
	Score    int
	Elapsed  time.Duration
	Total    NodeMetric
	MaxNode  int64 // largest per-node board count
	Timeouts int64
}

type Writer struct {
	baseDir string
}

// NewWriter creates <root>/<name>/<timestamp> for the CSV files.
func NewWriter(root, name string) (*Writer, error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	baseDir := filepath.Join(root, name, timestamp)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &Writer{baseDir: baseDir}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) write(file string, header []string, rows [][]string) error {
	path := filepath.Join(w.baseDir, file)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", file, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", file, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s rows: %w", file, err)
	}
	return nil
}

func (w *Writer) WriteNodeMetrics(nodes []NodeMetric) error {
	header := []string{"node", "comm_time", "comp_time", "boards_evaluated", "jobs_received",
		"jobs_dispatched", "local_moves", "cutoffs_received", "cutoffs_sent", "timeouts"}
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{
			strconv.Itoa(n.Node),
			seconds(n.CommTime),
			seconds(n.CompTime),
			strconv.FormatInt(n.BoardsEvaluated, 10),
			strconv.FormatInt(n.JobsReceived, 10),
			strconv.FormatInt(n.JobsDispatched, 10),
			strconv.FormatInt(n.LocalMoves, 10),
			strconv.FormatInt(n.CutoffsReceived, 10),
			strconv.FormatInt(n.CutoffsSent, 10),
			strconv.FormatInt(n.Timeouts, 10),
		})
	}
	return w.write("node_metrics.csv", header, rows)
}

func (w *Writer) WriteMoveRecords(moves []MoveMetric) error {
	header := []string{"step", "player", "move", "score", "duration", "boards"}
	rows := make([][]string, 0, len(moves))
	for _, m := range moves {
		rows = append(rows, []string{
			strconv.Itoa(m.Step),
			m.Player,
			m.Move,
			strconv.Itoa(m.Score),
			seconds(m.Duration),
			strconv.FormatInt(m.Boards, 10),
		})
	}
	return w.write("move_records.csv", header, rows)
}

func (w *Writer) WriteGameRecord(g GameMetric) error {
	header := []string{"starting_player", "winner", "black", "white", "start_time", "end_time", "duration", "total_moves"}
	row := []string{
		g.StartingPlayer,
		g.Winner,
		strconv.Itoa(g.Black),
		strconv.Itoa(g.White),
		g.StartTime.Format(time.RFC3339),
		g.EndTime.Format(time.RFC3339),
		seconds(g.Duration),
		strconv.Itoa(g.TotalMoves),
	}
	return w.write("game_record.csv", header, [][]string{row})
}

func (w *Writer) WriteSpeedupRecords(records []SpeedupRecord) error {
	header := []string{"procs", "trial", "move", "score", "elapsed", "boards_evaluated",
		"max_node_boards", "jobs_dispatched", "comm_time", "comp_time", "timeouts"}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.Procs),
			strconv.Itoa(r.Trial),
			r.Move,
			strconv.Itoa(r.Score),
			seconds(r.Elapsed),
			strconv.FormatInt(r.Total.BoardsEvaluated, 10),
			strconv.FormatInt(r.MaxNode, 10),
			strconv.FormatInt(r.Total.JobsDispatched, 10),
			seconds(r.Total.CommTime),
			seconds(r.Total.CompTime),
			strconv.FormatInt(r.Timeouts, 10),
		})
	}
	return w.write("speedup.csv", header, rows)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 4, 64)
}
