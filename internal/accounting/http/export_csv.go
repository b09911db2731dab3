package http

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/odyssey-erp/finreports/internal/accounting/reports"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

var statementCSVHeader = []string{
	"Key", "Name", "Level",
	"Amount A", "WAT A", "NOI A",
	"Amount B", "WAT B", "NOI B",
	"Diff", "Diff %",
}

// writeStatementCSV flattens the tree depth first. Spacer rows become blank
// lines and headers carry only their name.
func writeStatementCSV(w io.Writer, stmt reports.Statement, reportID string) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment(fmt.Sprintf("# Report: %s statement", stmt.Type)); err != nil {
		return err
	}
	if err := streamer.writeComment(fmt.Sprintf("# Period A: %s | Period B: %s | ID: %s", periodLabel(stmt.PeriodA), periodLabel(stmt.PeriodB), reportID)); err != nil {
		return err
	}
	if err := streamer.writeRow(statementCSVHeader); err != nil {
		return err
	}
	var walk func(nodes []*reports.Node) error
	walk = func(nodes []*reports.Node) error {
		for _, n := range nodes {
			if err := streamer.writeRow(statementCSVRow(n)); err != nil {
				return err
			}
			if err := walk(n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(stmt.Nodes); err != nil {
		return err
	}
	return streamer.Close()
}

func statementCSVRow(n *reports.Node) []string {
	row := make([]string, len(statementCSVHeader))
	switch n.Kind {
	case reports.NodeSpacer:
		return row
	case reports.NodeHeader:
		row[1] = n.Name
		return row
	}
	key := n.Key
	if n.Kind == reports.NodeSynthetic {
		key = string(n.Synthetic)
	}
	row[0] = key
	row[1] = n.Name
	row[2] = strconv.Itoa(n.Level)
	for i, v := range []float64{n.AmountA, n.WatA, n.NoiA, n.AmountB, n.WatB, n.NoiB, n.DiffAbs, n.DiffPct} {
		row[3+i] = formatDecimal(v)
	}
	return row
}

func periodLabel(p *reports.Period) string {
	if p == nil {
		return "none"
	}
	return p.String()
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
