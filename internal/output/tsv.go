package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"passfuse/internal/pipeline"
	"passfuse/internal/services"
)

// Header is the TSV header row.
var Header = []string{"identity", "rank", "password", "sources", "fused_rank", "strength"}

// sourceSeparator joins generator names in the sources column.
const sourceSeparator = ","

// Row is one TSV line.
type Row struct {
	Identity  string
	Rank      int
	Password  string
	Sources   []string
	FusedRank float64
	Strength  float64
}

// Empty reports whether the row marks an identity without selections.
func (r Row) Empty() bool { return r.Rank == 0 }

// Rows converts a pipeline result into TSV rows.
func Rows(res pipeline.Result) []Row {
	key := res.Identity.Key()
	if len(res.Output.Selections) == 0 {
		return []Row{{Identity: key}}
	}
	rows := make([]Row, 0, len(res.Output.Selections))
	for _, s := range res.Output.Selections {
		rows = append(rows, Row{
			Identity:  key,
			Rank:      s.Rank,
			Password:  s.Password,
			Sources:   slices.Clone(s.Sources),
			FusedRank: s.FusedRank,
			Strength:  s.Strength,
		})
	}
	return rows
}

// TSVWriter streams rows. The header is written before the first row.
type TSVWriter struct {
	w      *csv.Writer
	header bool
}

// NewTSVWriter wraps w.
func NewTSVWriter(w io.Writer) *TSVWriter {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return &TSVWriter{w: cw}
}

// WriteRows appends rows.
func (t *TSVWriter) WriteRows(rows []Row) error {
	if err := t.writeHeader(); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Identity,
			strconv.Itoa(r.Rank),
			r.Password,
			strings.Join(r.Sources, sourceSeparator),
			formatFloat(r.FusedRank),
			formatFloat(r.Strength),
		}
		if err := t.w.Write(record); err != nil {
			return fmt.Errorf("write tsv row: %w", err)
		}
	}
	return nil
}

// Flush writes buffered rows, including the header when no row was written.
func (t *TSVWriter) Flush() error {
	if err := t.writeHeader(); err != nil {
		return err
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return fmt.Errorf("flush tsv: %w", err)
	}
	return nil
}

func (t *TSVWriter) writeHeader() error {
	if t.header {
		return nil
	}
	t.header = true
	if err := t.w.Write(Header); err != nil {
		return fmt.Errorf("write tsv header: %w", err)
	}
	return nil
}

// WriteTSV writes results as one TSV document.
func WriteTSV(w io.Writer, results []pipeline.Result) error {
	tw := NewTSVWriter(w)
	for _, res := range results {
		if err := tw.WriteRows(Rows(res)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// ReadTSV parses a TSV artifact written by WriteTSV.
func ReadTSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrValidation, "output", "read tsv", "missing header", nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "output", "read tsv", "header", err)
	}
	if !slices.Equal(header, Header) {
		return nil, services.Wrap(services.ErrValidation, "output", "read tsv",
			fmt.Sprintf("unexpected header %q", strings.Join(header, "\t")), nil)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "output", "read tsv", "", err)
		}
		row, err := parseRow(record)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, services.Wrap(services.ErrValidation, "output", "read tsv", fmt.Sprintf("line %d", line), err)
		}
		rows = append(rows, row)
	}
}

func parseRow(record []string) (Row, error) {
	rank, err := strconv.Atoi(record[1])
	if err != nil || rank < 0 {
		return Row{}, fmt.Errorf("invalid rank %q", record[1])
	}
	row := Row{Identity: record[0], Rank: rank, Password: record[2]}
	if record[3] != "" {
		row.Sources = strings.Split(record[3], sourceSeparator)
	}
	if row.FusedRank, err = parseFloat(record[4]); err != nil {
		return Row{}, fmt.Errorf("invalid fused_rank %q", record[4])
	}
	if row.Strength, err = parseFloat(record[5]); err != nil {
		return Row{}, fmt.Errorf("invalid strength %q", record[5])
	}
	return row, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
