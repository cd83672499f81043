// Package importer reads guest lists (name, ticket count) from CSV or XLSX
// and turns each row into one ticket batch.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"wedding-manager/internal/apperr"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"

	"github.com/hashicorp/go-multierror"
	"github.com/xuri/excelize/v2"
)

// Row is one parsed guest line. Line is the 1-based line in the file,
// counting the header.
type Row struct {
	Line  int
	Name  string
	Count int
}

type record struct {
	line  int
	cells []string
}

type Limits struct {
	MaxRows          int
	MaxTicketsPerRow int
}

var DefaultLimits = Limits{MaxRows: 2000, MaxTicketsPerRow: 500}

// BatchCreator is the part of the ticket store the importer writes through.
type BatchCreator interface {
	AddBatch(ctx context.Context, eventID, attendeeName string, count int) ([]models.Ticket, error)
}

// Result reports what an import wrote, including a partial batch when a
// write failed part way.
type Result struct {
	Rows           int             `json:"rows"`
	TicketsCreated int             `json:"ticketsCreated"`
	Tickets        []models.Ticket `json:"tickets"`
}

type Importer struct {
	Tickets BatchCreator
	Limits  Limits
	Logger  *logger.Logger
}

func NewImporter(tickets BatchCreator, limits Limits, log *logger.Logger) *Importer {
	if limits.MaxRows <= 0 {
		limits.MaxRows = DefaultLimits.MaxRows
	}
	if limits.MaxTicketsPerRow <= 0 {
		limits.MaxTicketsPerRow = DefaultLimits.MaxTicketsPerRow
	}
	return &Importer{Tickets: tickets, Limits: limits, Logger: log}
}

// Parse picks the reader by file extension.
func (im *Importer) Parse(filename string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return im.ParseCSV(r)
	case ".xlsx":
		return im.ParseXLSX(r)
	default:
		return nil, apperr.Validation("file", fmt.Sprintf("unsupported file type %q, expected .csv or .xlsx", filepath.Ext(filename)))
	}
}

func (im *Importer) ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []record
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &apperr.ParseError{Row: csvErr.Line, Field: "file", Reason: csvErr.Err.Error()}
			}
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record{line: line, cells: fields})
	}
	return im.parseRecords(records)
}

// ParseXLSX reads the first sheet of the workbook.
func (im *Importer) ParseXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &apperr.ParseError{Row: 0, Field: "file", Reason: "not a readable xlsx workbook"}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("file", "workbook has no sheets")
	}
	sheetRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	records := make([]record, len(sheetRows))
	for i, cells := range sheetRows {
		records[i] = record{line: i + 1, cells: cells}
	}
	return im.parseRecords(records)
}

// parseRecords drops the header, skips blank lines and checks every row.
// Any bad row fails the whole file; all bad rows are reported together.
func (im *Importer) parseRecords(records []record) ([]Row, error) {
	if len(records) <= 1 {
		return nil, apperr.Validation("file", "no guest rows after the header")
	}

	var rows []Row
	var result *multierror.Error
	for _, rec := range records[1:] {
		if blank(rec.cells) {
			continue
		}
		row, err := im.parseRow(rec.line, rec.cells)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		rows = append(rows, row)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("file", "no guest rows after the header")
	}
	if len(rows) > im.Limits.MaxRows {
		return nil, apperr.Validation("file", fmt.Sprintf("%d rows exceeds the limit of %d", len(rows), im.Limits.MaxRows))
	}
	return rows, nil
}

func (im *Importer) parseRow(line int, cells []string) (Row, error) {
	name := strings.TrimSpace(cells[0])
	if name == "" {
		return Row{}, &apperr.ParseError{Row: line, Field: "name", Reason: "is empty"}
	}
	if len(cells) < 2 || strings.TrimSpace(cells[1]) == "" {
		return Row{}, &apperr.ParseError{Row: line, Field: "count", Reason: "is missing"}
	}

	raw := strings.TrimSpace(cells[1])
	count, err := strconv.Atoi(raw)
	if err != nil {
		return Row{}, &apperr.ParseError{Row: line, Field: "count", Reason: fmt.Sprintf("%q is not a whole number", raw)}
	}
	if count < 1 {
		return Row{}, &apperr.ParseError{Row: line, Field: "count", Reason: "must be positive"}
	}
	if count > im.Limits.MaxTicketsPerRow {
		return Row{}, &apperr.ParseError{Row: line, Field: "count", Reason: fmt.Sprintf("%d exceeds the limit of %d", count, im.Limits.MaxTicketsPerRow)}
	}
	return Row{Line: line, Name: name, Count: count}, nil
}

func blank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Import writes one batch per row, in file order. Writes are not rolled back:
// when a row fails, the result holds everything created so far and the error
// names the row.
func (im *Importer) Import(ctx context.Context, eventID string, rows []Row) (*Result, error) {
	result := &Result{Tickets: []models.Ticket{}}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("import stopped before row %d (%s): %w", row.Line, row.Name, err)
		}

		created, err := im.Tickets.AddBatch(ctx, eventID, row.Name, row.Count)
		result.Tickets = append(result.Tickets, created...)
		result.TicketsCreated += len(created)
		if err != nil {
			im.Logger.Error("IMPORT", fmt.Sprintf("[%s] row %d (%s) failed: %v", eventID, row.Line, row.Name, err))
			return result, fmt.Errorf("import stopped at row %d (%s): %w", row.Line, row.Name, err)
		}
		result.Rows++
	}

	im.Logger.LogImport(eventID, fmt.Sprintf("%d rows, %d tickets", result.Rows, result.TicketsCreated))
	return result, nil
}
