// Package parser turns raw CSV statement text into ledger records.
// Parsing is all-or-nothing: a single bad row fails the whole file.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Kind classifies a record as money in or money out.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// DefaultCategory is assigned when the category column is blank or absent.
const DefaultCategory = "Uncategorized"

// SampleRows is how many leading data rows the intake handler validates
// before accepting an upload.
const SampleRows = 5

// staleYears is the lookback window beyond which a parsed date is replaced
// with the current timestamp instead of being trusted.
const staleYears = 3

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrMissingHeaders = errors.New("missing required columns (Date, Description)")
	ErrNoAmountColumn = errors.New("missing amount columns (Withdrawal Amount, Deposit Amount)")
)

// Record is a single parsed statement line. It is transient: the processor
// turns it into a persisted transaction attributed to the job's account.
type Record struct {
	Date        time.Time
	Description string
	Category    string
	Amount      decimal.Decimal
	Kind        Kind
	Notes       string
}

// Parser converts statement CSV text into records. The clock is injectable
// because invalid or stale dates are coerced to "now" rather than rejected.
type Parser struct {
	now func() time.Time
}

// New creates a parser using the wall clock.
func New() *Parser {
	return NewWithClock(time.Now)
}

// NewWithClock creates a parser with a custom clock, for tests.
func NewWithClock(now func() time.Time) *Parser {
	return &Parser{now: now}
}

// Parse reads the full CSV text (header row required) and returns one record
// per data row, or an error describing the first offending row.
//
// Only the Withdrawal/Deposit header shape is supported; a single signed
// amount column is rejected rather than silently unified.
func (p *Parser) Parse(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := mapColumns(header)
	if _, ok := cols["date"]; !ok {
		return nil, ErrMissingHeaders
	}
	if _, ok := cols["description"]; !ok {
		return nil, ErrMissingHeaders
	}
	_, hasWithdrawal := cols["withdrawal amount"]
	_, hasDeposit := cols["deposit amount"]
	if !hasWithdrawal && !hasDeposit {
		return nil, ErrNoAmountColumn
	}

	var records []Record
	rowNum := 1 // header is row 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		if isBlankRow(row) {
			continue
		}

		record, err := p.parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		records = append(records, *record)
	}

	return records, nil
}

// parseRow applies the per-row rules: Date and Description are mandatory,
// exactly one of Withdrawal/Deposit must be positive, Category defaults.
func (p *Parser) parseRow(row []string, cols map[string]int) (*Record, error) {
	dateRaw := field(row, cols, "date")
	if dateRaw == "" {
		return nil, errors.New("missing date")
	}

	description := cleanText(field(row, cols, "description"))
	if description == "" {
		return nil, errors.New("missing description")
	}

	withdrawal, err := parseAmount(field(row, cols, "withdrawal amount"))
	if err != nil {
		return nil, fmt.Errorf("invalid withdrawal amount: %w", err)
	}
	deposit, err := parseAmount(field(row, cols, "deposit amount"))
	if err != nil {
		return nil, fmt.Errorf("invalid deposit amount: %w", err)
	}

	var amount decimal.Decimal
	var kind Kind
	switch {
	case withdrawal.IsPositive() && deposit.IsPositive():
		return nil, errors.New("both withdrawal and deposit amounts are set")
	case withdrawal.IsPositive():
		amount, kind = withdrawal, KindExpense
	case deposit.IsPositive():
		amount, kind = deposit, KindIncome
	default:
		return nil, errors.New("neither withdrawal nor deposit amount is positive")
	}

	category := cleanText(field(row, cols, "category"))
	if category == "" {
		category = DefaultCategory
	}

	return &Record{
		Date:        p.parseDate(dateRaw),
		Description: description,
		Category:    category,
		Amount:      amount,
		Kind:        kind,
		Notes:       cleanText(field(row, cols, "notes")),
	}, nil
}

// parseDate tries the known statement formats. Dates that fail to parse, or
// whose year falls more than staleYears before the current year, are coerced
// to the current timestamp so otherwise-valid rows stay importable.
func (p *Parser) parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	now := p.now()

	for _, format := range dateFormats {
		t, err := time.Parse(format, raw)
		if err != nil {
			continue
		}
		if t.Year() < now.Year()-staleYears {
			return now
		}
		return t
	}

	return now
}

var dateFormats = []string{
	"01/02/2006",
	"1/2/2006",
	"02/01/2006",
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Sample returns the header plus the first n data records re-encoded as CSV,
// the slice the intake handler runs through Parse before accepting an upload.
// Records are read with the same reader settings Parse uses, so a quoted
// field spanning multiple lines is never cut mid-record.
func Sample(data []byte, n int) []byte {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	for i := 0; i <= n; i++ {
		row, err := reader.Read()
		if err != nil {
			break
		}
		if err := writer.Write(row); err != nil {
			break
		}
	}
	writer.Flush()
	return buf.Bytes()
}

// CountDataLines counts non-empty lines after the header row.
func CountDataLines(data []byte) int {
	count := 0
	for i, line := range strings.Split(string(data), "\n") {
		if i == 0 {
			continue
		}
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

func mapColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func field(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseAmount accepts plain or currency-decorated numbers ("4.50", "$1,200.00").
// Empty input is zero, not an error.
func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return decimal.Zero, nil
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func cleanText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

func isBlankRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
