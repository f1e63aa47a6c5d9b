package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func fixedClock() (func() time.Time, time.Time) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }, now
}

func TestParse_WithdrawalDepositShape(t *testing.T) {
	clock, _ := fixedClock()
	p := NewWithClock(clock)

	data := strings.Join([]string{
		"Date,Description,Category,Withdrawal Amount,Deposit Amount",
		"01/15/2026,Coffee Shop,Dining,4.50,",
		"01/16/2026,Paycheck,,,2000.00",
		"",
	}, "\n")

	records, err := p.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	coffee := records[0]
	if coffee.Kind != KindExpense {
		t.Fatalf("expected expense, got %s", coffee.Kind)
	}
	if !coffee.Amount.Equal(decimal.RequireFromString("4.50")) {
		t.Fatalf("unexpected coffee amount: %s", coffee.Amount)
	}
	if coffee.Category != "Dining" {
		t.Fatalf("unexpected category: %s", coffee.Category)
	}
	if coffee.Date != time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected date: %s", coffee.Date)
	}

	paycheck := records[1]
	if paycheck.Kind != KindIncome {
		t.Fatalf("expected income, got %s", paycheck.Kind)
	}
	if !paycheck.Amount.Equal(decimal.RequireFromString("2000.00")) {
		t.Fatalf("unexpected paycheck amount: %s", paycheck.Amount)
	}
	if paycheck.Category != DefaultCategory {
		t.Fatalf("expected default category, got %s", paycheck.Category)
	}
}

func TestParse_CurrencyDecoratedAmounts(t *testing.T) {
	clock, _ := fixedClock()
	p := NewWithClock(clock)

	data := strings.Join([]string{
		"Date,Description,Withdrawal Amount,Deposit Amount",
		"01/15/2026,Rent,\"$1,200.00\",",
	}, "\n")

	records, err := p.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !records[0].Amount.Equal(decimal.RequireFromString("1200.00")) {
		t.Fatalf("unexpected amount: %s", records[0].Amount)
	}
}

func TestParse_HeaderValidation(t *testing.T) {
	clock, _ := fixedClock()
	p := NewWithClock(clock)

	cases := []struct {
		name string
		data string
		want error
	}{
		{"empty file", "   \n  ", ErrEmptyFile},
		{"missing date column", "Description,Withdrawal Amount,Deposit Amount\nCoffee,4.50,", ErrMissingHeaders},
		{"missing description column", "Date,Withdrawal Amount,Deposit Amount\n01/15/2026,4.50,", ErrMissingHeaders},
		{"signed amount shape rejected", "Date,Description,Amount\n01/15/2026,Coffee,-4.50", ErrNoAmountColumn},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Parse([]byte(tc.data))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParse_RowErrorsFailWholeFile(t *testing.T) {
	clock, _ := fixedClock()
	p := NewWithClock(clock)

	cases := []struct {
		name    string
		row     string
		wantMsg string
	}{
		{"both amounts set", "01/15/2026,Coffee,,4.50,10.00", "both withdrawal and deposit"},
		{"neither amount set", "01/15/2026,Coffee,,,", "neither withdrawal nor deposit"},
		{"missing date", ",Coffee,,4.50,", "missing date"},
		{"missing description", "01/15/2026,,,4.50,", "missing description"},
	}

	header := "Date,Description,Category,Withdrawal Amount,Deposit Amount"
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := strings.Join([]string{
				header,
				"01/15/2026,Good Row,,4.50,",
				tc.row,
			}, "\n")

			_, err := p.Parse([]byte(data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), "row 3") {
				t.Fatalf("expected row 3 in error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("expected %q in error, got %v", tc.wantMsg, err)
			}
		})
	}
}

func TestParse_DateCoercion(t *testing.T) {
	clock, now := fixedClock()
	p := NewWithClock(clock)

	data := strings.Join([]string{
		"Date,Description,Withdrawal Amount,Deposit Amount",
		"01/15/2020,Ancient Charge,4.50,", // more than three years back
		"not-a-date,Mystery Charge,4.50,",
		"01/15/2026,Recent Charge,4.50,",
	}, "\n")

	records, err := p.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if !records[0].Date.Equal(now) {
		t.Fatalf("stale date not coerced: %s", records[0].Date)
	}
	if !records[1].Date.Equal(now) {
		t.Fatalf("invalid date not coerced: %s", records[1].Date)
	}
	if records[2].Date.Equal(now) {
		t.Fatalf("recent date should be preserved, got %s", records[2].Date)
	}
}

func TestParse_SkipsBlankRows(t *testing.T) {
	clock, _ := fixedClock()
	p := NewWithClock(clock)

	data := strings.Join([]string{
		"Date,Description,Withdrawal Amount,Deposit Amount",
		"01/15/2026,Coffee,4.50,",
		"",
		"  ",
		"01/16/2026,Lunch,12.00,",
	}, "\n")

	records, err := p.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestSample(t *testing.T) {
	lines := []string{"header"}
	for i := 0; i < 10; i++ {
		lines = append(lines, "data")
	}
	data := []byte(strings.Join(lines, "\n"))

	sample := strings.TrimSpace(string(Sample(data, 5)))
	if got := len(strings.Split(sample, "\n")); got != 6 {
		t.Fatalf("expected header plus 5 records, got %d lines", got)
	}

	short := []byte("header\ndata")
	if strings.TrimSpace(string(Sample(short, 5))) != "header\ndata" {
		t.Fatalf("short input should survive sampling, got %q", Sample(short, 5))
	}
}

func TestSample_KeepsQuotedMultilineFields(t *testing.T) {
	var b strings.Builder
	b.WriteString("Date,Description,Withdrawal Amount,Deposit Amount\n")
	for i := 0; i < 6; i++ {
		b.WriteString("01/15/2026,\"Store\nreceipt\",4.50,\n")
	}

	clock, _ := fixedClock()
	p := NewWithClock(clock)

	// Descriptions span two physical lines; the sample must cut on record
	// boundaries so the leading records still parse.
	records, err := p.Parse(Sample([]byte(b.String()), SampleRows))
	if err != nil {
		t.Fatalf("Parse(Sample): %v", err)
	}
	if len(records) != SampleRows {
		t.Fatalf("expected %d records, got %d", SampleRows, len(records))
	}
	if records[0].Description != "Store receipt" {
		t.Fatalf("unexpected description: %q", records[0].Description)
	}
}

func TestCountDataLines(t *testing.T) {
	data := []byte("header\nrow\n\nrow\n  \nrow\n")
	if got := CountDataLines(data); got != 3 {
		t.Fatalf("expected 3 data lines, got %d", got)
	}
}
