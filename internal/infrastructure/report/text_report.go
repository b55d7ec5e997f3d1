// Package report renders a reconstructed rate series as a plain-text summary
// followed by a tab-separated table.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
)

// Separator is placed between the fields of every table line
const Separator = "\t"

// Columns names the table fields, in output order
var Columns = []string{"request_date", "source_date", "currency", "rate"}

// TextReport writes the report through a buffered writer. The underlying
// writer may receive partial lines as the buffer fills; the output ends on a
// complete line only after Flush, which must be called before the report is
// abandoned.
type TextReport struct {
	w *bufio.Writer
}

// NewTextReport creates a report writing to out
func NewTextReport(out io.Writer) *TextReport {
	return &TextReport{w: bufio.NewWriter(out)}
}

// WriteSummary writes the block describing the run
func (r *TextReport) WriteSummary(s entity.SeriesSummary) error {
	lines := []string{
		fmt.Sprintf("Fetching Exchange Rates for %s", s.Currency),
		fmt.Sprintf("  Start date: %s", entity.FormatDay(s.Window.Start)),
		fmt.Sprintf("    End date: %s", entity.FormatDay(s.Window.End)),
		fmt.Sprintf("        Days: %d", s.Days),
		fmt.Sprintf("Available currencies: %s", s.Currencies.String()),
	}
	for _, line := range lines {
		if err := r.writeLine(line); err != nil {
			return err
		}
	}
	return nil
}

// WriteHeader writes the table column names
func (r *TextReport) WriteHeader() error {
	return r.writeLine(strings.Join(Columns, Separator))
}

// WriteRow writes one table line
func (r *TextReport) WriteRow(rate entity.ResolvedRate) error {
	return r.writeLine(FormatRow(rate))
}

// Flush pushes buffered lines to the underlying writer
func (r *TextReport) Flush() error {
	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}

func (r *TextReport) writeLine(line string) error {
	if _, err := r.w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// FormatRow renders a resolved rate as a single table line without the newline
func FormatRow(rate entity.ResolvedRate) string {
	return strings.Join([]string{
		entity.FormatDay(rate.RequestDate),
		entity.FormatDay(rate.SourceDate),
		rate.Currency,
		entity.FormatRate(rate.Rate),
	}, Separator)
}
