// Package series rebuilds a complete daily rate series from a sparse feed.
//
// Days without a publication (weekends, holidays) take the rate of the most
// recent earlier publication. Days before the first publication of a currency
// produce no row.
package series

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Result is the output of Reconstruct
type Result struct {
	Rates      []entity.ResolvedRate
	Currencies entity.CurrencySet
	Stats      entity.SeriesStats
}

// observation is the last known rate carried through the scan
type observation struct {
	date time.Time
	rate decimal.Decimal
}

// EmitFunc receives each resolved row in request order
type EmitFunc func(entity.ResolvedRate) error

// Reconstruct resolves every day in days and collects the rows
func Reconstruct(ctx context.Context, days []time.Time, feed entity.Feed, currency string) (*Result, error) {
	res := &Result{
		Rates:      make([]entity.ResolvedRate, 0, len(days)),
		Currencies: feed.Currencies(),
	}

	stats, err := Walk(ctx, days, feed, currency, func(r entity.ResolvedRate) error {
		res.Rates = append(res.Rates, r)
		return nil
	})
	res.Stats = stats
	if err != nil {
		return res, err
	}

	return res, nil
}

// Walk performs a single forward pass over days and hands each resolved row
// to emit as soon as it is known. The context is checked before every day, so
// a cancelled run stops between rows.
func Walk(ctx context.Context, days []time.Time, feed entity.Feed, currency string, emit EmitFunc) (entity.SeriesStats, error) {
	var stats entity.SeriesStats

	if err := checkAscending(days); err != nil {
		return stats, err
	}
	if len(days) == 0 {
		return stats, nil
	}

	var last *observation
	if date, rate, ok := feed.LatestBefore(days[0], currency); ok {
		last = &observation{date: date, rate: rate}
	}

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		day = entity.Day(day)
		if rate, ok := feed.Rate(day, currency); ok {
			last = &observation{date: day, rate: rate}
			stats.Direct++
		} else if last != nil {
			stats.Carried++
		} else {
			stats.Omitted++
			continue
		}

		row := entity.ResolvedRate{
			RequestDate: day,
			SourceDate:  last.date,
			Currency:    currency,
			Rate:        last.rate,
		}
		if err := emit(row); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

func checkAscending(days []time.Time) error {
	for i := 1; i < len(days); i++ {
		if !entity.Day(days[i]).After(entity.Day(days[i-1])) {
			return fmt.Errorf("%w: %s follows %s", entity.ErrUnorderedDays,
				entity.FormatDay(days[i]), entity.FormatDay(days[i-1]))
		}
	}
	return nil
}
