package parser

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullFeed = `<?xml version="1.0" encoding="UTF-8"?>
<DtecBS xmlns="http://www.bsi.si">
  <tecajnica datum="2023-01-02">
    <tecaj oznaka="USD" sifra="840">1.0683</tecaj>
    <tecaj oznaka="JPY" sifra="392">140.66</tecaj>
  </tecajnica>
  <tecajnica datum="2023-01-03">
    <tecaj oznaka="USD" sifra="840">1,0545</tecaj>
    <tecaj oznaka="GBP" sifra="826">0.88330</tecaj>
  </tecajnica>
</DtecBS>`

func day(s string) time.Time {
	t, _ := time.Parse(entity.DayLayout, s)
	return t
}

func newTestParser() (*BSIXMLParser, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewBSIXMLParser(logger.NewJSONLogger(&buf, logger.DebugLevel)), &buf
}

func TestParse(t *testing.T) {
	t.Run("Well-formed feed", func(t *testing.T) {
		// Setup
		p, _ := newTestParser()

		// Execute
		feed, err := p.Parse([]byte(fullFeed))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 2, feed.Len())

		rate, ok := feed.Rate(day("2023-01-02"), "USD")
		assert.True(t, ok)
		assert.Equal(t, "1.0683", entity.FormatRate(rate))

		rate, ok = feed.Rate(day("2023-01-03"), "GBP")
		assert.True(t, ok)
		assert.Equal(t, "0.88330", entity.FormatRate(rate))

		_, ok = feed.Rate(day("2023-01-03"), "JPY")
		assert.False(t, ok)

		assert.Equal(t, []string{"USD", "JPY", "GBP"}, feed.Currencies().Codes())
	})

	t.Run("Comma decimal separator", func(t *testing.T) {
		p, _ := newTestParser()

		feed, err := p.Parse([]byte(fullFeed))

		require.NoError(t, err)
		rate, ok := feed.Rate(day("2023-01-03"), "USD")
		assert.True(t, ok)
		assert.True(t, decimal.RequireFromString("1.0545").Equal(rate))
	})

	t.Run("Invalid block and rate are skipped", func(t *testing.T) {
		// Setup
		p, logs := newTestParser()
		raw := `<DtecBS>
  <tecajnica datum="02.01.2023"><tecaj oznaka="USD">1.07</tecaj></tecajnica>
  <tecajnica datum="2023-01-04">
    <tecaj oznaka="USD" sifra="840">n/a</tecaj>
    <tecaj oznaka="U$" sifra="000">1.00</tecaj>
    <tecaj oznaka="chf" sifra="756">0.9856</tecaj>
  </tecajnica>
</DtecBS>`

		// Execute
		feed, err := p.Parse([]byte(raw))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, feed.Len())
		_, ok := feed.Rate(day("2023-01-04"), "USD")
		assert.False(t, ok)
		rate, ok := feed.Rate(day("2023-01-04"), "CHF")
		assert.True(t, ok)
		assert.Equal(t, "0.9856", entity.FormatRate(rate))

		assert.Contains(t, logs.String(), "Skipping block with invalid date")
		assert.Contains(t, logs.String(), "Skipping unparseable rate")
		assert.Contains(t, logs.String(), "Skipping rate with invalid currency code")
	})

	t.Run("Truncated feed keeps complete blocks", func(t *testing.T) {
		p, logs := newTestParser()
		raw := `<DtecBS>
  <tecajnica datum="2023-01-02"><tecaj oznaka="USD" sifra="840">1.0683</tecaj></tecajnica>
  <tecajnica datum="2023-01-03"><tecaj oznaka="USD" sif`

		feed, err := p.Parse([]byte(raw))

		require.NoError(t, err)
		assert.Equal(t, 1, feed.Len())
		assert.Contains(t, logs.String(), "truncated")
	})

	t.Run("Duplicate dates are merged", func(t *testing.T) {
		p, logs := newTestParser()
		raw := `<DtecBS>
  <tecajnica datum="2023-01-02"><tecaj oznaka="USD">1.0683</tecaj><tecaj oznaka="JPY">140.66</tecaj></tecajnica>
  <tecajnica datum="2023-01-02"><tecaj oznaka="USD">1.0690</tecaj></tecajnica>
</DtecBS>`

		feed, err := p.Parse([]byte(raw))

		require.NoError(t, err)
		assert.Equal(t, 1, feed.Len())
		usd, _ := feed.Rate(day("2023-01-02"), "USD")
		jpy, _ := feed.Rate(day("2023-01-02"), "JPY")
		assert.Equal(t, "1.0690", entity.FormatRate(usd))
		assert.Equal(t, "140.66", entity.FormatRate(jpy))
		assert.Contains(t, logs.String(), "Duplicate date")
	})

	t.Run("Windows-1250 declaration", func(t *testing.T) {
		p, _ := newTestParser()
		raw := `<?xml version="1.0" encoding="windows-1250"?>
<DtecBS><tecajnica datum="2023-01-02"><tecaj oznaka="USD">1.0683</tecaj></tecajnica></DtecBS>`

		feed, err := p.Parse([]byte(raw))

		require.NoError(t, err)
		assert.Equal(t, 1, feed.Len())
	})
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"Empty input", "", "no dated rate blocks found"},
		{"HTML error page", "<html><body><h1>503</h1><p>down for maintenance</body></html>", "malformed XML"},
		{"Not XML", "this is not xml <<<", "malformed XML"},
		{"No blocks", "<DtecBS></DtecBS>", "no dated rate blocks found"},
		{"Only invalid blocks", `<DtecBS><tecajnica datum="yesterday"/></DtecBS>`, "all 1 dated blocks were invalid"},
		{"Only invalid rates", `<DtecBS>
  <tecajnica datum="2023-01-02"><tecaj oznaka="USD">abc</tecaj></tecajnica>
  <tecajnica datum="2023-01-03"><tecaj oznaka="USD">x,y</tecaj></tecajnica>
</DtecBS>`, "2 dated blocks held no valid rate"},
		{"Dated blocks without rates", `<DtecBS><tecajnica datum="2023-01-02"></tecajnica></DtecBS>`, "1 dated blocks held no valid rate"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newTestParser()

			_, err := p.Parse([]byte(tc.raw))

			var formatErr *entity.FeedFormatError
			require.True(t, errors.As(err, &formatErr), "got %v", err)
			assert.Contains(t, formatErr.Reason, tc.reason)
		})
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"1,0683", "1.0683", false},
		{"1.0683", "1.0683", false},
		{" 140.66 ", "140.66", false},
		{"7.5325", "7.5325", false},
		{"", "", true},
		{"abc", "", true},
		{"0", "", true},
		{"-1.2", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			rate, err := ParseRate(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, entity.FormatRate(rate))
		})
	}
}
